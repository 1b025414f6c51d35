// Package merge builds and interprets the extraction collaborator call that
// produces a user's replacement fact list.
//
// The orchestrator presents the complete existing fact set alongside a
// bounded window of new conversation turns and asks the collaborator for the
// COMPLETE merged list — updated facts, contradictions dropped, new facts
// added. There is no code-based deduplication pass; conflict resolution is
// entirely semantic and lives in the model.
//
// A reply the orchestrator cannot parse is never an error: it yields a
// merge-unavailable Result so callers leave the persisted facts untouched.
// Only transport-level failures of the collaborator call itself propagate as
// errors.
package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/llm"
	"github.com/engramhq/engram/pkg/memory"
	"github.com/engramhq/engram/pkg/utils"
)

// DefaultWindow is the maximum number of conversation turns presented to the
// collaborator per merge call.
const DefaultWindow = 10

// Config holds orchestrator settings for the extraction collaborator.
type Config struct {
	// Model is the collaborator model or capability id.
	Model string

	// Temperature for the extraction call. Low values keep the JSON output
	// consistent.
	Temperature float64

	// MaxTokens caps the collaborator's output size.
	MaxTokens int

	// Window bounds how many trailing turns are presented.
	// Defaults to DefaultWindow.
	Window int
}

// Result is the outcome of one merge call.
type Result struct {
	// Facts is the complete replacement fact list. Only meaningful when
	// Available is true.
	Facts []memory.Fact

	// Available reports whether the collaborator produced a usable merged
	// list. When false the caller must leave the existing facts unchanged.
	Available bool
}

// Orchestrator drives the collaborator merge call.
type Orchestrator struct {
	completer llm.Completer
	config    Config
	logger    *zap.Logger
}

// New creates a merge orchestrator.
func New(completer llm.Completer, config Config, logger *zap.Logger) *Orchestrator {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}

	return &Orchestrator{
		completer: completer,
		config:    config,
		logger:    logger,
	}
}

// Merge invokes the collaborator exactly once with the existing facts and the
// trailing window of new turns, then parses the reply into a Result.
//
// Transport failures return an error; the caller decides whether to retry or
// skip the cycle. Empty or malformed replies return a merge-unavailable
// Result with a nil error.
func (o *Orchestrator) Merge(ctx context.Context, existing []memory.Fact, turns []memory.Turn) (Result, error) {
	if len(turns) > o.config.Window {
		turns = turns[len(turns)-o.config.Window:]
	}

	prompt, err := buildPrompt(existing, turns)
	if err != nil {
		return Result{}, fmt.Errorf("building merge prompt: %w", err)
	}

	req := &llm.ChatRequest{
		Model:    o.config.Model,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		Stream:   false,
	}
	if o.config.Temperature > 0 {
		req.Temperature = &o.config.Temperature
	}
	if o.config.MaxTokens > 0 {
		req.MaxTokens = &o.config.MaxTokens
	}

	reply, err := o.completer.Complete(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("extraction model call failed: %w", err)
	}

	if reply == "" {
		o.logger.Warn("extraction model returned empty content, keeping existing facts")
		return Result{}, nil
	}

	o.logger.Debug("extraction model replied", zap.String("reply", utils.Truncate(reply, 200)))

	facts, ok := o.parseReply(reply)
	if !ok {
		return Result{}, nil
	}

	o.logger.Debug("merge reply parsed", zap.Int("facts", len(facts)))

	return Result{Facts: facts, Available: true}, nil
}

// mergedFacts is the JSON envelope the collaborator is instructed to return.
// Confidence decodes through a pointer so an omitted score is distinguishable
// from an explicit 0.0: only a truly absent field gets the default.
type mergedFacts struct {
	Facts []replyFact `json:"facts"`
}

type replyFact struct {
	Kind        string    `json:"kind"`
	Subject     string    `json:"subject"`
	Value       string    `json:"value"`
	Sentiment   string    `json:"sentiment"`
	Confidence  *float64  `json:"confidence"`
	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

func (f replyFact) toFact() memory.Fact {
	confidence := memory.DefaultConfidence
	if f.Confidence != nil {
		confidence = *f.Confidence
	}

	return memory.Fact{
		Kind:        f.Kind,
		Subject:     f.Subject,
		Value:       f.Value,
		Sentiment:   f.Sentiment,
		Confidence:  confidence,
		FirstSeen:   f.FirstSeen,
		LastUpdated: f.LastUpdated,
	}
}

// parseReply extracts the merged fact list from the collaborator's text.
// Code-fence wrapping is tolerated; a strict parse is attempted first and a
// repair pass covers the usual LLM JSON sloppiness (trailing commas,
// unquoted keys). Anything still unparsable is merge-unavailable.
func (o *Orchestrator) parseReply(reply string) ([]memory.Fact, bool) {
	cleaned := stripFences(reply)

	var parsed mergedFacts
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		return toFacts(parsed.Facts), true
	}

	repaired, err := repairJSON(cleaned)
	if err != nil {
		o.logger.Warn("merge reply is not valid JSON, keeping existing facts",
			zap.Error(err),
		)
		return nil, false
	}

	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		o.logger.Warn("merge reply unparsable even after repair, keeping existing facts",
			zap.Error(err),
		)
		return nil, false
	}

	return toFacts(parsed.Facts), true
}

func toFacts(raw []replyFact) []memory.Fact {
	if raw == nil {
		return nil
	}

	facts := make([]memory.Fact, len(raw))
	for i, f := range raw {
		facts[i] = f.toFact()
	}
	return facts
}
