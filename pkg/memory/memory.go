// Package memory defines the fact-based data model for durable conversational
// memory.
//
// A [Fact] is one atomic assertion about a user — distilled knowledge, not a
// raw message. A [MemoryState] is the complete per-user snapshot: the fact
// list plus derived metadata (count, summary, timestamps). States are keyed
// by user, not by conversation; a user's memory follows them across chats.
//
// The Kind field is an open vocabulary. The constants below cover the
// well-supported kinds that get dedicated treatment in summaries and context
// rendering, but any non-empty string is a valid kind.
package memory

import (
	"sort"
	"time"
)

// Well-known fact kinds. Rendering and summarization give these dedicated
// sections; unknown kinds are carried through untouched.
const (
	KindIdentity     = "identity"
	KindPreference   = "preference"
	KindOwnership    = "ownership"
	KindRelationship = "relationship"
	KindGoal         = "goal"
	KindSkill        = "skill"
	KindEvent        = "event"
)

// Sentiment values recognized on preference facts.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Conversation roles as they appear on turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Fact is a single typed assertion about a subject.
type Fact struct {
	// Kind classifies the fact (identity, preference, ...). Open vocabulary.
	Kind string `json:"kind"`

	// Subject is the entity the fact concerns (name, vehicle, coffee, ...).
	Subject string `json:"subject"`

	// Value is the asserted content.
	Value string `json:"value"`

	// Sentiment is positive, negative, neutral, or empty when unset.
	Sentiment string `json:"sentiment,omitempty"`

	// Confidence is in [0.0, 1.0].
	Confidence float64 `json:"confidence"`

	FirstSeen   time.Time `json:"first_seen,omitzero"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

// Turn is one conversational exchange entry presented to the merge cycle.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryState is the complete per-user memory snapshot.
//
// PendingTurns is scratch input for the current merge cycle only. Every
// pipeline run clears it; it is never durable content in its own right.
type MemoryState struct {
	UserID string `json:"user_id"`

	// Facts in insertion order. Order matters only for display grouping,
	// not for identity.
	Facts []Fact `json:"facts"`

	PendingTurns []Turn `json:"pending_turns,omitempty"`

	LastUpdated time.Time `json:"last_updated,omitzero"`

	// FactCount is derived; the pipeline recomputes it on every run.
	FactCount int `json:"fact_count"`

	// Summary is derived; the pipeline regenerates it on every run.
	Summary string `json:"summary,omitempty"`
}

// NewState returns an empty snapshot for the given user.
func NewState(userID string) *MemoryState {
	return &MemoryState{
		UserID:      userID,
		Facts:       []Fact{},
		LastUpdated: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the state. Stores hand out clones so callers
// can never mutate a cached snapshot in place.
func (s *MemoryState) Clone() *MemoryState {
	if s == nil {
		return nil
	}

	out := *s
	out.Facts = make([]Fact, len(s.Facts))
	copy(out.Facts, s.Facts)

	if s.PendingTurns != nil {
		out.PendingTurns = make([]Turn, len(s.PendingTurns))
		copy(out.PendingTurns, s.PendingTurns)
	}

	return &out
}

// GroupByKind buckets facts by their Kind, preserving insertion order within
// each bucket.
func GroupByKind(facts []Fact) map[string][]Fact {
	groups := make(map[string][]Fact)
	for _, f := range facts {
		groups[f.Kind] = append(groups[f.Kind], f)
	}
	return groups
}

// ByConfidenceDesc returns a copy of facts sorted by descending confidence.
// The sort is stable so equal-confidence facts keep their insertion order.
func ByConfidenceDesc(facts []Fact) []Fact {
	sorted := make([]Fact, len(facts))
	copy(sorted, facts)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	return sorted
}
