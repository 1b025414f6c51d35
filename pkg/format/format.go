// Package format projects a memory snapshot into text suitable for injection
// into a conversation's context window.
//
// Render is a pure function with three mutually exclusive modes. It returns
// the empty string when the snapshot has no facts — callers must not inject
// an empty or near-empty block into context.
package format

import (
	"fmt"
	"strings"

	"github.com/engramhq/engram/pkg/memory"
)

// Mode selects the injection rendering.
type Mode string

const (
	// ModeStructured renders fixed-order labeled sections with per-section
	// item caps.
	ModeStructured Mode = "structured"

	// ModeNatural wraps the precomputed summary in a narrative preamble.
	ModeNatural Mode = "natural"

	// ModeBullet wraps the precomputed summary with a terser preamble.
	ModeBullet Mode = "bullet"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStructured, ModeNatural, ModeBullet:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown injection format: %q (supported: structured, natural, bullet)", s)
	}
}

// Per-section item caps for structured rendering. Identity is capped by
// Options.MaxIdentity instead.
const (
	maxOwnership     = 5
	maxRelationships = 5
	maxPreferences   = 5
	maxSkills        = 5
	maxGoals         = 3
	maxEvents        = 5
)

const defaultMaxIdentity = 10

// Options tunes structured rendering.
type Options struct {
	// MaxIdentity caps the identity section. Defaults to 10.
	MaxIdentity int
}

// Render projects the snapshot into the requested mode. Passing an unknown
// mode falls back to structured.
func Render(state *memory.MemoryState, mode Mode, opts Options) string {
	if state == nil || len(state.Facts) == 0 {
		return ""
	}

	switch mode {
	case ModeNatural:
		return renderNatural(state)
	case ModeBullet:
		return renderBullet(state)
	default:
		return renderStructured(state, opts)
	}
}

func renderNatural(state *memory.MemoryState) string {
	return fmt.Sprintf(`Based on previous conversations, I know the following about you:

%s

I'll use this context to personalize my responses.`, state.Summary)
}

func renderBullet(state *memory.MemoryState) string {
	return "Previous conversations revealed:\n" + state.Summary
}

func renderStructured(state *memory.MemoryState, opts Options) string {
	maxIdentity := opts.MaxIdentity
	if maxIdentity <= 0 {
		maxIdentity = defaultMaxIdentity
	}

	groups := memory.GroupByKind(state.Facts)
	parts := []string{"=== USER MEMORY PROFILE ===\n"}

	if identity := groups[memory.KindIdentity]; len(identity) > 0 {
		parts = append(parts, "About You:")
		for _, f := range capped(identity, maxIdentity) {
			parts = append(parts, "  - "+title(f.Subject)+": "+f.Value)
		}
	}

	if owned := groups[memory.KindOwnership]; len(owned) > 0 {
		parts = append(parts, "\nYou Own:")
		for _, f := range capped(owned, maxOwnership) {
			parts = append(parts, "  - "+f.Value)
		}
	}

	if rels := groups[memory.KindRelationship]; len(rels) > 0 {
		parts = append(parts, "\nRelationships:")
		for _, f := range capped(rels, maxRelationships) {
			parts = append(parts, "  - "+title(f.Subject)+": "+f.Value)
		}
	}

	if prefs := groups[memory.KindPreference]; len(prefs) > 0 {
		parts = append(parts, "\nPreferences:")
		for _, f := range capped(memory.ByConfidenceDesc(prefs), maxPreferences) {
			switch f.Sentiment {
			case memory.SentimentPositive:
				parts = append(parts, "  - Likes: "+f.Value)
			case memory.SentimentNegative:
				parts = append(parts, "  - Dislikes: "+f.Value)
			default:
				parts = append(parts, "  - "+title(f.Subject)+": "+f.Value)
			}
		}
	}

	if skills := groups[memory.KindSkill]; len(skills) > 0 {
		parts = append(parts, "\nSkills/Interests:")
		for _, f := range capped(skills, maxSkills) {
			parts = append(parts, "  - "+f.Value)
		}
	}

	if goals := groups[memory.KindGoal]; len(goals) > 0 {
		parts = append(parts, "\nGoals:")
		for _, f := range capped(goals, maxGoals) {
			parts = append(parts, "  - "+f.Value)
		}
	}

	if events := groups[memory.KindEvent]; len(events) > 0 {
		parts = append(parts, "\nImportant Dates:")
		for _, f := range capped(events, maxEvents) {
			parts = append(parts, "  - "+title(f.Subject)+": "+f.Value)
		}
	}

	parts = append(parts, "\n=== END MEMORY PROFILE ===")

	return strings.Join(parts, "\n")
}

func capped(facts []memory.Fact, max int) []memory.Fact {
	if len(facts) > max {
		return facts[:max]
	}
	return facts
}

// title upper-cases the first letter of each space-separated word, matching
// how section entries label their subjects.
func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
