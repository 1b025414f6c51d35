package pipeline

import (
	"strings"

	"github.com/engramhq/engram/pkg/memory"
)

// Per-section item caps for the generated summary.
const (
	maxSummaryPreferences = 5
	maxSummaryGoals       = 3
	maxSummarySkills      = 5
	maxSummaryEvents      = 5
)

// Summarize renders a compact, deterministic natural-language digest of the
// facts, grouped by kind. Preference lines are ordered by descending
// confidence; every other group keeps insertion order. Returns the empty
// string when there are no facts in a summarizable group.
func Summarize(facts []memory.Fact) string {
	groups := memory.GroupByKind(facts)

	var parts []string

	if identity := groups[memory.KindIdentity]; len(identity) > 0 {
		parts = append(parts, "Identity: "+joinSubjectValues(identity, len(identity)))
	}

	if owned := groups[memory.KindOwnership]; len(owned) > 0 {
		parts = append(parts, "Owns: "+joinSubjectValues(owned, len(owned)))
	}

	if rels := groups[memory.KindRelationship]; len(rels) > 0 {
		parts = append(parts, "Relationships: "+joinSubjectValues(rels, len(rels)))
	}

	if prefs := groups[memory.KindPreference]; len(prefs) > 0 {
		var texts []string
		for _, f := range memory.ByConfidenceDesc(prefs) {
			switch f.Sentiment {
			case memory.SentimentPositive:
				texts = append(texts, "likes "+f.Value)
			case memory.SentimentNegative:
				texts = append(texts, "dislikes "+f.Value)
			default:
				texts = append(texts, f.Value)
			}
		}
		parts = append(parts, "Preferences: "+strings.Join(capped(texts, maxSummaryPreferences), ", "))
	}

	if goals := groups[memory.KindGoal]; len(goals) > 0 {
		var texts []string
		for _, f := range goals {
			texts = append(texts, f.Value)
		}
		parts = append(parts, "Goals: "+strings.Join(capped(texts, maxSummaryGoals), ", "))
	}

	if skills := groups[memory.KindSkill]; len(skills) > 0 {
		parts = append(parts, "Skills: "+joinSubjectValues(skills, maxSummarySkills))
	}

	if events := groups[memory.KindEvent]; len(events) > 0 {
		parts = append(parts, "Events: "+joinSubjectValues(events, maxSummaryEvents))
	}

	return strings.Join(parts, "\n")
}

// joinSubjectValues renders up to max "subject: value" entries, comma-joined.
func joinSubjectValues(facts []memory.Fact, max int) string {
	var texts []string
	for _, f := range facts {
		texts = append(texts, f.Subject+": "+f.Value)
	}
	return strings.Join(capped(texts, max), ", ")
}

func capped(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
