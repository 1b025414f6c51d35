package memory

import "time"

// DefaultConfidence is assigned to facts the collaborator returned without a
// confidence score. The defaulting happens where the collaborator reply is
// decoded; by the time a fact reaches Normalize an explicit 0.0 is a real
// score, not an absent one.
const DefaultConfidence = 0.8

// Normalize validates and normalizes a raw fact at commit time.
//
// Facts missing a kind or subject are rejected (ok=false) — callers drop and
// log them, they are never persisted. For accepted facts: FirstSeen is filled
// with now when absent, LastUpdated is always overwritten with now, and
// Confidence is clamped into [0, 1]. No deduplication happens here; merge
// resolution is entirely the extraction collaborator's job.
func Normalize(f Fact, now time.Time) (Fact, bool) {
	if f.Kind == "" || f.Subject == "" {
		return Fact{}, false
	}

	if f.FirstSeen.IsZero() {
		f.FirstSeen = now
	}
	f.LastUpdated = now

	switch {
	case f.Confidence < 0:
		f.Confidence = 0
	case f.Confidence > 1:
		f.Confidence = 1
	}

	return f, true
}
