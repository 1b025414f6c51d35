// Package schema tracks the memory data model's version history.
//
// The migration list is an append-only audit log. Applying a migration only
// records that a conceptual schema boundary was crossed — no data transform
// runs automatically. The open fact schema stays forward- and
// backward-readable across versions; any future destructive migration must
// ship as an explicit, separately tested batch transform.
package schema

// Version is the current memory schema version. Increment it and append a
// Migration entry when making a breaking change to the data structure.
const Version = 4

// Change describes one structured entry in a migration's change list.
type Change struct {
	Type        string `json:"type"`
	Entity      string `json:"entity,omitempty"`
	Field       string `json:"field,omitempty"`
	Old         string `json:"old,omitempty"`
	New         string `json:"new,omitempty"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Migration is one historical schema revision.
type Migration struct {
	Version     int      `json:"version"`
	Description string   `json:"description"`
	Changes     []Change `json:"changes"`
}

// Migrations is the complete revision history, ascending by version.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with first_seen/last_updated fields",
		Changes:     []Change{},
	},
	{
		Version:     2,
		Description: "Preference evolution tracking - keep all data points",
		Changes: []Change{
			{Type: "field_rename", Entity: "Preference", Old: "first_mentioned", New: "mentioned_at"},
			{Type: "field_remove", Entity: "Preference", Field: "last_updated"},
			{Type: "field_add", Entity: "Preference", Field: "context", Default: "null"},
			{Type: "behavior_change", Entity: "Preference", Description: "No longer deduplicate - keep all entries for evolution tracking"},
		},
	},
	{
		Version:     3,
		Description: "Simplified to flexible fact-based schema",
		Changes: []Change{
			{Type: "schema_change", Description: "Replaced rigid types with generic Fact"},
			{Type: "behavior_change", Description: "Facts deduplicated by (kind, subject, value)"},
		},
	},
	{
		Version:     4,
		Description: "LLM-powered semantic merge replaces code-based deduplication",
		Changes: []Change{
			{Type: "behavior_change", Description: "LLM merges existing facts with new extractions"},
			{Type: "stage_removed", Description: "Removed the deduplication pipeline stage"},
		},
	},
}

// Pending returns the migrations with a version greater than current, in
// ascending order. An up-to-date ledger yields an empty slice.
func Pending(current int) []Migration {
	var pending []Migration
	for _, m := range Migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending
}
