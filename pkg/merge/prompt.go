package merge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/engramhq/engram/pkg/memory"
)

// promptInstructions tells the collaborator to return the complete merged
// fact list, not a delta. Wholesale replacement keeps conflict resolution
// ("user no longer owns X") semantic instead of code-based.
const promptInstructions = `Return the COMPLETE MERGED fact list as JSON. Update existing facts if changed, remove if contradicted, add new ones.

{"facts": [...]}`

// buildPrompt renders the merge request payload: the full existing fact set,
// the new conversation window, and the merge instructions.
func buildPrompt(existing []memory.Fact, turns []memory.Turn) (string, error) {
	if existing == nil {
		existing = []memory.Fact{}
	}
	if turns == nil {
		turns = []memory.Turn{}
	}

	existingJSON, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding existing facts: %w", err)
	}

	turnsJSON, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding conversation turns: %w", err)
	}

	var b strings.Builder
	b.WriteString("EXISTING FACTS:\n")
	b.Write(existingJSON)
	b.WriteString("\n\nNEW CONVERSATION:\n")
	b.Write(turnsJSON)
	b.WriteString("\n\n")
	b.WriteString(promptInstructions)

	return b.String(), nil
}
