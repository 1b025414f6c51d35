package merge

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// stripFences removes optional markdown code-fence wrapping (``` or
// ```json) from a collaborator reply, returning the inner text trimmed.
func stripFences(reply string) string {
	cleaned := strings.TrimSpace(reply)

	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) > 2 {
			lines = lines[1 : len(lines)-1]
		}
		cleaned = strings.Join(lines, "\n")
	}

	// A bare "json" language tag can survive fence stripping.
	cleaned = strings.TrimSpace(cleaned)
	if rest, ok := strings.CutPrefix(cleaned, "json"); ok {
		cleaned = strings.TrimSpace(rest)
	}

	return cleaned
}

// repairJSON attempts to fix common LLM JSON defects (trailing commas,
// single quotes, unquoted keys) so a retry parse can succeed.
func repairJSON(s string) (string, error) {
	return jsonrepair.JSONRepair(s)
}
