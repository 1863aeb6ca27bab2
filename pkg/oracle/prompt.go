package oracle

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the shared proposal prompt used by model-backed
// oracle backends. The prompt demands a pure JSON object so responses
// survive ExtractMappings.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are harmonizing column names across survey datasets from different years.\n")
	fmt.Fprintf(&b, "Map each raw %s column key below to its canonical cross-year key.\n\n", req.Kind)

	if req.Hint != "" {
		fmt.Fprintf(&b, "Context: %s\n\n", req.Hint)
	}

	b.WriteString("Raw keys:\n")
	for _, k := range req.Keys {
		fmt.Fprintf(&b, "- %s\n", k)
	}

	if len(req.Vocabulary) > 0 {
		b.WriteString("\nCanonical vocabulary (use only these values):\n")
		for _, v := range req.Vocabulary {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}

	b.WriteString("\nRespond with a single JSON object mapping every raw key you can ")
	b.WriteString("confidently map to its canonical key. Omit keys you are unsure about. ")
	b.WriteString("Do not invent keys that were not listed. No prose, no markdown, JSON only.")

	return b.String()
}
