package oracle

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/crosspoll/harmonizer/pkg/errors"
)

// Model-backed oracles return JSON wrapped in prose, markdown fences,
// or with trailing commas. The extraction here tolerates those artifacts
// but nothing looser: if no JSON object can be recovered, the proposal
// is malformed.
var (
	// fencedObjectPattern matches a JSON object inside a markdown code block.
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// bareObjectPattern matches any JSON object (greedy fallback).
	bareObjectPattern = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// trailingCommaPattern matches trailing commas before } or ].
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractMappings recovers a string-to-string mapping from a model
// response. Returns a malformed-proposal error when no valid JSON object
// can be extracted or when any value is not a string.
func ExtractMappings(oracle ID, content string) (map[string]string, error) {
	raw := extractObject(content)
	if raw == "" {
		return nil, errors.NewMalformedProposalError(string(oracle),
			"response contains no JSON object", nil)
	}
	raw = trailingCommaPattern.ReplaceAllString(raw, "$1")

	// Decode into interface values first so a non-string value yields a
	// named key in the error instead of a bare unmarshal failure.
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, &errors.MalformedProposalError{
			Oracle: string(oracle),
			Reason: "response is not a valid JSON object",
			Err:    err,
		}
	}

	mappings := make(map[string]string, len(generic))
	var bad []string
	for k, v := range generic {
		s, ok := v.(string)
		if !ok {
			bad = append(bad, k)
			continue
		}
		mappings[k] = strings.TrimSpace(s)
	}
	if len(bad) > 0 {
		return nil, errors.NewMalformedProposalError(string(oracle),
			"mapping values must be strings", bad)
	}
	return mappings, nil
}

// extractObject pulls the raw JSON object text out of a response.
func extractObject(content string) string {
	if matches := fencedObjectPattern.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}
	return bareObjectPattern.FindString(content)
}
