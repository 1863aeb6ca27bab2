package mapping

import (
	"sort"

	"github.com/crosspoll/harmonizer/pkg/oracle"
)

// Select produces one canonical mapping from any number of proposals for
// the same key set. The policy per raw key:
//
//  1. Every proposal that covers the key agrees: take the agreed value
//     (unanimous).
//  2. Proposals disagree: take the primary oracle's value if it covered
//     the key (primary).
//  3. The primary did not cover the key: strict majority vote among the
//     covering proposals (majority). A tie is not broken; breaking it
//     lexicographically would be a guess.
//  4. Otherwise the key is unresolved.
//
// Select is a pure function: given the same keys, proposals, and primary
// it always returns the same mapping. Proposal slice order does not
// matter; keys are processed in sorted order.
func Select(kind Kind, keys []string, proposals []*oracle.Proposal, primary oracle.ID) *Canonical {
	canonical := NewCanonical(kind)

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	for _, key := range sorted {
		res, ok := selectKey(key, proposals, primary)
		if !ok {
			canonical.unresolved = append(canonical.unresolved, key)
			continue
		}
		canonical.Set(key, res)
	}
	return canonical
}

// selectKey applies the selection policy to one raw key.
func selectKey(key string, proposals []*oracle.Proposal, primary oracle.ID) (Resolution, bool) {
	// Gather the covering proposals' votes, keyed by canonical value.
	votes := make(map[string][]oracle.ID)
	var covering []oracle.ID
	primaryValue := ""
	primaryCovered := false

	for _, p := range proposals {
		value, ok := p.Get(key)
		if !ok {
			continue
		}
		votes[value] = append(votes[value], p.Oracle)
		covering = append(covering, p.Oracle)
		if p.Oracle == primary {
			primaryValue = value
			primaryCovered = true
		}
	}

	if len(covering) == 0 {
		return Resolution{}, false
	}

	if len(votes) == 1 {
		for value, oracles := range votes {
			return Resolution{
				Canonical: value,
				Reason:    ReasonUnanimous,
				Oracles:   sortedIDs(oracles),
			}, true
		}
	}

	if primaryCovered {
		return Resolution{
			Canonical: primaryValue,
			Reason:    ReasonPrimary,
			Oracles:   sortedIDs(votes[primaryValue]),
		}, true
	}

	// Majority among the remaining proposals; a tie stays unresolved.
	best, bestCount, tied := "", 0, false
	for value, oracles := range votes {
		switch {
		case len(oracles) > bestCount:
			best, bestCount, tied = value, len(oracles), false
		case len(oracles) == bestCount:
			tied = true
		}
	}
	if tied {
		return Resolution{}, false
	}
	return Resolution{
		Canonical: best,
		Reason:    ReasonMajority,
		Oracles:   sortedIDs(votes[best]),
	}, true
}

// sortedIDs returns oracle IDs in sorted order so provenance is stable
// regardless of proposal order.
func sortedIDs(ids []oracle.ID) []oracle.ID {
	out := make([]oracle.ID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
