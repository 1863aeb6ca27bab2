package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspoll/harmonizer/pkg/oracle"
	"github.com/crosspoll/harmonizer/pkg/oracle/rules"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Age Group", "agegroup"},
		{"age_group", "agegroup"},
		{"AGE-GROUP", "agegroup"},
		{"q_trust", "qtrust"},
		{"  gender  ", "gender"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rules.Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestProposeAliasWins(t *testing.T) {
	o := rules.New(
		rules.WithAliases(map[string]string{"gndr": "gender"}),
		rules.WithVocabulary("gender", "age_group"),
	)

	p, err := o.Propose(context.Background(), oracle.Request{
		Keys: []string{"gndr"},
		Kind: "demographic",
	})
	require.NoError(t, err)

	got, ok := p.Get("gndr")
	require.True(t, ok)
	assert.Equal(t, "gender", got)
}

func TestProposeNormalizedLookup(t *testing.T) {
	o := rules.New(rules.WithVocabulary("age_group", "gender"))

	p, err := o.Propose(context.Background(), oracle.Request{
		Keys: []string{"Age Group", "AGE-GROUP", "agegroup"},
		Kind: "demographic",
	})
	require.NoError(t, err)

	for _, key := range []string{"Age Group", "AGE-GROUP", "agegroup"} {
		got, ok := p.Get(key)
		require.True(t, ok, "key %q", key)
		assert.Equal(t, "age_group", got)
	}
}

func TestProposeEditDistance(t *testing.T) {
	o := rules.New(rules.WithVocabulary("gender", "region"))

	p, err := o.Propose(context.Background(), oracle.Request{
		Keys: []string{"gennder"},
		Kind: "demographic",
	})
	require.NoError(t, err)

	got, ok := p.Get("gennder")
	require.True(t, ok)
	assert.Equal(t, "gender", got)
}

func TestProposeOmitsUnmatchable(t *testing.T) {
	o := rules.New(rules.WithVocabulary("gender"))

	p, err := o.Propose(context.Background(), oracle.Request{
		Keys: []string{"favorite_color"},
		Kind: "demographic",
	})
	require.NoError(t, err)

	// Partial proposals are legal; unmatchable keys are omitted, never
	// guessed.
	assert.False(t, p.Covers("favorite_color"))
	assert.Zero(t, p.Len())
}

func TestProposeRefusesShortKeyFuzzing(t *testing.T) {
	// "ag" is within two edits of "age" but the match would cover almost
	// none of the key.
	o := rules.New(rules.WithVocabulary("age"))

	p, err := o.Propose(context.Background(), oracle.Request{
		Keys: []string{"ag"},
		Kind: "demographic",
	})
	require.NoError(t, err)
	assert.False(t, p.Covers("ag"))
}

func TestProposeRequestVocabularyExtends(t *testing.T) {
	o := rules.New()

	p, err := o.Propose(context.Background(), oracle.Request{
		Keys:       []string{"q 1"},
		Kind:       "question",
		Vocabulary: []string{"q1", "q2"},
	})
	require.NoError(t, err)

	got, ok := p.Get("q 1")
	require.True(t, ok)
	assert.Equal(t, "q1", got)
}

func TestProposeDeterministic(t *testing.T) {
	o := rules.New(
		rules.WithAliases(map[string]string{"gndr": "gender"}),
		rules.WithVocabulary("gender", "age_group", "region"),
	)
	req := oracle.Request{
		Keys: []string{"gndr", "age grp", "regon"},
		Kind: "demographic",
	}

	first, err := o.Propose(context.Background(), req)
	require.NoError(t, err)
	second, err := o.Propose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Mappings, second.Mappings)
}

func TestProposeHonorsContext(t *testing.T) {
	o := rules.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Propose(ctx, oracle.Request{Keys: []string{"gndr"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithID(t *testing.T) {
	o := rules.New(rules.WithID("rules-2"))
	assert.Equal(t, oracle.ID("rules-2"), o.ID())
}
