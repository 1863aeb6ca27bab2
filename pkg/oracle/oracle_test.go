package oracle_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/oracle"
)

// stubOracle returns a fixed proposal or error.
type stubOracle struct {
	id       oracle.ID
	mappings map[string]string
	err      error
}

func (s *stubOracle) ID() oracle.ID {
	return s.id
}

func (s *stubOracle) Propose(_ context.Context, req oracle.Request) (*oracle.Proposal, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := oracle.NewProposal(s.id, req.Kind)
	for k, v := range s.mappings {
		p.Mappings[k] = v
	}
	return p, nil
}

func TestProposalValidate(t *testing.T) {
	req := oracle.Request{Keys: []string{"gndr", "age_grp"}, Kind: "demographic"}

	t.Run("valid partial proposal", func(t *testing.T) {
		p := oracle.NewProposal(oracle.RulesID, "demographic")
		p.Mappings["gndr"] = "gender"
		assert.NoError(t, p.Validate(req))
	})

	t.Run("keys outside the requested set are malformed", func(t *testing.T) {
		p := oracle.NewProposal(oracle.RulesID, "demographic")
		p.Mappings["invented"] = "gender"
		err := p.Validate(req)
		require.Error(t, err)
		assert.True(t, errors.IsOracleMalformed(err))
	})

	t.Run("empty canonical values are malformed", func(t *testing.T) {
		p := oracle.NewProposal(oracle.RulesID, "demographic")
		p.Mappings["gndr"] = ""
		err := p.Validate(req)
		require.Error(t, err)
		assert.True(t, errors.IsOracleMalformed(err))
	})
}

func TestOraclesPrimary(t *testing.T) {
	oracles := oracle.NewOracles(
		&stubOracle{id: oracle.GeminiID},
		&stubOracle{id: oracle.RulesID},
	)

	// First added is primary by default.
	assert.Equal(t, oracle.GeminiID, oracles.Primary())

	require.NoError(t, oracles.SetPrimary(oracle.RulesID))
	assert.Equal(t, oracle.RulesID, oracles.Primary())

	err := oracles.SetPrimary("unknown")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestProposeAll(t *testing.T) {
	req := oracle.Request{Keys: []string{"gndr"}, Kind: "demographic"}

	t.Run("collects proposals in registration order", func(t *testing.T) {
		oracles := oracle.NewOracles(
			&stubOracle{id: oracle.GeminiID, mappings: map[string]string{"gndr": "gender"}},
			&stubOracle{id: oracle.RulesID, mappings: map[string]string{"gndr": "gender"}},
		)

		proposals, err := oracles.ProposeAll(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, proposals, 2)
		assert.Equal(t, oracle.GeminiID, proposals[0].Oracle)
		assert.Equal(t, oracle.RulesID, proposals[1].Oracle)
	})

	t.Run("partial failure returns surviving proposals and joined error", func(t *testing.T) {
		oracles := oracle.NewOracles(
			&stubOracle{id: oracle.GeminiID, err: errors.NewOracleError("gemini", 503, "down")},
			&stubOracle{id: oracle.RulesID, mappings: map[string]string{"gndr": "gender"}},
		)

		proposals, err := oracles.ProposeAll(context.Background(), req)
		require.Error(t, err)
		require.Len(t, proposals, 1)
		assert.Equal(t, oracle.RulesID, proposals[0].Oracle)
	})

	t.Run("malformed proposals are dropped, never passed through", func(t *testing.T) {
		oracles := oracle.NewOracles(
			&stubOracle{id: oracle.GeminiID, mappings: map[string]string{"outside": "gender"}},
			&stubOracle{id: oracle.RulesID, mappings: map[string]string{"gndr": "gender"}},
		)

		proposals, err := oracles.ProposeAll(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.IsOracleMalformed(err))
		require.Len(t, proposals, 1)
		assert.Equal(t, oracle.RulesID, proposals[0].Oracle)
	})
}

// echoOracle maps every requested key to itself and records the key
// count of each call.
type echoOracle struct {
	id    oracle.ID
	mu    sync.Mutex
	calls []int
}

func (e *echoOracle) ID() oracle.ID {
	return e.id
}

func (e *echoOracle) Propose(_ context.Context, req oracle.Request) (*oracle.Proposal, error) {
	e.mu.Lock()
	e.calls = append(e.calls, len(req.Keys))
	e.mu.Unlock()

	p := oracle.NewProposal(e.id, req.Kind)
	for _, k := range req.Keys {
		p.Mappings[k] = k
	}
	return p, nil
}

func TestProposeAllChunksLargeKeySets(t *testing.T) {
	keys := make([]string, constants.MaxKeysPerRequest+50)
	for i := range keys {
		keys[i] = fmt.Sprintf("col_%03d", i)
	}
	echo := &echoOracle{id: oracle.RulesID}
	oracles := oracle.NewOracles(echo)

	proposals, err := oracles.ProposeAll(context.Background(),
		oracle.Request{Keys: keys, Kind: "demographic"})
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	// The merged proposal covers every key across both chunk calls.
	assert.Equal(t, len(keys), proposals[0].Len())
	assert.Equal(t, []int{constants.MaxKeysPerRequest, 50}, echo.calls)
}

func TestExtractMappings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "bare object",
			content: `{"gndr": "gender"}`,
			want:    map[string]string{"gndr": "gender"},
		},
		{
			name: "markdown fenced",
			content: "Here is the mapping:\n```json\n" +
				`{"gndr": "gender", "age_grp": "age_group"}` + "\n```\nDone.",
			want: map[string]string{"gndr": "gender", "age_grp": "age_group"},
		},
		{
			name:    "trailing comma tolerated",
			content: `{"gndr": "gender",}`,
			want:    map[string]string{"gndr": "gender"},
		},
		{
			name:    "surrounding prose tolerated",
			content: `The best mapping is {"gndr": "gender"} as requested.`,
			want:    map[string]string{"gndr": "gender"},
		},
		{
			name:    "whitespace trimmed from values",
			content: `{"gndr": " gender "}`,
			want:    map[string]string{"gndr": "gender"},
		},
		{
			name:    "no object at all",
			content: "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "non-string value",
			content: `{"gndr": 42}`,
			wantErr: true,
		},
		{
			name:    "broken JSON",
			content: `{"gndr": "gender"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oracle.ExtractMappings(oracle.GeminiID, tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsOracleMalformed(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := oracle.BuildPrompt(oracle.Request{
		Keys:       []string{"gndr", "age_grp"},
		Kind:       "demographic",
		Hint:       "employee survey",
		Vocabulary: []string{"gender", "age_group"},
	})

	assert.Contains(t, prompt, "gndr")
	assert.Contains(t, prompt, "age_grp")
	assert.Contains(t, prompt, "gender")
	assert.Contains(t, prompt, "employee survey")
	assert.Contains(t, prompt, "demographic")
}
