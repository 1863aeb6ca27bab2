package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/crosspoll/harmonizer"
	"github.com/crosspoll/harmonizer/internal/config"
	"github.com/crosspoll/harmonizer/internal/store"
	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/logging"
	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/oracle"
	"github.com/crosspoll/harmonizer/pkg/oracle/gemini"
	"github.com/crosspoll/harmonizer/pkg/oracle/httpjson"
	"github.com/crosspoll/harmonizer/pkg/oracle/rules"
	"github.com/crosspoll/harmonizer/pkg/tables"
	"github.com/crosspoll/harmonizer/pkg/themes"
)

// defaultDemographicVocabulary is the canonical demographic key set used
// when no vocabulary is configured.
var defaultDemographicVocabulary = []string{
	"gender", "age_group", "region", "department",
	"tenure", "education", "income", "employment",
}

// defaultDemographicAliases seeds the rules oracle with spellings that
// recur across survey waves.
var defaultDemographicAliases = map[string]string{
	"gndr":      "gender",
	"sex":       "gender",
	"age_grp":   "age_group",
	"agegroup":  "age_group",
	"age_band":  "age_group",
	"dept":      "department",
	"div":       "department",
	"yrs_svc":   "tenure",
	"seniority": "tenure",
	"edu":       "education",
	"area":      "region",
	"location":  "region",
}

// resolveStorePath picks the store path: flag > env > default.
func resolveStorePath() string {
	path := storePath
	if path == "" {
		path = config.GetString(config.EnvStorePath)
	}
	if path == "" {
		path = constants.DefaultStorePath
	}
	return expandHome(path)
}

// expandHome expands a leading ~ to the user home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// openStore opens the SQLite table store.
func openStore() (*store.Store, error) {
	return store.Open(resolveStorePath())
}

// loadThemes loads the theme table: flag > env > embedded default.
func loadThemes() (*themes.Table, error) {
	path := themesPath
	if path == "" {
		path = config.GetString(config.EnvThemesPath)
	}
	if path == "" {
		return themes.Embedded(), nil
	}
	return themes.Load(path)
}

// buildOracles constructs the oracle set from the environment: Gemini
// and the OpenAI-compatible endpoint when their API keys are present,
// plus the deterministic rules oracle as an always-available member.
// With no API keys the run proceeds rules-only, with a warning.
func buildOracles(themeTable *themes.Table) (*oracle.Oracles, error) {
	oracles := oracle.NewOracles()

	if key := config.GeminiAPIKey(); key != "" {
		g, err := gemini.New(key)
		if err != nil {
			return nil, err
		}
		oracles.Add(g)
	}

	if key := config.OpenAIAPIKey(); key != "" {
		opts := []httpjson.Option{}
		if base := config.OpenAIBaseURL(); base != "" {
			opts = append(opts, httpjson.WithBaseURL(base))
		}
		h, err := httpjson.New(key, opts...)
		if err != nil {
			return nil, err
		}
		oracles.Add(h)
	}

	vocabulary := append([]string{}, defaultDemographicVocabulary...)
	vocabulary = append(vocabulary, themeTable.Questions()...)
	oracles.Add(rules.New(
		rules.WithAliases(defaultDemographicAliases),
		rules.WithVocabulary(vocabulary...),
	))

	if oracles.Len() == 1 {
		logging.Warn().Msg("No oracle API keys configured; using the offline rules oracle only")
	}

	if primary := config.GetString(config.EnvPrimaryOracle); primary != "" {
		if err := oracles.SetPrimary(oracle.ID(primary)); err != nil {
			return nil, err
		}
	} else if _, ok := oracles.Get(constants.DefaultPrimaryOracle); ok {
		_ = oracles.SetPrimary(constants.DefaultPrimaryOracle)
	}
	return oracles, nil
}

// newHarmonizer assembles a Harmonizer over a loaded registry.
func newHarmonizer(reg *tables.Registry) (harmonizer.Harmonizer, *themes.Table, error) {
	themeTable, err := loadThemes()
	if err != nil {
		return nil, nil, err
	}
	oracles, err := buildOracles(themeTable)
	if err != nil {
		return nil, nil, err
	}

	h, err := harmonizer.New(
		harmonizer.WithRegistry(reg),
		harmonizer.WithOracles(oracles),
		harmonizer.WithThemes(themeTable),
		harmonizer.WithVocabulary(mapping.KindDemographic, defaultDemographicVocabulary...),
	)
	if err != nil {
		return nil, nil, err
	}
	return h, themeTable, nil
}
