package mapping_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

func demographicMapping(entries map[string]string) *mapping.Canonical {
	c := mapping.NewCanonical(mapping.KindDemographic)
	for raw, canonical := range entries {
		c.Set(raw, mapping.Resolution{Canonical: canonical, Reason: mapping.ReasonUnanimous})
	}
	return c
}

func TestApplyRenamesAcrossPeriods(t *testing.T) {
	t2019 := tables.New("2019", "year", "respondent_id", "gndr")
	t2019.Append(tables.Row{"year": "2019", "respondent_id": "r1", "gndr": "f"})
	t2020 := tables.New("2020", "year", "respondent_id", "gender")
	t2020.Append(tables.Row{"year": "2020", "respondent_id": "r1", "gender": "m"})
	reg := tables.NewRegistry(tables.WithTables(t2019, t2020))

	canonical := demographicMapping(map[string]string{"gndr": "gender", "gender": "gender"})
	classifier := mapping.NewClassifier(mapping.WithPeriodColumn("year"))

	report, err := mapping.Apply(reg, canonical, classifier)
	require.NoError(t, err)

	for _, period := range []tables.Period{"2019", "2020"} {
		tbl, ok := reg.Table(period)
		require.True(t, ok)
		assert.True(t, tbl.HasColumn("gender"), "period %s", period)
		assert.False(t, tbl.HasColumn("gndr"), "period %s", period)
	}
	assert.Equal(t, 1, report.Renamed["gender"])
	assert.Empty(t, report.Conflicts)
}

func TestApplyMergesCollidingColumns(t *testing.T) {
	// Both raw spellings appear in one table; post-mapping they collide on
	// age_group and must merge cell-wise.
	tbl := tables.New("2021", "year", "age_grp", "agegroup")
	tbl.Append(tables.Row{"year": "2021", "age_grp": "18-24"})
	tbl.Append(tables.Row{"year": "2021", "agegroup": "25-34"})
	reg := tables.NewRegistry(tables.WithTables(tbl))

	canonical := demographicMapping(map[string]string{"age_grp": "age_group", "agegroup": "age_group"})
	classifier := mapping.NewClassifier(mapping.WithPeriodColumn("year"))

	report, err := mapping.Apply(reg, canonical, classifier)
	require.NoError(t, err)

	out, ok := reg.Table("2021")
	require.True(t, ok)
	assert.Equal(t, []string{"year", "age_group"}, out.Columns())

	row0, err := out.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "18-24", row0.Value("age_group"))
	row1, err := out.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "25-34", row1.Value("age_group"))

	assert.Equal(t, []string{"age_group"}, report.Merged)
	assert.Empty(t, report.Conflicts)
}

func TestApplyConflictMarker(t *testing.T) {
	tbl := tables.New("2021", "year", "age_grp", "agegroup")
	tbl.Append(tables.Row{"year": "2021", "age_grp": "18-24", "agegroup": "25-34"})
	reg := tables.NewRegistry(tables.WithTables(tbl))

	canonical := demographicMapping(map[string]string{"age_grp": "age_group", "agegroup": "age_group"})
	classifier := mapping.NewClassifier(mapping.WithPeriodColumn("year"))

	report, err := mapping.Apply(reg, canonical, classifier)
	require.NoError(t, err)

	// The disagreement stays visible in the data itself.
	out, _ := reg.Table("2021")
	row, err := out.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "!CONFLICT(18-24|25-34)", row.Value("age_group"))

	require.Len(t, report.Conflicts, 1)
	conflict := report.Conflicts[0]
	assert.Equal(t, "2021", conflict.Period)
	assert.Equal(t, "age_group", conflict.Key)
	assert.Equal(t, 0, conflict.Row)
	assert.Equal(t, "18-24", conflict.Left)
	assert.Equal(t, "25-34", conflict.Right)
}

func TestApplyConflictMarkerThreeWay(t *testing.T) {
	// Three raw spellings collide on age_group and all disagree; the
	// marker and the finding carry every distinct value, not just the
	// first pair.
	tbl := tables.New("2021", "year", "age_grp", "agegroup", "age_band")
	tbl.Append(tables.Row{"year": "2021", "age_grp": "18-24", "agegroup": "25-34", "age_band": "35-44"})
	reg := tables.NewRegistry(tables.WithTables(tbl))

	canonical := demographicMapping(map[string]string{
		"age_grp": "age_group", "agegroup": "age_group", "age_band": "age_group",
	})
	report, err := mapping.Apply(reg, canonical, mapping.NewClassifier(mapping.WithPeriodColumn("year")))
	require.NoError(t, err)

	out, _ := reg.Table("2021")
	row, err := out.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "!CONFLICT(18-24|25-34|35-44)", row.Value("age_group"))

	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, []string{"18-24", "25-34", "35-44"}, report.Conflicts[0].Values)
}

func TestApplyRefusesUnresolvedMapping(t *testing.T) {
	tbl := tables.New("2021", "year", "gndr")
	reg := tables.NewRegistry(tables.WithTables(tbl))

	keys := []string{"gndr"}
	canonical := mapping.Select(mapping.KindDemographic, keys, nil, "")
	require.False(t, canonical.Valid())

	_, err := mapping.Apply(reg, canonical, mapping.NewClassifier(mapping.WithPeriodColumn("year")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gndr")

	// The registry is untouched.
	out, _ := reg.Table("2021")
	assert.True(t, out.HasColumn("gndr"))
}

func TestApplyReportsUnmappedColumns(t *testing.T) {
	tbl := tables.New("2021", "year", "gndr", "favorite_color")
	tbl.Append(tables.Row{"year": "2021", "gndr": "f", "favorite_color": "blue"})
	reg := tables.NewRegistry(tables.WithTables(tbl))

	canonical := demographicMapping(map[string]string{"gndr": "gender"})
	classifier := mapping.NewClassifier(mapping.WithPeriodColumn("year"))

	report, err := mapping.Apply(reg, canonical, classifier)
	require.NoError(t, err)

	// Unmapped columns survive untouched and are reported, not fatal.
	out, _ := reg.Table("2021")
	assert.True(t, out.HasColumn("favorite_color"))
	assert.Equal(t, []string{"favorite_color"}, report.Unmapped)
}

func TestApplySkipsOtherKinds(t *testing.T) {
	tbl := tables.New("2021", "year", "gndr", "q1")
	tbl.Append(tables.Row{"year": "2021", "gndr": "f", "q1": "4"})
	reg := tables.NewRegistry(tables.WithTables(tbl))

	canonical := demographicMapping(map[string]string{"gndr": "gender"})
	classifier := mapping.NewClassifier(mapping.WithPeriodColumn("year"))

	report, err := mapping.Apply(reg, canonical, classifier)
	require.NoError(t, err)

	out, _ := reg.Table("2021")
	assert.True(t, out.HasColumn("q1"))
	for _, unmapped := range report.Unmapped {
		assert.False(t, strings.HasPrefix(unmapped, "q"),
			"question columns are not this pass's business")
	}
}

func TestCollect(t *testing.T) {
	t2019 := tables.New("2019", "year", "respondent_id", "gndr", "q1")
	t2020 := tables.New("2020", "year", "respondent_id", "gender", "region", "q1", "q2")
	reg := tables.NewRegistry(tables.WithTables(t2019, t2020))
	classifier := mapping.NewClassifier(mapping.WithPeriodColumn("year"))

	t.Run("demographic keys are distinct, sorted, non-structural", func(t *testing.T) {
		keys := mapping.Collect(reg, mapping.KindDemographic, classifier)
		assert.Equal(t, []string{"gender", "gndr", "region"}, keys)
	})

	t.Run("question keys", func(t *testing.T) {
		keys := mapping.Collect(reg, mapping.KindQuestion, classifier)
		assert.Equal(t, []string{"q1", "q2"}, keys)
	})
}

func TestClassifier(t *testing.T) {
	c := mapping.NewClassifier(mapping.WithPeriodColumn("year"))

	assert.True(t, c.IsStructural("year"))
	assert.True(t, c.IsStructural("respondent_id"))
	assert.True(t, c.IsQuestion("q1"))
	assert.True(t, c.IsQuestion("q_pay"))
	assert.False(t, c.IsQuestion("quarter_start"))

	kind, ok := c.KindOf("gndr")
	require.True(t, ok)
	assert.Equal(t, mapping.KindDemographic, kind)

	kind, ok = c.KindOf("q7")
	require.True(t, ok)
	assert.Equal(t, mapping.KindQuestion, kind)

	_, ok = c.KindOf("year")
	assert.False(t, ok)
}
