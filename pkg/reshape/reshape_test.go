package reshape_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/reshape"
	"github.com/crosspoll/harmonizer/pkg/tables"
	"github.com/crosspoll/harmonizer/pkg/themes"
)

func testClassifier() *mapping.Classifier {
	return mapping.NewClassifier(mapping.WithPeriodColumn("year"))
}

func testThemes(t *testing.T) *themes.Table {
	t.Helper()
	table, err := themes.Parse([]byte(`
q1: LEADERSHIP
q2: ENGAGEMENT
q3: WELLBEING
`))
	require.NoError(t, err)
	return table
}

func TestExplode(t *testing.T) {
	tbl := tables.New("2020", "year", "respondent_id", "gender", "q1", "q2", "q3")
	tbl.Append(tables.Row{"year": "2020", "respondent_id": "r1", "gender": "f",
		"q1": "5", "q3": "3"})
	tbl.Append(tables.Row{"year": "2020", "respondent_id": "r2", "gender": "m",
		"q1": "2", "q2": "4", "q3": "1"})

	set, err := reshape.Explode(tbl, testClassifier())
	require.NoError(t, err)

	assert.Equal(t, tables.Period("2020"), set.Period)
	assert.Equal(t, []string{"year", "respondent_id", "gender"}, set.IdentityCols)

	// r1 answered q1 and q3; the absent q2 produces no row.
	require.Len(t, set.Rows, 5)
	assert.Equal(t, "q1", set.Rows[0].Question)
	assert.Equal(t, 5.0, set.Rows[0].Rating)
	assert.Equal(t, []string{"2020", "r1", "f"}, set.Rows[0].Identity)
	assert.Equal(t, "q3", set.Rows[1].Question)
}

func TestExplodeRowCountInvariant(t *testing.T) {
	tbl := tables.New("2020", "year", "q1", "q2")
	tbl.Append(tables.Row{"year": "2020", "q1": "1", "q2": "2"})
	tbl.Append(tables.Row{"year": "2020", "q1": "3"})
	tbl.Append(tables.Row{"year": "2020"})

	set, err := reshape.Explode(tbl, testClassifier())
	require.NoError(t, err)

	// Exactly one long row per non-absent rating cell.
	assert.Len(t, set.Rows, 3)
}

func TestExplodeNonNumericRating(t *testing.T) {
	tbl := tables.New("2020", "year", "q1")
	tbl.Append(tables.Row{"year": "2020", "q1": "strongly agree"})

	_, err := reshape.Explode(tbl, testClassifier())
	require.Error(t, err)
	assert.True(t, errors.IsExplosionError(err))
	assert.Contains(t, err.Error(), "q1")
	assert.Contains(t, err.Error(), "2020")
}

func TestLabel(t *testing.T) {
	tbl := tables.New("2020", "year", "q1", "q_mystery")
	tbl.Append(tables.Row{"year": "2020", "q1": "4", "q_mystery": "2"})

	set, err := reshape.Explode(tbl, testClassifier())
	require.NoError(t, err)
	reshape.Label(set, testThemes(t))

	assert.Equal(t, themes.Theme("LEADERSHIP"), set.Rows[0].Theme)
	// Unknown question keys get the explicit Unlabeled theme, never dropped.
	assert.Equal(t, themes.Unlabeled, set.Rows[1].Theme)
}

func TestFlatten(t *testing.T) {
	tbl := tables.New("2020", "year", "respondent_id", "q1", "q2")
	tbl.Append(tables.Row{"year": "2020", "respondent_id": "r1", "q1": "5", "q2": "4"})
	tbl.Append(tables.Row{"year": "2020", "respondent_id": "r2", "q1": "3"})

	set, err := reshape.Explode(tbl, testClassifier())
	require.NoError(t, err)
	reshape.Label(set, testThemes(t))

	out, err := reshape.Flatten(set)
	require.NoError(t, err)

	assert.Equal(t, []string{"year", "respondent_id",
		"ENGAGEMENT::q2", "LEADERSHIP::q1"}, out.Columns())
	require.Equal(t, 2, out.Len())

	row0, err := out.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "r1", row0.Value("respondent_id"))
	assert.Equal(t, "5", row0.Value("LEADERSHIP::q1"))
	assert.Equal(t, "4", row0.Value("ENGAGEMENT::q2"))

	row1, err := out.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "3", row1.Value("LEADERSHIP::q1"))
	// r2 never answered q2; the cell stays absent.
	assert.False(t, row1.Has("ENGAGEMENT::q2"))
}

func TestFlattenCollision(t *testing.T) {
	set := &reshape.Exploded{
		Period:       "2020",
		IdentityCols: []string{"year"},
		Rows: []reshape.Row{
			{Identity: []string{"2020"}, Question: "q1", Theme: "LEADERSHIP", Rating: 5},
			{Identity: []string{"2020"}, Question: "q1", Theme: "LEADERSHIP", Rating: 3},
		},
	}

	_, err := reshape.Flatten(set)
	require.Error(t, err)
	assert.True(t, errors.IsFlattenCollision(err))
}

func TestExplodeFlattenRoundTrip(t *testing.T) {
	tbl := tables.New("2019", "year", "respondent_id", "gender", "q1", "q3")
	tbl.Append(tables.Row{"year": "2019", "respondent_id": "r1", "gender": "f", "q1": "4", "q3": "2"})
	tbl.Append(tables.Row{"year": "2019", "respondent_id": "r2", "gender": "m", "q3": "5"})

	set, err := reshape.Explode(tbl, testClassifier())
	require.NoError(t, err)
	reshape.Label(set, testThemes(t))

	out, err := reshape.Flatten(set)
	require.NoError(t, err)

	// Row order and every rating survive the round trip.
	require.Equal(t, tbl.Len(), out.Len())
	for i, row := range tbl.Rows() {
		outRow, err := out.Row(i)
		require.NoError(t, err)
		assert.Equal(t, row.Value("respondent_id"), outRow.Value("respondent_id"))
		for theme, q := range map[string]string{"LEADERSHIP": "q1", "WELLBEING": "q3"} {
			col := reshape.ColumnName(theme, q)
			assert.Equal(t, row.Value(q), outRow.Value(col), "row %d column %s", i, col)
		}
	}
}

func TestSplitColumn(t *testing.T) {
	theme, question, ok := reshape.SplitColumn("LEADERSHIP::q1")
	require.True(t, ok)
	assert.Equal(t, "LEADERSHIP", theme)
	assert.Equal(t, "q1", question)

	_, _, ok = reshape.SplitColumn("respondent_id")
	assert.False(t, ok)
}

func TestFlattenPreservesFractionalRatings(t *testing.T) {
	set := &reshape.Exploded{
		Period:       "2020",
		IdentityCols: []string{"year"},
		Rows: []reshape.Row{
			{Identity: []string{"2020"}, Question: "q1", Theme: "LEADERSHIP", Rating: 3.5},
		},
	}

	out, err := reshape.Flatten(set)
	require.NoError(t, err)
	row, err := out.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "3.5", row.Value("LEADERSHIP::q1"))
}
