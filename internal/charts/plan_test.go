package charts

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func strp(s string) *string { return &s }

func fixtureTable(t *testing.T) *analysis.Table {
	t.Helper()
	csv := "day,region,units,price\n" +
		"2024-01-01,north,1,9.5\n" +
		"2024-01-02,south,2,10\n" +
		"2024-01-03,north,3,11\n" +
		"2024-01-04,east,4,12\n"
	tbl, err := analysis.LoadCSV(strings.NewReader(csv), "fixture.csv", analysis.Options{})
	require.NoError(t, err)
	return tbl
}

func TestValidateDropsUnknownColumnKeepsOrder(t *testing.T) {
	tbl := fixtureTable(t)
	descs := []Descriptor{
		{Title: "Units by region", Type: "bar", X: strp("region"), Y: strp("units")},
		{Title: "Ghost", Type: "bar", X: strp("nope"), Y: strp("units")},
		{Title: "Price over time", Type: "line", X: strp("day"), Y: strp("price")},
	}
	plan := Validate(descs, tbl, zap.NewNop())
	require.Len(t, plan, 2)
	assert.Equal(t, "Units by region", plan[0].Title())
	assert.Equal(t, "Price over time", plan[1].Title())
	assert.Equal(t, Line, plan[1].Type())
}

func TestValidateRules(t *testing.T) {
	tbl := fixtureTable(t)
	cases := []struct {
		name string
		d    Descriptor
		ok   bool
	}{
		{"histogram ignores y", Descriptor{Type: "histogram", X: strp("units"), Y: strp("missing")}, true},
		{"hist alias", Descriptor{Type: "hist", X: strp("units")}, true},
		{"timeseries alias", Descriptor{Type: "timeseries", X: strp("day"), Y: strp("units")}, true},
		{"upper case type", Descriptor{Type: "Scatter", X: strp("units"), Y: strp("price")}, true},
		{"pie unsupported", Descriptor{Type: "pie", X: strp("region"), Y: strp("units")}, false},
		{"box unsupported", Descriptor{Type: "box", X: strp("units"), Y: strp("price")}, false},
		{"empty type", Descriptor{X: strp("units")}, false},
		{"nil x", Descriptor{Type: "histogram"}, false},
		{"bar without y", Descriptor{Type: "bar", X: strp("region")}, false},
		{"scatter dangling y", Descriptor{Type: "scatter", X: strp("units"), Y: strp("cost")}, false},
		{"case sensitive columns", Descriptor{Type: "histogram", X: strp("Units")}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			plan := Validate([]Descriptor{c.d}, tbl, nil)
			if c.ok {
				assert.Len(t, plan, 1)
			} else {
				assert.Empty(t, plan)
			}
		})
	}
}

func TestValidateEntryFields(t *testing.T) {
	tbl := fixtureTable(t)
	plan := Validate([]Descriptor{
		{Title: "  ", Type: "histogram", X: strp("units"), Y: strp("price")},
		{Title: "Scatter", Type: "scatter", X: strp("units"), Y: strp("price")},
	}, tbl, nil)
	require.Len(t, plan, 2)

	assert.Equal(t, "Untitled Chart", plan[0].Title())
	assert.Equal(t, Histogram, plan[0].Type())
	_, hasY := plan[0].Y()
	assert.False(t, hasY)

	y, hasY := plan[1].Y()
	assert.True(t, hasY)
	assert.Equal(t, "price", y)
	assert.Equal(t, "units", plan[1].X())
}

func TestValidateLogsDrops(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tbl := fixtureTable(t)
	Validate([]Descriptor{{Title: "Pie", Type: "pie", X: strp("region")}}, tbl, zap.New(core))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dropping chart suggestion", entry.Message)
	assert.Equal(t, "pie", entry.ContextMap()["type"])
}
