package charts

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func assertPNG(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, pngMagic), "%s is not a PNG", path)
}

func TestRenderAllTypes(t *testing.T) {
	tbl := fixtureTable(t)
	plan := Validate([]Descriptor{
		{Title: "Units by region", Type: "bar", X: strp("region"), Y: strp("units")},
		{Title: "Price over time", Type: "line", X: strp("day"), Y: strp("price")},
		{Title: "Price vs units", Type: "line", X: strp("units"), Y: strp("price")},
		{Title: "Units by region line", Type: "line", X: strp("region"), Y: strp("units")},
		{Title: "Units/Price", Type: "scatter", X: strp("units"), Y: strp("price")},
		{Title: "Units distribution", Type: "histogram", X: strp("units")},
	}, tbl, nil)
	require.Len(t, plan, 6)

	dir := filepath.Join(t.TempDir(), "charts")
	res, err := NewRenderer(RenderConfig{}, zap.NewNop()).Render(plan, tbl, dir)
	require.NoError(t, err)
	require.Len(t, res, 6)
	for i, r := range res {
		assert.Equal(t, plan[i].Title(), r.Entry.Title())
		assertPNG(t, r.ArtifactPath)
	}
	assert.Equal(t, filepath.Join(dir, "UnitsPrice.png"), res[4].ArtifactPath)
}

func TestRenderSkipsFailingEntry(t *testing.T) {
	csv := "a,b,c\n1,NA,x\n2,,y\n3,NaN,z\n"
	tbl, err := analysis.LoadCSV(strings.NewReader(csv), "f.csv", analysis.Options{})
	require.NoError(t, err)
	plan := Validate([]Descriptor{
		{Title: "First", Type: "histogram", X: strp("a")},
		{Title: "Empty", Type: "histogram", X: strp("b")},
		{Title: "Third", Type: "bar", X: strp("c"), Y: strp("a")},
	}, tbl, nil)
	require.Len(t, plan, 3)

	res, err := NewRenderer(RenderConfig{}, nil).Render(plan, tbl, t.TempDir())
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "First", res[0].Entry.Title())
	assert.Equal(t, "Third", res[1].Entry.Title())
}

func TestRenderIdempotentNames(t *testing.T) {
	tbl := fixtureTable(t)
	plan := Validate([]Descriptor{
		{Title: "Units", Type: "histogram", X: strp("units")},
		{Title: "Units", Type: "histogram", X: strp("price")},
		{Title: "???", Type: "histogram", X: strp("price")},
	}, tbl, nil)
	dir := t.TempDir()
	r := NewRenderer(RenderConfig{Width: 320, Height: 240}, nil)

	names := func() []string {
		res, err := r.Render(plan, tbl, dir)
		require.NoError(t, err)
		out := make([]string, len(res))
		for i, x := range res {
			out[i] = filepath.Base(x.ArtifactPath)
		}
		return out
	}
	first := names()
	second := names()
	assert.Equal(t, []string{"Units.png", "Units_2.png", "chart.png"}, first)
	assert.Equal(t, first, second)
}

func TestRenderSinglePointAndConstant(t *testing.T) {
	csv := "k,v\nonly,5\n"
	tbl, err := analysis.LoadCSV(strings.NewReader(csv), "one.csv", analysis.Options{})
	require.NoError(t, err)
	plan := Validate([]Descriptor{
		{Title: "bar", Type: "bar", X: strp("k"), Y: strp("v")},
		{Title: "line", Type: "line", X: strp("k"), Y: strp("v")},
		{Title: "scatter", Type: "scatter", X: strp("v"), Y: strp("v")},
		{Title: "hist", Type: "histogram", X: strp("v")},
	}, tbl, nil)
	res, err := NewRenderer(RenderConfig{}, nil).Render(plan, tbl, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, res, 4)
}

func TestScatterNeedsNumericPairs(t *testing.T) {
	tbl := fixtureTable(t)
	plan := Validate([]Descriptor{{Title: "bad", Type: "scatter", X: strp("region"), Y: strp("units")}}, tbl, nil)
	require.Len(t, plan, 1)
	res, err := NewRenderer(RenderConfig{}, nil).Render(plan, tbl, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestPositionTicks(t *testing.T) {
	labels := make([]string, 45)
	for i := range labels {
		labels[i] = string(rune('a' + i%26))
	}
	ticks := positionTicks(labels)
	assert.LessOrEqual(t, len(ticks), maxLineTicks+1)
	assert.Equal(t, 0.0, ticks[0].Value)
	assert.Equal(t, 44.0, ticks[len(ticks)-1].Value)

	one := positionTicks([]string{"x"})
	require.Len(t, one, 2)
	assert.Equal(t, 1.0, one[1].Value)
}

func TestRenderSuffixDoesNotCollideWithTitle(t *testing.T) {
	tbl := fixtureTable(t)
	plan := Validate([]Descriptor{
		{Title: "Units", Type: "histogram", X: strp("units")},
		{Title: "Units", Type: "histogram", X: strp("price")},
		{Title: "Units 2", Type: "bar", X: strp("region"), Y: strp("units")},
		{Title: "units", Type: "histogram", X: strp("units")},
	}, tbl, nil)
	require.Len(t, plan, 4)

	res, err := NewRenderer(RenderConfig{Width: 320, Height: 240}, nil).Render(plan, tbl, t.TempDir())
	require.NoError(t, err)
	require.Len(t, res, 4)
	seen := map[string]bool{}
	for _, r := range res {
		key := strings.ToLower(r.ArtifactPath)
		assert.False(t, seen[key], "duplicate artifact %s", r.ArtifactPath)
		seen[key] = true
		assertPNG(t, r.ArtifactPath)
	}
	assert.Equal(t, "Units_2.png", filepath.Base(res[1].ArtifactPath))
	assert.Equal(t, "Units_2_2.png", filepath.Base(res[2].ArtifactPath))
	assert.Equal(t, "units_3.png", filepath.Base(res[3].ArtifactPath))
}

func TestRenderLongUnicodeTitle(t *testing.T) {
	tbl := fixtureTable(t)
	plan := Validate([]Descriptor{{Title: strings.Repeat("销", 90), Type: "histogram", X: strp("units")}}, tbl, nil)
	res, err := NewRenderer(RenderConfig{}, nil).Render(plan, tbl, t.TempDir())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assertPNG(t, res[0].ArtifactPath)
}

func TestRenderHistogramExtremeRange(t *testing.T) {
	tbl, err := analysis.LoadCSV(strings.NewReader("v\n-1e308\n0\n1e308\n"), "wide.csv", analysis.Options{})
	require.NoError(t, err)
	plan := Validate([]Descriptor{{Title: "Wide", Type: "histogram", X: strp("v")}}, tbl, nil)
	res, err := NewRenderer(RenderConfig{}, nil).Render(plan, tbl, t.TempDir())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assertPNG(t, res[0].ArtifactPath)
}

func TestRenderBarKeepsEveryGroup(t *testing.T) {
	var b strings.Builder
	b.WriteString("k,v\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "g%02d,%d\n", i, i+1)
	}
	tbl, err := analysis.LoadCSV(strings.NewReader(b.String()), "groups.csv", analysis.Options{})
	require.NoError(t, err)
	plan := Validate([]Descriptor{{Title: "Many", Type: "bar", X: strp("k"), Y: strp("v")}}, tbl, nil)
	res, err := NewRenderer(RenderConfig{}, nil).Render(plan, tbl, t.TempDir())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assertPNG(t, res[0].ArtifactPath)
}
