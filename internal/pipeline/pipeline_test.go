package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/reportloom-cli/internal/ai"
	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = `date,region,units,revenue
2024-01-01,North,10,"$1,200.50"
2024-01-02,South,12,$980.00
2024-01-03,North,8,$1010.25
2024-01-04,East,15,"$1,500.00"
2024-01-05,South,11,$1100.00
`

type failingRuntime struct{}

func (failingRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return nil, errors.New("provider down")
}

func newPipeline(t *testing.T, rt ai.Runtime, cfg Config) *Pipeline {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	p := New(cfg, ai.NewAdvisor(rt, ai.AdvisorOptions{Model: "none"}, nil), nil)
	p.now = func() time.Time { return time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestRunOffline(t *testing.T) {
	p := newPipeline(t, ai.NewHeuristicRuntime(), Config{CleanNumeric: []string{"revenue", "nope"}})
	res, err := p.Run(context.Background(), Request{Agent: "Jane Doe", Filename: "sales.csv", Body: strings.NewReader(salesCSV)})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Metrics.RowCount)
	assert.Contains(t, res.Metrics.NumericStats, "revenue")
	assert.InDelta(t, 1158.15, res.Metrics.NumericStats["revenue"].Mean, 1e-9)
	assert.Contains(t, res.Summary, "5 rows across 4 columns")

	require.NotEmpty(t, res.Plan)
	assert.Len(t, res.Charts, len(res.Plan))
	for _, path := range res.ChartPaths() {
		assert.Equal(t, res.Dir, filepath.Dir(path))
		assert.FileExists(t, path)
	}

	assert.Equal(t, filepath.Join(res.Dir, "report_Jane_Doe_2024-05-06.pdf"), res.ReportPath)
	b, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}

func TestRunAdvisorDown(t *testing.T) {
	p := newPipeline(t, failingRuntime{}, Config{})
	res, err := p.Run(context.Background(), Request{Filename: "sales.csv", Body: strings.NewReader(salesCSV)})
	require.NoError(t, err)
	assert.Equal(t, DefaultAgent, res.Agent)
	assert.Equal(t, ai.SummaryFallback, res.Summary)
	assert.Empty(t, res.Plan)
	assert.Empty(t, res.Charts)
	assert.FileExists(t, res.ReportPath)
	assert.Equal(t, "report_Unknown_Agent_2024-05-06.pdf", filepath.Base(res.ReportPath))
}

func TestRunUnreadable(t *testing.T) {
	p := newPipeline(t, ai.NewHeuristicRuntime(), Config{})
	_, err := p.Run(context.Background(), Request{Filename: "empty.csv", Body: strings.NewReader("")})
	assert.ErrorIs(t, err, analysis.ErrUnreadable)
}

func TestRunSeparateRequestDirs(t *testing.T) {
	dir := t.TempDir()
	p := newPipeline(t, ai.NewHeuristicRuntime(), Config{OutputDir: dir})
	a, err := p.Run(context.Background(), Request{Agent: "A", Filename: "s.csv", Body: strings.NewReader(salesCSV)})
	require.NoError(t, err)
	b, err := p.Run(context.Background(), Request{Agent: "A", Filename: "s.csv", Body: strings.NewReader(salesCSV)})
	require.NoError(t, err)
	assert.NotEqual(t, a.Dir, b.Dir)
	assert.Equal(t, dir, filepath.Dir(a.Dir))
}
