package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	reply string
	err   error
	reqs  []GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: f.reply}}}}, nil
}

const salesCSV = `date,region,units,price
2024-01-01,North,10,2.5
2024-01-02,South,12,2.75
2024-01-03,North,8,2.5
2024-01-04,East,15,3.1
`

func loadSales(t *testing.T) *analysis.Table {
	t.Helper()
	tbl, err := analysis.LoadCSV(strings.NewReader(salesCSV), "sales.csv", analysis.Options{})
	require.NoError(t, err)
	return tbl
}

func TestSuggestChartsPrompt(t *testing.T) {
	rt := &fakeRuntime{reply: `[{"title":"t","type":"bar","x":"region","y":"units"}]`}
	a := NewAdvisor(rt, AdvisorOptions{Model: "m", Temperature: 0.2}, nil)

	out, err := a.SuggestCharts(context.Background(), loadSales(t), 3)
	require.NoError(t, err)
	assert.Equal(t, rt.reply, out)

	require.Len(t, rt.reqs, 1)
	req := rt.reqs[0]
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, 700, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "up to 3 items")

	var p chartPayload
	require.NoError(t, json.Unmarshal([]byte(req.Messages[1].Content), &p))
	assert.Equal(t, []string{"date", "region", "units", "price"}, p.Columns)
	assert.Len(t, p.SampleRows, 4)
	assert.Equal(t, "numeric", p.Dtypes["units"])
	assert.Equal(t, 3, p.MaxSuggestions)
}

func TestSuggestChartsError(t *testing.T) {
	a := NewAdvisor(&fakeRuntime{err: errors.New("boom")}, AdvisorOptions{Model: "m"}, nil)
	_, err := a.SuggestCharts(context.Background(), loadSales(t), 5)
	assert.ErrorContains(t, err, "boom")
}

func TestSummarize(t *testing.T) {
	m := analysis.Profile(loadSales(t), analysis.ProfileOptions{})

	rt := &fakeRuntime{reply: "  Sales are steady.  "}
	a := NewAdvisor(rt, AdvisorOptions{Model: "m", SummaryMaxTokens: 300}, nil)
	assert.Equal(t, "Sales are steady.", a.Summarize(context.Background(), m))
	require.Len(t, rt.reqs, 1)
	assert.Equal(t, 300, rt.reqs[0].MaxTokens)
	user := rt.reqs[0].Messages[1].Content
	assert.Contains(t, user, "- rows: 4\n")
	assert.Contains(t, user, "- column_count: 4\n")
	assert.Contains(t, user, `- columns: ["date","region","units","price"]`)

	failing := NewAdvisor(&fakeRuntime{err: errors.New("down")}, AdvisorOptions{Model: "m"}, nil)
	assert.Equal(t, SummaryFallback, failing.Summarize(context.Background(), m))

	blank := NewAdvisor(&fakeRuntime{reply: "   "}, AdvisorOptions{Model: "m"}, nil)
	assert.Equal(t, SummaryFallback, blank.Summarize(context.Background(), m))
}

func TestJSONFieldTruncated(t *testing.T) {
	long := strings.Repeat("x", 4000)
	assert.Len(t, []rune(jsonField(long)), summaryFieldLimit)
	assert.Equal(t, `{"a":1}`, jsonField(map[string]int{"a": 1}))
}
