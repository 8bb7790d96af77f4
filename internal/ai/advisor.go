package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/KaramelBytes/reportloom-cli/internal/utils"
	"go.uber.org/zap"
)

const (
	sampleRows        = 20
	summaryFieldLimit = 1500

	// SummaryFallback is returned by Summarize whenever the runtime fails.
	SummaryFallback = "Unable to generate summary."
)

const chartSystemPrompt = "You are a data visualization assistant. " +
	"Given dataset columns and sample rows, suggest charts to understand the data. " +
	"Return JSON list of up to %d items with keys: " +
	"\"title\", \"type\" (histogram, bar, line, scatter, box, pie, timeseries), " +
	"\"x\" (column name or null), \"y\" (column name or null), and \"agg\" (mean, sum, count, or null). " +
	"Return JSON only, no explanations."

const chartNotes = "Suggest histogram for numeric column, scatter for two numeric, " +
	"bar for categorical vs numeric, timeseries for dates."

const summarySystemPrompt = "You are a helpful data analyst. " +
	"Produce a concise (3-6 sentence) executive summary for a professional audience."

// AdvisorOptions are the generation knobs shared by both advisor calls.
type AdvisorOptions struct {
	Model            string
	MaxTokens        int
	SummaryMaxTokens int
	Temperature      float64
}

// Advisor asks a Runtime for chart suggestions and an executive summary.
type Advisor struct {
	rt   Runtime
	opts AdvisorOptions
	log  *zap.Logger
}

func NewAdvisor(rt Runtime, opts AdvisorOptions, log *zap.Logger) *Advisor {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 700
	}
	if opts.SummaryMaxTokens <= 0 {
		opts.SummaryMaxTokens = 400
	}
	return &Advisor{rt: rt, opts: opts, log: log.Named("advisor")}
}

// chartPayload is the user message sent with a suggestion request.
type chartPayload struct {
	Columns        []string          `json:"columns"`
	Dtypes         map[string]string `json:"dtypes"`
	SampleRows     []map[string]any  `json:"sample_rows"`
	MaxSuggestions int               `json:"max_suggestions"`
	Notes          string            `json:"notes"`
}

// SuggestCharts returns the runtime's raw reply; callers parse it with
// charts.ParseSuggestions.
func (a *Advisor) SuggestCharts(ctx context.Context, t *analysis.Table, limit int) (string, error) {
	if limit <= 0 {
		limit = 5
	}
	p := chartPayload{
		Columns:        t.ColumnNames(),
		Dtypes:         make(map[string]string, len(t.Columns)),
		SampleRows:     t.Records(sampleRows),
		MaxSuggestions: limit,
		Notes:          chartNotes,
	}
	for _, c := range t.Columns {
		p.Dtypes[c.Name] = string(c.Dtype)
	}
	user, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal chart payload: %w", err)
	}
	req := GenerateRequest{
		Model: a.opts.Model,
		Messages: []Message{
			{Role: "system", Content: fmt.Sprintf(chartSystemPrompt, limit)},
			{Role: "user", Content: string(user)},
		},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	}
	a.logPrompt("suggest", req)
	resp, err := a.rt.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("suggest charts: %w", err)
	}
	return resp.Content(), nil
}

// Summarize returns a short plain-text summary of m, or SummaryFallback.
func (a *Advisor) Summarize(ctx context.Context, m *analysis.Metrics) string {
	var b strings.Builder
	b.WriteString("Dataset summary:\n")
	fmt.Fprintf(&b, "- rows: %d\n", m.RowCount)
	fmt.Fprintf(&b, "- column_count: %d\n", len(m.Columns))
	fmt.Fprintf(&b, "- columns: %s\n", jsonField(m.Columns))
	fmt.Fprintf(&b, "- numeric_stats: %s\n", jsonField(m.NumericStats))
	fmt.Fprintf(&b, "- top_categories: %s\n", jsonField(m.TopCategories))
	fmt.Fprintf(&b, "- preview rows: %s\n\n", jsonField(m.Preview))
	b.WriteString("Write a concise executive summary (3-6 sentences) highlighting key patterns, " +
		"notable distributions, and recommendations. Return plain text only.")

	req := GenerateRequest{
		Model: a.opts.Model,
		Messages: []Message{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: b.String()},
		},
		MaxTokens:   a.opts.SummaryMaxTokens,
		Temperature: a.opts.Temperature,
	}
	a.logPrompt("summary", req)
	resp, err := a.rt.Generate(ctx, req)
	if err != nil {
		a.log.Warn("summary failed", zap.Error(err))
		return SummaryFallback
	}
	text := strings.TrimSpace(resp.Content())
	if text == "" {
		return SummaryFallback
	}
	return text
}

func (a *Advisor) logPrompt(kind string, req GenerateRequest) {
	if ce := a.log.Check(zap.DebugLevel, "advisor request"); ce != nil {
		parts := make(map[string]string, len(req.Messages))
		for _, m := range req.Messages {
			parts[m.Role] = m.Content
		}
		breakdown := utils.TokenBreakdown(parts)
		total := 0
		for _, n := range breakdown {
			total += n
		}
		ce.Write(zap.String("kind", kind), zap.String("model", req.Model),
			zap.Int("prompt_tokens", total), zap.Any("breakdown", breakdown))
	}
}

// jsonField marshals v and truncates the text to summaryFieldLimit runes.
func jsonField(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return utils.TruncateRunes(string(b), summaryFieldLimit)
}
