// Package pipeline runs one analysis request end to end: load, profile,
// summarize, suggest, validate, render and assemble the PDF.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/reportloom-cli/internal/ai"
	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/KaramelBytes/reportloom-cli/internal/charts"
	"github.com/KaramelBytes/reportloom-cli/internal/report"
	"github.com/KaramelBytes/reportloom-cli/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultAgent is used when a request names no agent.
const DefaultAgent = "Unknown Agent"

type Config struct {
	OutputDir      string
	MaxSuggestions int
	// CleanNumeric lists columns coerced with analysis.CleanNumeric before
	// profiling, e.g. currency columns.
	CleanNumeric []string
	Load         analysis.Options
	Profile      analysis.ProfileOptions
	Render       charts.RenderConfig
}

type Request struct {
	Agent    string
	Filename string
	Body     io.Reader
}

type Result struct {
	ID         string
	Dir        string
	Agent      string
	WeekLabel  string
	Metrics    *analysis.Metrics
	Summary    string
	Plan       []charts.PlanEntry
	Charts     []charts.RenderResult
	ReportPath string
}

// ChartPaths returns the rendered artifact paths in plan order.
func (r *Result) ChartPaths() []string {
	out := make([]string, len(r.Charts))
	for i, c := range r.Charts {
		out[i] = c.ArtifactPath
	}
	return out
}

type Pipeline struct {
	cfg      Config
	advisor  *ai.Advisor
	renderer *charts.Renderer
	log      *zap.Logger
	now      func() time.Time
}

func New(cfg Config, advisor *ai.Advisor, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = charts.DefaultMaxSuggestions
	}
	return &Pipeline{
		cfg:      cfg,
		advisor:  advisor,
		renderer: charts.NewRenderer(cfg.Render, log),
		log:      log.Named("pipeline"),
		now:      time.Now,
	}
}

// LoadTable reads the request body and coerces the clean columns with
// analysis.CleanNumeric. Load failures are returned unchanged.
func LoadTable(req Request, opt analysis.Options, clean []string, log *zap.Logger) (*analysis.Table, error) {
	t, err := analysis.Load(req.Body, req.Filename, opt)
	if err != nil {
		return nil, err
	}
	for _, name := range clean {
		c, ok := t.Column(name)
		if !ok {
			if log != nil {
				log.Warn("clean-numeric column not found", zap.String("column", name))
			}
			continue
		}
		t = t.WithColumn(name, analysis.CleanNumeric(c.Values))
	}
	return t, nil
}

// Run executes every stage in order. Only load failures and artifact
// write failures are returned; advisor problems degrade to a fallback
// summary or an empty chart plan.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	agent := req.Agent
	if agent == "" {
		agent = DefaultAgent
	}
	res := &Result{ID: uuid.NewString(), Agent: agent, WeekLabel: report.WeekLabel(p.now())}
	res.Dir = filepath.Join(p.cfg.OutputDir, res.ID)
	log := p.log.With(zap.String("request_id", res.ID), zap.String("file", req.Filename))

	t, err := LoadTable(req, p.cfg.Load, p.cfg.CleanNumeric, log)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", req.Filename, err)
	}
	res.Metrics = analysis.Profile(t, p.cfg.Profile)
	log.Info("profiled", zap.Int("rows", res.Metrics.RowCount), zap.Int("columns", len(res.Metrics.Columns)))

	res.Summary = p.advisor.Summarize(ctx, res.Metrics)

	raw, err := p.advisor.SuggestCharts(ctx, t, p.cfg.MaxSuggestions)
	if err != nil {
		log.Warn("chart suggestions failed", zap.Error(err))
	}
	res.Plan = charts.Validate(charts.ParseSuggestions(raw, p.cfg.MaxSuggestions), t, log)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Charts, err = p.renderer.Render(res.Plan, t, res.Dir)
	if err != nil {
		return nil, err
	}
	log.Info("rendered charts", zap.Int("planned", len(res.Plan)), zap.Int("rendered", len(res.Charts)))

	name := utils.SafeFilename(agent)
	if name == "" {
		name = "agent"
	}
	res.ReportPath = filepath.Join(res.Dir, fmt.Sprintf("report_%s_%s.pdf", name, res.WeekLabel))
	in := report.Input{
		Agent:     agent,
		WeekLabel: res.WeekLabel,
		Metrics:   res.Metrics,
		Charts:    res.ChartPaths(),
		Summary:   res.Summary,
	}
	if err := report.Build(res.ReportPath, in, log); err != nil {
		return nil, err
	}
	return res, nil
}
