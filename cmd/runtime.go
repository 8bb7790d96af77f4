package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/reportloom-cli/internal/ai"
	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/KaramelBytes/reportloom-cli/internal/charts"
	cfgpkg "github.com/KaramelBytes/reportloom-cli/internal/config"
	"github.com/KaramelBytes/reportloom-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

func buildRuntime(cfg *cfgpkg.Global) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg.HTTPTimeoutSec > 0 {
		httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
	}
	if cfg.RetryMaxAttempts > 0 {
		retryMax = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelayMs > 0 {
		baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
	}
	if cfg.RetryMaxDelayMs > 0 {
		maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
	}

	providerName := ai.ProviderOpenRouter
	if cfg.DefaultProvider != "" {
		p, err := cfgpkg.NormalizeProvider(cfg.DefaultProvider)
		if err != nil {
			return nil, cfg.DefaultProvider, err
		}
		providerName = p
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Logger:      logger,
		APIKey:      cfg.APIKey,
		OpenAIKey:   cfg.OpenAIAPIKey,
		BaseURL:     os.Getenv(cfgpkg.EnvPrefix + "_BASE_URL"),
	}
	if rc.APIKey == "" {
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if providerName == ai.ProviderOllama {
		rc.Host = cfg.OllamaHost
		if cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	rt, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (available: %s)", providerName, strings.Join(ai.Providers(), ", "))
	}
	return rt, providerName, nil
}

// advisorModel picks the model name; the heuristic and Ollama ignore
// OpenRouter-style vendor prefixes.
func advisorModel(cfg *cfgpkg.Global, provider string) string {
	model := cfg.DefaultModel
	if provider == ai.ProviderOpenAI {
		model = strings.TrimPrefix(model, "openai/")
	}
	if provider == ai.ProviderNone && model == "" {
		model = "heuristic"
	}
	return model
}

func newAdvisor(cfg *cfgpkg.Global) (*ai.Advisor, string, error) {
	rt, provider, err := buildRuntime(cfg)
	if err != nil {
		return nil, provider, err
	}
	return ai.NewAdvisor(rt, ai.AdvisorOptions{
		Model:            advisorModel(cfg, provider),
		MaxTokens:        cfg.MaxTokens,
		SummaryMaxTokens: cfg.SummaryMaxTokens,
		Temperature:      cfg.Temperature,
	}, logger), provider, nil
}

func newPipeline(cfg *cfgpkg.Global, lf *loadFlags) (*pipeline.Pipeline, error) {
	adv, _, err := newAdvisor(cfg)
	if err != nil {
		return nil, err
	}
	pc := pipeline.Config{
		OutputDir:      cfg.OutputDir,
		MaxSuggestions: cfg.MaxSuggestions,
		Profile:        analysis.ProfileOptions{DateFullScan: cfg.DateFullScan},
		Render:         charts.RenderConfig{Width: cfg.ChartWidth, Height: cfg.ChartHeight},
		Load:           analysis.DefaultOptions(),
	}
	if lf != nil {
		opt, err := lf.options()
		if err != nil {
			return nil, err
		}
		pc.Load = opt
		pc.CleanNumeric = lf.cleanNumeric
	}
	return pipeline.New(pc, adv, logger), nil
}

// loadFlags are the table-loading flags shared by analyze, charts and report.
type loadFlags struct {
	delimiter    string
	maxRows      int
	sheet        string
	sheetIndex   int
	cleanNumeric []string
}

func (lf *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab' (default from extension)")
	cmd.Flags().IntVar(&lf.maxRows, "max-rows", 1_000_000, "maximum rows to load (0 = unlimited)")
	cmd.Flags().StringVar(&lf.sheet, "sheet", "", "XLSX: sheet name")
	cmd.Flags().IntVar(&lf.sheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet not provided)")
	cmd.Flags().StringSliceVar(&lf.cleanNumeric, "clean-numeric", nil, "columns to coerce to numbers after stripping currency symbols, commas and %")
}

func (lf *loadFlags) options() (analysis.Options, error) {
	opt := analysis.Options{MaxRows: lf.maxRows, Sheet: lf.sheet, SheetIndex: lf.sheetIndex}
	switch lf.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "|":
		opt.Delimiter = '|'
	case "\t", "tab":
		opt.Delimiter = '\t'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", lf.delimiter)
	}
	return opt, nil
}

// explainAdvisorError adds a hint for the common advisor failure classes.
func explainAdvisorError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		return fmt.Errorf("no API key for %s: set it in config or the environment, or use --provider none: %w", provider, err)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and ollama_host is correct. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check api_key/openai_api_key in ~/.reportloom/config.yaml: %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name: %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller --max-rows or lower max_tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	default:
		return fmt.Errorf("advisor request failed: %w", err)
	}
}
