package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/reportloom-cli/internal/config"
	"github.com/KaramelBytes/reportloom-cli/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
	// Advisor flags (override config if set)
	flagProvider string
	flagModel    string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "reportloom",
	Short: "ReportLoom CLI: profile tabular data and build AI-assisted chart reports",
	Long: `ReportLoom profiles CSV/TSV/XLSX files, asks an advisor model (OpenRouter,
OpenAI, a local Ollama, or the offline heuristic) for chart suggestions and
an executive summary, renders the charts and assembles a PDF report.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: syncLogger,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.reportloom/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagProvider, "provider", "", "advisor provider: openrouter|openai|ollama|none (overrides config)")
	pf.StringVar(&flagModel, "model", "", "advisor model name (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

// setup loads .env, configuration and the logger before any subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	// .env is optional
	_ = godotenv.Load()

	l, err := logging.New(debug)
	if err != nil {
		return err
	}
	logger = l

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c
	return applyOverrides(cmd)
}

// syncLogger flushes buffered log entries once a command finishes.
func syncLogger(_ *cobra.Command, _ []string) {
	// stderr reports EINVAL on Sync on some platforms
	_ = logger.Sync()
}

func applyOverrides(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("provider") {
		p, err := cfgpkg.NormalizeProvider(flagProvider)
		if err != nil {
			return err
		}
		cfg.DefaultProvider = p
	}
	if f.Changed("model") && flagModel != "" {
		cfg.DefaultModel = flagModel
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	return nil
}
