package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/reportloom-cli/internal/charts"
	"github.com/spf13/cobra"
)

var (
	chLoad        loadFlags
	chSuggestions string
	chOutDir      string
	chMax         int
)

var chartsCmd = &cobra.Command{
	Use:   "charts <file>",
	Short: "Validate chart suggestions against a file and render them as PNGs",
	Long: `Renders the charts an advisor suggests for a data file. With --suggestions
the advisor reply is read from a file (or '-' for stdin); otherwise the
configured provider is asked directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0], &chLoad)
		if err != nil {
			return err
		}
		limit := cfg.MaxSuggestions
		if chMax > 0 {
			limit = chMax
		}

		var raw string
		if chSuggestions != "" {
			raw, err = readSuggestions(cmd, chSuggestions)
			if err != nil {
				return err
			}
		} else {
			adv, provider, err := newAdvisor(cfg)
			if err != nil {
				return err
			}
			raw, err = adv.SuggestCharts(cmd.Context(), t, limit)
			if err != nil {
				return explainAdvisorError(err, provider, advisorModel(cfg, provider))
			}
		}

		plan := charts.Validate(charts.ParseSuggestions(raw, limit), t, logger)
		if len(plan) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No usable chart suggestions.")
			return nil
		}
		dir := chOutDir
		if dir == "" {
			dir = filepath.Join(cfg.OutputDir, "charts")
		}
		r := charts.NewRenderer(charts.RenderConfig{Width: cfg.ChartWidth, Height: cfg.ChartHeight}, logger)
		res, err := r.Render(plan, t, dir)
		if err != nil {
			return err
		}
		for _, x := range res {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s -> %s\n", x.Entry, x.ArtifactPath)
		}
		if skipped := len(plan) - len(res); skipped > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "⚠ %d chart(s) could not be rendered (see --debug log)\n", skipped)
		}
		return nil
	},
}

func readSuggestions(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read suggestions: %w", err)
	}
	return string(b), nil
}

func init() {
	rootCmd.AddCommand(chartsCmd)
	chLoad.register(chartsCmd)
	chartsCmd.Flags().StringVarP(&chSuggestions, "suggestions", "s", "", "advisor reply to render: path or '-' for stdin")
	chartsCmd.Flags().StringVar(&chOutDir, "out-dir", "", "directory for PNG files (default <output_dir>/charts)")
	chartsCmd.Flags().IntVar(&chMax, "max", 0, "maximum suggestions to use (default from config)")
}
