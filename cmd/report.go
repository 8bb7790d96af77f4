package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/reportloom-cli/internal/pipeline"
	"github.com/KaramelBytes/reportloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	repLoad   loadFlags
	repAgent  string
	repOutDir string
	repJSON   bool
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Run the full pipeline and write a PDF report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if repOutDir != "" {
			cfg.OutputDir = repOutDir
		}
		p, err := newPipeline(cfg, &repLoad)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer f.Close()

		res, err := p.Run(cmd.Context(), pipeline.Request{Agent: repAgent, Filename: filepath.Base(args[0]), Body: f})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if repJSON {
			return writeResultJSON(out, res)
		}
		fmt.Fprintf(out, "✓ Report written to %s\n", res.ReportPath)
		fmt.Fprintf(out, "  rows: %d, columns: %d, charts: %d/%d\n",
			res.Metrics.RowCount, len(res.Metrics.Columns), len(res.Charts), len(res.Plan))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	repLoad.register(reportCmd)
	reportCmd.Flags().StringVarP(&repAgent, "agent", "a", pipeline.DefaultAgent, "agent name shown in the report title")
	reportCmd.Flags().StringVar(&repOutDir, "out-dir", "", "output directory (overrides config output_dir)")
	reportCmd.Flags().BoolVar(&repJSON, "json", false, "print a JSON summary of the run")
}

type resultSummary struct {
	ID         string   `json:"id"`
	Agent      string   `json:"agent"`
	Week       string   `json:"week"`
	ReportPath string   `json:"report_path"`
	Charts     []string `json:"charts"`
	Summary    string   `json:"summary"`
	Rows       int      `json:"rows"`
	Columns    []string `json:"columns"`
}

func writeResultJSON(w io.Writer, res *pipeline.Result) error {
	b, err := utils.PrettyJSON(resultSummary{
		ID:         res.ID,
		Agent:      res.Agent,
		Week:       res.WeekLabel,
		ReportPath: res.ReportPath,
		Charts:     res.ChartPaths(),
		Summary:    res.Summary,
		Rows:       res.Metrics.RowCount,
		Columns:    res.Metrics.Columns,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
