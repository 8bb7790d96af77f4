package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/KaramelBytes/reportloom-cli/internal/pipeline"
	"github.com/KaramelBytes/reportloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	anaLoad       loadFlags
	anaOutputPath string
	anaJSON       bool
	anaFullScan   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Profile a CSV/TSV/XLSX file and print its metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := profileFile(args[0], &anaLoad, anaFullScan || cfg.DateFullScan)
		if err != nil {
			return err
		}
		var out []byte
		if anaJSON {
			b, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			out = append(b, '\n')
		} else {
			out = []byte(m.Markdown())
		}

		if anaOutputPath != "" {
			if err := os.WriteFile(anaOutputPath, out, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// profileFile loads path with the shared load flags and profiles it.
func profileFile(path string, lf *loadFlags, fullScan bool) (*analysis.Metrics, error) {
	t, err := loadTable(path, lf)
	if err != nil {
		return nil, err
	}
	return analysis.Profile(t, analysis.ProfileOptions{DateFullScan: fullScan}), nil
}

func loadTable(path string, lf *loadFlags) (*analysis.Table, error) {
	opt, err := lf.options()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrUnreadable, err)
	}
	defer f.Close()
	return pipeline.LoadTable(pipeline.Request{Filename: filepath.Base(path), Body: f}, opt, lf.cleanNumeric, logger)
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaLoad.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit metrics as JSON instead of Markdown")
	analyzeCmd.Flags().BoolVar(&anaFullScan, "date-full-scan", false, "scan the whole date sample before deciding a column is date-like")
}
