package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/reportloom-cli/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rbLoad   loadFlags
	rbAgent  string
	rbOutDir string
	rbQuiet  bool
)

var reportBatchCmd = &cobra.Command{
	Use:   "report-batch <files...>",
	Short: "Build one PDF report per matched CSV/TSV/XLSX file, with progress",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		if rbOutDir != "" {
			cfg.OutputDir = rbOutDir
		}
		p, err := newPipeline(cfg, &rbLoad)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		total, failed := len(files), 0
		for i, path := range files {
			if !rbQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			res, err := runFile(cmd, p, path)
			if err != nil {
				failed++
				logger.Warn("report failed", zap.String("file", path), zap.Error(err))
				fmt.Fprintf(out, "✗ %s: %v\n", filepath.Base(path), err)
				continue
			}
			if !rbQuiet {
				fmt.Fprintf(out, "✓ %s\n", res.ReportPath)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, total)
		}
		return nil
	},
}

func runFile(cmd *cobra.Command, p *pipeline.Pipeline, path string) (*pipeline.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Run(cmd.Context(), pipeline.Request{Agent: rbAgent, Filename: filepath.Base(path), Body: f})
}

// expandInputs resolves globs, keeps literal paths that exist, and returns
// the de-duplicated list sorted.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	rootCmd.AddCommand(reportBatchCmd)
	rbLoad.register(reportBatchCmd)
	reportBatchCmd.Flags().StringVarP(&rbAgent, "agent", "a", pipeline.DefaultAgent, "agent name shown in each report title")
	reportBatchCmd.Flags().StringVar(&rbOutDir, "out-dir", "", "output directory (overrides config output_dir)")
	reportBatchCmd.Flags().BoolVar(&rbQuiet, "quiet", false, "suppress progress and non-essential output")
}
