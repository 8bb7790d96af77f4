// Package report assembles the PDF deliverable from profile metrics, an
// executive summary and rendered chart images.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

const (
	// chart images are placed at 5.5in x 3.5in
	imageW = 139.7
	imageH = 88.9

	wrapWidth  = 95
	lineHeight = 5.5
)

// Input is everything a report page needs.
type Input struct {
	Agent     string
	WeekLabel string
	Metrics   *analysis.Metrics
	Charts    []string
	Summary   string
}

// WeekLabel is the report date stamp, UTC YYYY-MM-DD.
func WeekLabel(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// Title returns the report heading for in.
func Title(in Input) string {
	return fmt.Sprintf("Data Analysis Report - %s - %s", in.Agent, in.WeekLabel)
}

// Build writes the report to path. Chart images that cannot be read are
// logged and left out.
func Build(path string, in Input, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("report")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(Title(in), true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(Title(in)), "", "C", false)
	pdf.Ln(4)

	heading(pdf, "AI Summary")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range SplitLongText(in.Summary, wrapWidth) {
		pdf.CellFormat(0, lineHeight, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	heading(pdf, "Dataset Overview")
	pdf.SetFont("Helvetica", "", 11)
	if m := in.Metrics; m != nil {
		pdf.CellFormat(0, lineHeight, fmt.Sprintf("Rows: %d", m.RowCount), "", 1, "L", false, 0, "")
		for _, line := range SplitLongText("Columns: "+strings.Join(m.Columns, ", "), wrapWidth) {
			pdf.CellFormat(0, lineHeight, tr(line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
		statsTable(pdf, tr, m.NumericStats)
	}
	pdf.Ln(6)

	if len(in.Charts) > 0 {
		heading(pdf, "Visualizations")
		pageW, _ := pdf.GetPageSize()
		x := (pageW - imageW) / 2
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		for _, p := range in.Charts {
			pdf.RegisterImageOptions(p, opts)
			if err := pdf.Error(); err != nil {
				log.Warn("could not add chart", zap.String("path", p), zap.Error(err))
				pdf.ClearError()
				continue
			}
			pdf.ImageOptions(p, x, 0, imageW, imageH, true, opts, 0, "")
			pdf.Ln(8)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf %s: %w", path, err)
	}
	return nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func statsTable(pdf *fpdf.Fpdf, tr func(string) string, stats map[string]analysis.NumericStats) {
	if len(stats) == 0 {
		return
	}
	names := make([]string, 0, len(stats))
	for k := range stats {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := []string{"Column", "Count", "Mean", "Median", "Min", "Max", "Std"}
	widths := []float64{50, 20, 24, 24, 24, 24, 24}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, c := range cols {
		pdf.CellFormat(widths[i], 6, c, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, name := range names {
		s := stats[name]
		row := []string{
			truncate(name, 28),
			strconv.Itoa(s.Count),
			formatStat(s.Mean), formatStat(s.Median), formatStat(s.Min), formatStat(s.Max), formatStat(s.StdDev),
		}
		for i, v := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func formatStat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

// SplitLongText wraps text to at most width characters per line, breaking at
// the last space before the limit when there is one. Paragraph breaks are
// kept as empty lines.
func SplitLongText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if width <= 0 {
		width = wrapWidth
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		p := []rune(strings.TrimSpace(para))
		if len(p) == 0 {
			lines = append(lines, "")
			continue
		}
		for len(p) > width {
			idx := lastSpace(p[:width])
			if idx <= 0 {
				idx = width
			}
			lines = append(lines, string(p[:idx]))
			p = []rune(strings.TrimLeft(string(p[idx:]), " \t"))
		}
		if len(p) > 0 {
			lines = append(lines, string(p))
		}
	}
	return lines
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}
