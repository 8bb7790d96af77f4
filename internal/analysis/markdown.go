package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KaramelBytes/reportloom-cli/internal/utils"
)

// Markdown renders a compact profile suitable for prompts or terminal output.
func (m *Metrics) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if m.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", m.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", m.RowCount))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(m.Columns)))

	b.WriteString("[SCHEMA]\n")
	for _, name := range m.Columns {
		kind := m.Kinds[name]
		if kind == "" {
			kind = KindUnclassified
		}
		b.WriteString(fmt.Sprintf("- %s: %s", safeName(name), kind))
		if s, ok := m.NumericStats[name]; ok {
			b.WriteString(fmt.Sprintf("; n %d, mean %.4g, median %.4g, min %.4g, max %.4g, std %.4g",
				s.Count, s.Mean, s.Median, s.Min, s.Max, s.StdDev))
		}
		if top, ok := m.TopCategories[name]; ok {
			b.WriteString("; top: ")
			for i, kv := range top {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
		}
		b.WriteString("\n")
	}
	if len(m.DateColumns) > 0 {
		b.WriteString("\n[DATE COLUMNS]\n")
		names := append([]string(nil), m.DateColumns...)
		sort.Strings(names)
		for _, n := range names {
			b.WriteString("- " + safeName(n) + "\n")
		}
	}
	if len(m.Preview) > 0 {
		b.WriteString("\n[PREVIEW]\n| ")
		for i, c := range m.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeVal(safeName(c)))
		}
		b.WriteString(" |\n| ")
		for i := range m.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range m.Preview {
			b.WriteString("| ")
			for i, c := range m.Columns {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := formatCell(row[c])
				if utf8.RuneCountInString(val) > 80 {
					val = utils.TruncateRunes(val, 77) + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%g", x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
