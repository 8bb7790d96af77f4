package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadable reports that no table could be read from the input at all.
// It is the one failure the profiling core lets escape to callers.
var ErrUnreadable = errors.New("unreadable table")

// Options controls how a Table is loaded.
type Options struct {
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, picked from the file name (',' or tab).
	Delimiter rune
	// Sheet selects an XLSX sheet by name. SheetIndex (1-based) is used
	// when Sheet is empty; 0 means the first sheet.
	Sheet      string
	SheetIndex int
}

// DefaultOptions returns reasonable defaults for loading uploads.
func DefaultOptions() Options {
	return Options{MaxRows: 1_000_000}
}

// Column is a named sequence of cells with its inferred storage type.
type Column struct {
	Name   string
	Dtype  Dtype
	Values []Value
}

// Floats returns the column as float64s with NaN for every cell that is
// not a number.
func (c *Column) Floats() []float64 {
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		if v.Kind == ValueNumber {
			out[i] = v.Num
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Present returns the non-missing cells in row order.
func (c *Column) Present() []Value {
	out := make([]Value, 0, len(c.Values))
	for _, v := range c.Values {
		if !v.IsMissing() {
			out = append(out, v)
		}
	}
	return out
}

// Table is an ordered set of equally long columns.
type Table struct {
	Name    string
	Columns []*Column
	index   map[string]int
}

// NewTable builds a table from a header and rows of parsed cells. Short
// rows are padded with missing cells and long rows truncated. Duplicate or
// blank header names are made unique.
func NewTable(name string, header []string, rows [][]Value) *Table {
	names := uniqueHeader(header)
	t := &Table{Name: name, Columns: make([]*Column, len(names)), index: make(map[string]int, len(names))}
	for j, n := range names {
		vals := make([]Value, len(rows))
		for i, r := range rows {
			if j < len(r) {
				vals[i] = r[j]
			} else {
				vals[i] = Missing
			}
		}
		t.Columns[j] = &Column{Name: n, Dtype: inferDtype(vals), Values: vals}
		t.index[n] = j
	}
	return t
}

// RowCount is the number of rows in the table.
func (t *Table) RowCount() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.Columns[i], true
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Records returns up to n rows (all when n < 0) as column -> scalar maps,
// in row order. Missing cells are nil.
func (t *Table) Records(n int) []map[string]any {
	rows := t.RowCount()
	if n >= 0 && n < rows {
		rows = n
	}
	out := make([]map[string]any, rows)
	for i := 0; i < rows; i++ {
		rec := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			rec[c.Name] = c.Values[i].Interface()
		}
		out[i] = rec
	}
	return out
}

// WithColumn returns a shallow copy of t with the named column's values
// replaced. The receiver is not modified.
func (t *Table) WithColumn(name string, values []Value) *Table {
	cp := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns)), index: t.index}
	copy(cp.Columns, t.Columns)
	if i, ok := t.index[name]; ok {
		cp.Columns[i] = &Column{Name: name, Dtype: inferDtype(values), Values: values}
	}
	return cp
}

func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	dups := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if seen[name] {
			base := name
			for seen[name] {
				dups[base]++
				name = fmt.Sprintf("%s.%d", base, dups[base])
			}
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// LoadFile reads a CSV, TSV or XLSX file, choosing the reader by extension.
func LoadFile(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreadable, filepath.Base(path), err)
	}
	defer f.Close()
	return Load(f, filepath.Base(path), opt)
}

// Load reads a table from r. name is the original file name and selects
// the format.
func Load(r io.Reader, name string, opt Options) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(r, name, opt)
	default:
		return LoadCSV(r, name, opt)
	}
}

// LoadCSV parses delimited text into a Table with natively typed cells.
func LoadCSV(r io.Reader, name string, opt Options) (*Table, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: no columns to parse", ErrUnreadable, name)
		}
		return nil, fmt.Errorf("%w: %s: read header: %v", ErrUnreadable, name, err)
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	var rows [][]Value
	for len(rows) < maxRows {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %s: read row %d: %v", ErrUnreadable, name, len(rows)+1, err)
		}
		row := make([]Value, len(rec))
		for j, cell := range rec {
			row[j] = ParseCell(cell)
		}
		rows = append(rows, row)
	}
	return NewTable(name, header, rows), nil
}

// LoadXLSX reads one sheet of a workbook. Cells formatted as dates become
// native date values; everything else goes through ParseCell.
func LoadXLSX(r io.Reader, name string, opt Options) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: open workbook: %v", ErrUnreadable, name, err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, name, err)
	}
	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read sheet %q: %v", ErrUnreadable, name, sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read sheet %q: %v", ErrUnreadable, name, sheet, err)
	}
	if len(formatted) == 0 || len(formatted[0]) == 0 {
		return nil, fmt.Errorf("%w: %s: sheet %q is empty", ErrUnreadable, name, sheet)
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	body := formatted[1:]
	if len(body) > maxRows {
		body = body[:maxRows]
	}
	rows := make([][]Value, len(body))
	for i, rec := range body {
		var rawRec []string
		if i+1 < len(raw) {
			rawRec = raw[i+1]
		}
		row := make([]Value, len(rec))
		for j, cell := range rec {
			var rawCell string
			if j < len(rawRec) {
				rawCell = rawRec[j]
			}
			row[j] = xlsxCell(cell, rawCell)
		}
		rows[i] = row
	}
	return NewTable(name, formatted[0], rows), nil
}

// xlsxCell detects date-formatted cells: the stored value is a serial number
// while the displayed text is not numeric but reads as a date.
func xlsxCell(display, stored string) Value {
	v := ParseCell(display)
	if v.Kind != ValueText {
		return v
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(stored), 64)
	if err != nil {
		return v
	}
	if _, ok := ParseDate(display); !ok {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return Date(t)
}

func pickSheet(sheets []string, opt Options) (string, error) {
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	if opt.Sheet != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found; available sheets: %s", opt.Sheet, strings.Join(sheets, ", "))
	}
	if opt.SheetIndex > 0 {
		if opt.SheetIndex > len(sheets) {
			return "", fmt.Errorf("sheet index %d out of range (1..%d)", opt.SheetIndex, len(sheets))
		}
		return sheets[opt.SheetIndex-1], nil
	}
	return sheets[0], nil
}

func sniffDelimiter(name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	return ','
}
