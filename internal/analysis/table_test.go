package analysis

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestLoadCSVTypesAndHeader(t *testing.T) {
	in := "\ufeffregion,sales,sales,,note\n" +
		"north,10,1,x,first\n" +
		"south,NA,2,y\n" +
		"east,12.5,3,z,third,extra\n"
	tbl, err := LoadCSV(strings.NewReader(in), "sales.csv", Options{})
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	wantNames := []string{"region", "sales", "sales.1", "Unnamed: 3", "note"}
	got := tbl.ColumnNames()
	if strings.Join(got, "|") != strings.Join(wantNames, "|") {
		t.Fatalf("names=%v want %v", got, wantNames)
	}
	if tbl.RowCount() != 3 {
		t.Fatalf("rows=%d", tbl.RowCount())
	}
	sales, ok := tbl.Column("sales")
	if !ok || sales.Dtype != DtypeNumeric {
		t.Fatalf("sales column missing or not numeric: %+v", sales)
	}
	if !sales.Values[1].IsMissing() {
		t.Fatalf("NA should load as missing")
	}
	note, _ := tbl.Column("note")
	if !note.Values[1].IsMissing() {
		t.Fatalf("short row should be padded with missing")
	}
	if region, _ := tbl.Column("region"); region.Dtype != DtypeObject {
		t.Fatalf("region dtype=%s", region.Dtype)
	}
}

func TestLoadCSVEmptyIsUnreadable(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""), "empty.csv", Options{})
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("want ErrUnreadable, got %v", err)
	}
}

func TestLoadCSVHeaderOnly(t *testing.T) {
	tbl, err := LoadCSV(strings.NewReader("a,b\n"), "h.csv", Options{})
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if tbl.RowCount() != 0 || len(tbl.Columns) != 2 {
		t.Fatalf("rows=%d cols=%d", tbl.RowCount(), len(tbl.Columns))
	}
}

func TestLoadFileTSVAndMaxRows(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.tsv")
	if err := os.WriteFile(p, []byte("a\tb\n1\tx\n2\ty\n3\tz\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadFile(p, Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tbl.RowCount() != 2 {
		t.Fatalf("rows=%d want 2", tbl.RowCount())
	}
	if tbl.Name != "data.tsv" {
		t.Fatalf("name=%q", tbl.Name)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.csv"), Options{}); !errors.Is(err, ErrUnreadable) {
		t.Fatalf("want ErrUnreadable for missing file, got %v", err)
	}
}

func TestRecordsAndWithColumn(t *testing.T) {
	tbl, err := LoadCSV(strings.NewReader("k,v\na,$1\nb,$2\n"), "r.csv", Options{})
	if err != nil {
		t.Fatal(err)
	}
	recs := tbl.Records(1)
	if len(recs) != 1 || recs[0]["k"] != "a" || recs[0]["v"] != "$1" {
		t.Fatalf("records=%v", recs)
	}
	if all := tbl.Records(-1); len(all) != 2 {
		t.Fatalf("records(-1)=%d", len(all))
	}
	v, _ := tbl.Column("v")
	cleaned := tbl.WithColumn("v", CleanNumeric(v.Values))
	cv, _ := cleaned.Column("v")
	if cv.Dtype != DtypeNumeric || cv.Values[1].Num != 2 {
		t.Fatalf("cleaned column=%+v", cv)
	}
	if v.Dtype != DtypeObject {
		t.Fatalf("original table modified")
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"city", "temp", "note"},
		{"Oslo", 3, "cold"},
		{"Rome", 18.5, nil},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Other", "A1", "only"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Other", "A2", "v"); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	tbl, err := LoadXLSX(strings.NewReader(string(data)), "book.xlsx", Options{})
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	if tbl.RowCount() != 2 || len(tbl.Columns) != 3 {
		t.Fatalf("rows=%d cols=%d", tbl.RowCount(), len(tbl.Columns))
	}
	temp, _ := tbl.Column("temp")
	if temp.Dtype != DtypeNumeric || temp.Values[1].Num != 18.5 {
		t.Fatalf("temp=%+v", temp)
	}

	other, err := Load(strings.NewReader(string(data)), "book.xlsx", Options{Sheet: "other"})
	if err != nil {
		t.Fatalf("Load sheet by name: %v", err)
	}
	if names := other.ColumnNames(); len(names) != 1 || names[0] != "only" {
		t.Fatalf("names=%v", names)
	}
	if _, err := LoadXLSX(strings.NewReader(string(data)), "book.xlsx", Options{SheetIndex: 5}); !errors.Is(err, ErrUnreadable) {
		t.Fatalf("want ErrUnreadable for bad sheet index, got %v", err)
	}
}

func TestXLSXCellDate(t *testing.T) {
	v := xlsxCell("2024-01-15", "45306")
	if v.Kind != ValueDate {
		t.Fatalf("kind=%v", v.Kind)
	}
	if !v.Time.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("time=%v", v.Time)
	}
	if v := xlsxCell("hello", "hello"); v.Kind != ValueText {
		t.Fatalf("kind=%v", v.Kind)
	}
	if v := xlsxCell("12", "12"); v.Kind != ValueNumber {
		t.Fatalf("kind=%v", v.Kind)
	}
}
