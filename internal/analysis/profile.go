package analysis

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

const (
	topCategoryLimit = 5
	previewRows      = 8
	dateSampleSize   = 20
)

// ProfileOptions tunes heuristics of Profile.
type ProfileOptions struct {
	// DateFullScan scans the whole date sample before deciding instead of
	// stopping at the first value that fails to parse.
	DateFullScan bool
}

// NumericStats summarizes the present values of a numeric column.
type NumericStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std"`
}

// MarshalJSON writes non-finite statistics as null.
func (s NumericStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"count":  s.Count,
		"mean":   finiteOrNil(s.Mean),
		"median": finiteOrNil(s.Median),
		"min":    finiteOrNil(s.Min),
		"max":    finiteOrNil(s.Max),
		"std":    finiteOrNil(s.StdDev),
	})
}

func finiteOrNil(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Metrics is the profile of one Table. It is built once by Profile and not
// modified afterwards.
type Metrics struct {
	Name          string                     `json:"name,omitempty"`
	RowCount      int                        `json:"rows"`
	Columns       []string                   `json:"columns"`
	NumericStats  map[string]NumericStats    `json:"numeric_stats"`
	TopCategories map[string][]CategoryCount `json:"top_categories"`
	DateColumns   []string                   `json:"date_columns"`
	Preview       []map[string]any           `json:"preview"`
	Kinds         map[string]ColumnKind      `json:"kinds"`
}

// IsDateColumn reports whether name was inferred to hold dates.
func (m *Metrics) IsDateColumn(name string) bool {
	for _, c := range m.DateColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Profile computes Metrics for t. It never fails: columns that cannot be
// summarized are left out of the statistics maps.
func Profile(t *Table, opt ProfileOptions) *Metrics {
	m := &Metrics{
		Name:          t.Name,
		RowCount:      t.RowCount(),
		Columns:       t.ColumnNames(),
		NumericStats:  map[string]NumericStats{},
		TopCategories: map[string][]CategoryCount{},
		DateColumns:   []string{},
		Kinds:         make(map[string]ColumnKind, len(t.Columns)),
		Preview:       t.Records(previewRows),
	}
	for _, c := range t.Columns {
		present := c.Present()
		isDate := detectDateColumn(c, present, opt)
		if isDate {
			m.DateColumns = append(m.DateColumns, c.Name)
		}
		switch c.Dtype {
		case DtypeNumeric:
			if s, ok := numericStats(present); ok {
				m.NumericStats[c.Name] = s
			}
		case DtypeObject:
			if top := topCategories(present, topCategoryLimit); len(top) > 0 {
				m.TopCategories[c.Name] = top
			}
		}
		m.Kinds[c.Name] = classify(c, len(present), isDate)
	}
	return m
}

func classify(c *Column, present int, isDate bool) ColumnKind {
	switch {
	case present == 0:
		return KindUnclassified
	case c.Dtype == DtypeNumeric:
		return KindNumeric
	case isDate:
		return KindDateLike
	case c.Dtype == DtypeObject:
		return KindCategorical
	default:
		return KindUnclassified
	}
}

func numericStats(present []Value) (NumericStats, bool) {
	if len(present) == 0 {
		return NumericStats{}, false
	}
	data := make(stats.Float64Data, len(present))
	for i, v := range present {
		data[i] = v.Num
	}
	// stats only errors on empty input, which is excluded above.
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	var sd float64
	if len(data) > 1 {
		sd, _ = stats.StandardDeviationSample(data)
	}
	return NumericStats{Count: len(data), Mean: mean, Median: median, Min: lo, Max: hi, StdDev: sd}, true
}

// topCategories counts values and keeps the limit most frequent. The
// stable sort keeps first-seen order among equal counts.
func topCategories(present []Value, limit int) []CategoryCount {
	counts := make(map[string]int)
	var order []string
	for _, v := range present {
		key := v.String()
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	out := make([]CategoryCount, len(order))
	for i, k := range order {
		out[i] = CategoryCount{Value: k, Count: counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// detectDateColumn is a best-effort heuristic. Native date columns pass.
// Object columns are sampled: the first dateSampleSize present values are
// parsed in order and, unless DateFullScan is set, scanning stops at the
// first failure. The column is a date column when the parsed count reaches
// half the sample size (at least one).
func detectDateColumn(c *Column, present []Value, opt ProfileOptions) bool {
	switch c.Dtype {
	case DtypeDatetime:
		return true
	case DtypeObject:
	default:
		return false
	}
	sample := present
	if len(sample) > dateSampleSize {
		sample = sample[:dateSampleSize]
	}
	parsed := 0
	for _, v := range sample {
		if _, ok := ParseDate(v.String()); ok {
			parsed++
			continue
		}
		if !opt.DateFullScan {
			break
		}
	}
	need := len(sample) / 2
	if need < 1 {
		need = 1
	}
	return parsed >= need
}
