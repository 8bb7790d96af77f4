package charts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
	"go.uber.org/zap"
)

// ChartType is a chart kind the renderer can draw.
type ChartType string

const (
	Bar       ChartType = "bar"
	Line      ChartType = "line"
	Scatter   ChartType = "scatter"
	Histogram ChartType = "histogram"
)

// SupportedTypes lists the renderable chart kinds in prompt order.
var SupportedTypes = []ChartType{Histogram, Bar, Line, Scatter}

// typeAliases maps advisor spellings onto supported kinds.
var typeAliases = map[string]ChartType{
	"hist":       Histogram,
	"timeseries": Line,
}

// NeedsY reports whether the chart kind plots a second column.
func (c ChartType) NeedsY() bool { return c != Histogram }

const untitledChart = "Untitled Chart"

var (
	errUnsupportedType = errors.New("unsupported chart type")
	errMissingX        = errors.New("x column missing")
	errMissingY        = errors.New("y column missing")
	errUnknownColumn   = errors.New("unknown column")
)

// PlanEntry is a descriptor that passed validation against a table. The zero
// value is not valid; entries are only built by Validate.
type PlanEntry struct {
	title string
	kind  ChartType
	x     string
	y     string
}

func (e PlanEntry) Title() string   { return e.title }
func (e PlanEntry) Type() ChartType { return e.kind }
func (e PlanEntry) X() string       { return e.x }

// Y returns the y column and whether the entry has one.
func (e PlanEntry) Y() (string, bool) { return e.y, e.y != "" }

func (e PlanEntry) String() string {
	if e.y == "" {
		return fmt.Sprintf("%s %q (x=%s)", e.kind, e.title, e.x)
	}
	return fmt.Sprintf("%s %q (x=%s, y=%s)", e.kind, e.title, e.x, e.y)
}

// normalizeType lower-cases and resolves aliases.
func normalizeType(s string) ChartType {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := typeAliases[s]; ok {
		return alias
	}
	return ChartType(s)
}

func isSupported(c ChartType) bool {
	for _, s := range SupportedTypes {
		if s == c {
			return true
		}
	}
	return false
}

func newPlanEntry(d Descriptor, t *analysis.Table) (PlanEntry, error) {
	kind := normalizeType(d.Type)
	if !isSupported(kind) {
		return PlanEntry{}, fmt.Errorf("%w: %q", errUnsupportedType, d.Type)
	}
	if d.X == nil || strings.TrimSpace(*d.X) == "" {
		return PlanEntry{}, errMissingX
	}
	if !t.HasColumn(*d.X) {
		return PlanEntry{}, fmt.Errorf("%w: x=%q", errUnknownColumn, *d.X)
	}
	e := PlanEntry{title: strings.TrimSpace(d.Title), kind: kind, x: *d.X}
	if e.title == "" {
		e.title = untitledChart
	}
	if kind.NeedsY() {
		if d.Y == nil || strings.TrimSpace(*d.Y) == "" {
			return PlanEntry{}, errMissingY
		}
		if !t.HasColumn(*d.Y) {
			return PlanEntry{}, fmt.Errorf("%w: y=%q", errUnknownColumn, *d.Y)
		}
		e.y = *d.Y
	}
	return e, nil
}

// Validate keeps the descriptors that name a supported chart type and
// existing columns, in their original order. Rejected descriptors are
// logged at warn level and otherwise dropped.
func Validate(descs []Descriptor, t *analysis.Table, log *zap.Logger) []PlanEntry {
	if log == nil {
		log = zap.NewNop()
	}
	out := make([]PlanEntry, 0, len(descs))
	for i, d := range descs {
		e, err := newPlanEntry(d, t)
		if err != nil {
			log.Warn("dropping chart suggestion",
				zap.Int("index", i),
				zap.String("title", d.Title),
				zap.String("type", d.Type),
				zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out
}
