package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/reportloom-cli/internal/analysis"
)

// HeuristicRuntime answers advisor requests offline. Chart requests get
// rule-based suggestions derived from the column types in the payload;
// anything else gets a plain description of the dataset shape.
type HeuristicRuntime struct{}

func NewHeuristicRuntime() *HeuristicRuntime { return &HeuristicRuntime{} }

type suggestion struct {
	Title string  `json:"title"`
	Type  string  `json:"type"`
	X     string  `json:"x"`
	Y     *string `json:"y"`
	Agg   *string `json:"agg"`
}

func (h *HeuristicRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user string
	for _, m := range req.Messages {
		if m.Role == "user" {
			user = m.Content
		}
	}
	var content string
	var p chartPayload
	if err := json.Unmarshal([]byte(user), &p); err == nil && len(p.Columns) > 0 {
		b, err := json.Marshal(suggestFromPayload(p))
		if err != nil {
			return nil, fmt.Errorf("marshal suggestions: %w", err)
		}
		content = string(b)
	} else {
		content = describeDataset(user)
	}
	return &GenerateResponse{
		ID:        "heuristic",
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: content}}},
		RequestID: "heuristic",
	}, nil
}

func suggestFromPayload(p chartPayload) []suggestion {
	var numeric, categorical, dates []string
	for _, col := range p.Columns {
		switch {
		case p.Dtypes[col] == string(analysis.DtypeNumeric) && hasSample(p.SampleRows, col):
			numeric = append(numeric, col)
		case p.Dtypes[col] == string(analysis.DtypeDatetime) || sampleLooksLikeDates(p.SampleRows, col):
			dates = append(dates, col)
		case p.Dtypes[col] == string(analysis.DtypeObject):
			categorical = append(categorical, col)
		}
	}

	var out []suggestion
	mean := "mean"
	if len(numeric) > 0 {
		y := numeric[0]
		if len(dates) > 0 {
			out = append(out, suggestion{Title: y + " over " + dates[0], Type: "line", X: dates[0], Y: &y})
		}
		if len(categorical) > 0 {
			out = append(out, suggestion{Title: "Average " + y + " by " + categorical[0], Type: "bar", X: categorical[0], Y: &y, Agg: &mean})
		}
	}
	if len(numeric) > 1 {
		y := numeric[1]
		out = append(out, suggestion{Title: numeric[0] + " vs " + y, Type: "scatter", X: numeric[0], Y: &y})
	}
	for _, col := range numeric {
		out = append(out, suggestion{Title: "Distribution of " + col, Type: "histogram", X: col})
	}
	if p.MaxSuggestions > 0 && len(out) > p.MaxSuggestions {
		out = out[:p.MaxSuggestions]
	}
	return out
}

func hasSample(rows []map[string]any, col string) bool {
	for _, r := range rows {
		if r[col] != nil {
			return true
		}
	}
	return false
}

// sampleLooksLikeDates reports whether at least half of the non-null
// sample values for col parse as dates.
func sampleLooksLikeDates(rows []map[string]any, col string) bool {
	var seen, ok int
	for _, r := range rows {
		v, present := r[col]
		if !present || v == nil {
			continue
		}
		s, isString := v.(string)
		if !isString {
			continue
		}
		seen++
		if _, parsed := analysis.ParseDate(s); parsed {
			ok++
		}
	}
	return seen > 0 && ok*2 >= seen
}

// describeDataset reads the rows and columns lines of a summary prompt.
// The columns line may be cut short for wide tables, so the count comes
// from the column_count line when present and names are decoded as far as
// the JSON goes.
func describeDataset(prompt string) string {
	rows, count := -1, -1
	var columns []string
	sc := bufio.NewScanner(strings.NewReader(prompt))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "- rows:"):
			if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "- rows:"))); err == nil {
				rows = n
			}
		case strings.HasPrefix(line, "- column_count:"):
			if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "- column_count:"))); err == nil {
				count = n
			}
		case strings.HasPrefix(line, "- columns:"):
			columns = leadingStrings(strings.TrimPrefix(line, "- columns:"))
		}
	}
	if rows < 0 {
		return "No dataset details were available for an automated summary."
	}
	if count < len(columns) {
		count = len(columns)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The dataset contains %d rows across %d columns", rows, count)
	if len(columns) > 0 {
		list := strings.Join(columns, ", ")
		if len(columns) < count {
			list += ", ..."
		}
		fmt.Fprintf(&b, " (%s)", list)
	}
	b.WriteString(". This summary was produced offline without a language model; " +
		"review the statistics and charts below for detail.")
	return b.String()
}

// leadingStrings decodes the complete string elements at the start of a
// JSON array, stopping quietly where the text ends or breaks.
func leadingStrings(s string) []string {
	dec := json.NewDecoder(strings.NewReader(s))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
		return nil
	}
	var out []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if str, ok := tok.(string); ok {
			out = append(out, str)
		}
	}
	return out
}
