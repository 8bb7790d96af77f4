// Package charts turns advisor chart suggestions into validated plans and
// renders them as PNG images.
package charts

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// DefaultMaxSuggestions caps ParseSuggestions when no positive limit is given.
const DefaultMaxSuggestions = 5

const defaultDescriptorTitle = "Chart"

// Descriptor is one untrusted chart suggestion after normalization. X, Y and
// Agg are nil when the advisor left them out or sent null.
type Descriptor struct {
	Title string  `json:"title"`
	Type  string  `json:"type"`
	X     *string `json:"x"`
	Y     *string `json:"y"`
	Agg   *string `json:"agg"`
}

// ParseSuggestions extracts chart descriptors from an advisor reply. It never
// fails: anything it cannot make sense of yields fewer or zero descriptors.
// Order is preserved and the result holds at most limit entries.
func ParseSuggestions(raw string, limit int) []Descriptor {
	if limit <= 0 {
		limit = DefaultMaxSuggestions
	}
	parsed, ok := safeJSONLoad(raw)
	if !ok {
		return []Descriptor{}
	}
	items, ok := parsed.([]any)
	if !ok {
		return []Descriptor{}
	}
	out := make([]Descriptor, 0, min(len(items), limit))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, normalizeDescriptor(obj))
		if len(out) == limit {
			break
		}
	}
	return out
}

// safeJSONLoad tries the whole text, then the outermost [...] span, then the
// outermost {...} span. The first tier that parses wins, whatever its shape.
func safeJSONLoad(text string) (any, bool) {
	text = strings.TrimSpace(text)
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}
	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start < 0 || end <= start {
			continue
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &v); err == nil {
			return v, true
		}
	}
	return nil, false
}

func normalizeDescriptor(obj map[string]any) Descriptor {
	d := Descriptor{Title: defaultDescriptorTitle}
	if raw, ok := obj["title"]; ok && raw != nil {
		if s, ok := flexibleString(raw); ok {
			d.Title = s
		}
	}
	if s, ok := flexibleString(obj["type"]); ok {
		d.Type = strings.ToLower(strings.TrimSpace(s))
	}
	d.X = optionalString(obj["x"])
	d.Y = optionalString(obj["y"])
	d.Agg = optionalString(obj["agg"])
	return d
}

// flexibleString accepts strings and the scalars advisors sometimes send in
// their place (numbers, booleans). Objects, arrays and null are rejected.
func flexibleString(v any) (string, bool) {
	switch v.(type) {
	case nil, map[string]any, []any:
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

func optionalString(v any) *string {
	s, ok := flexibleString(v)
	if !ok {
		return nil
	}
	return &s
}
