// Package worklog provides the per-workflow structured log: an append-only
// stream of text, table, and sunburst entries consumed by dashboards and
// exported as JSON snapshots.
package worklog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates log entry payloads.
type Kind string

// Entry kinds.
const (
	KindText     Kind = "text"
	KindTable    Kind = "table"
	KindSunburst Kind = "sunburst"
)

// Level tags text entries.
type Level string

// Text entry levels.
const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelDebug   Level = "debug"
)

// Entry is a single immutable log record. EntryID is strictly increasing
// within a workflow.
type Entry struct {
	EntryID   int64          `json:"entry_id"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	Content   any            `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Text is the payload of a text entry. Markdown is permitted in Text.
type Text struct {
	Text  string `json:"text"`
	Level Level  `json:"level"`
}

// Table is the payload of a table entry.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Title   string     `json:"title,omitempty"`
}

// Markdown renders the table in Markdown. Rows are padded or truncated to
// the header width.
func (t Table) Markdown() string {
	if len(t.Headers) == 0 {
		return "| No data available |\n|---|\n"
	}

	var b strings.Builder
	if t.Title != "" {
		fmt.Fprintf(&b, "**%s**\n\n", t.Title)
	}

	b.WriteString("| " + strings.Join(t.Headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.Headers)) + "\n")

	for _, row := range t.Rows {
		cells := make([]string, len(t.Headers))
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// Sunburst is the payload of a hierarchical chart entry. Parents uses the
// empty string for root nodes.
type Sunburst struct {
	Labels  []string  `json:"labels"`
	Parents []string  `json:"parents"`
	Values  []float64 `json:"values"`
	Title   string    `json:"title,omitempty"`
	Colors  []string  `json:"colors,omitempty"`
}

// Figure returns a Plotly-compatible figure object for the chart. The shape
// is stable so any charting consumer can render it without this package.
func (s Sunburst) Figure() map[string]any {
	trace := map[string]any{
		"type":          "sunburst",
		"labels":        s.Labels,
		"parents":       s.Parents,
		"values":        s.Values,
		"branchvalues":  "total",
		"hovertemplate": "<b>%{label}</b><br>Value: %{value}<br>Percentage: %{percentParent}<extra></extra>",
		"maxdepth":      3,
	}
	if len(s.Colors) > 0 {
		trace["marker"] = map[string]any{"colors": s.Colors}
	}

	title := s.Title
	if title == "" {
		title = "Sunburst Chart"
	}
	return map[string]any{
		"data": []any{trace},
		"layout": map[string]any{
			"title":  title,
			"height": 400,
			"margin": map[string]any{"t": 50, "l": 0, "r": 0, "b": 0},
		},
	}
}

// MarshalJSON serializes the entry with the sunburst payload expanded to the
// full figure object, per the snapshot contract.
func (e Entry) MarshalJSON() ([]byte, error) {
	content := e.Content
	if s, ok := e.Content.(Sunburst); ok {
		content = s.Figure()
	}
	type wire struct {
		EntryID   int64          `json:"entry_id"`
		Timestamp string         `json:"timestamp"`
		Kind      Kind           `json:"kind"`
		Content   any            `json:"content"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}
	return json.Marshal(wire{
		EntryID:   e.EntryID,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Kind:      e.Kind,
		Content:   content,
		Metadata:  e.Metadata,
	})
}

// UnmarshalJSON restores an entry from its wire form, rebuilding the typed
// payload from the kind tag.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var wire struct {
		EntryID   int64           `json:"entry_id"`
		Timestamp string          `json:"timestamp"`
		Kind      Kind            `json:"kind"`
		Content   json.RawMessage `json:"content"`
		Metadata  map[string]any  `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
	if err != nil {
		return fmt.Errorf("parse entry timestamp: %w", err)
	}

	e.EntryID = wire.EntryID
	e.Timestamp = ts
	e.Kind = wire.Kind
	e.Metadata = wire.Metadata

	switch wire.Kind {
	case KindText:
		var t Text
		if err := json.Unmarshal(wire.Content, &t); err != nil {
			return fmt.Errorf("decode text content: %w", err)
		}
		e.Content = t
	case KindTable:
		var t Table
		if err := json.Unmarshal(wire.Content, &t); err != nil {
			return fmt.Errorf("decode table content: %w", err)
		}
		e.Content = t
	case KindSunburst:
		s, err := sunburstFromFigure(wire.Content)
		if err != nil {
			return fmt.Errorf("decode sunburst content: %w", err)
		}
		e.Content = s
	default:
		return fmt.Errorf("unknown entry kind %q", wire.Kind)
	}
	return nil
}

// sunburstFromFigure recovers Sunburst fields from a serialized figure.
func sunburstFromFigure(raw json.RawMessage) (Sunburst, error) {
	var fig struct {
		Data []struct {
			Labels  []string  `json:"labels"`
			Parents []string  `json:"parents"`
			Values  []float64 `json:"values"`
			Marker  *struct {
				Colors []string `json:"colors"`
			} `json:"marker"`
		} `json:"data"`
		Layout struct {
			Title string `json:"title"`
		} `json:"layout"`
	}
	if err := json.Unmarshal(raw, &fig); err != nil {
		return Sunburst{}, err
	}
	if len(fig.Data) == 0 {
		return Sunburst{}, fmt.Errorf("figure has no traces")
	}

	s := Sunburst{
		Labels:  fig.Data[0].Labels,
		Parents: fig.Data[0].Parents,
		Values:  fig.Data[0].Values,
	}
	if fig.Layout.Title != "" && fig.Layout.Title != "Sunburst Chart" {
		s.Title = fig.Layout.Title
	}
	if fig.Data[0].Marker != nil {
		s.Colors = fig.Data[0].Marker.Colors
	}
	return s, nil
}
