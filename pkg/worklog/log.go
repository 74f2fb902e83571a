package worklog

import (
	"encoding/json"
	"sync"
	"time"
)

// Log is the append-only entry stream for one workflow. Appends from
// multiple goroutines serialize under the log's mutex; readers get snapshot
// copies.
type Log struct {
	workflowID string

	mu          sync.Mutex
	entries     []Entry
	nextID      int64
	createdAt   time.Time
	lastUpdated time.Time
}

// Summary aggregates a log's entry counts and timestamps.
type Summary struct {
	WorkflowID   string       `json:"workflow_id"`
	Total        int          `json:"total"`
	CountsByKind map[Kind]int `json:"counts_by_kind"`
	CreatedAt    time.Time    `json:"created_at"`
	LastUpdated  time.Time    `json:"last_updated"`
}

func newLog(workflowID string) *Log {
	now := time.Now()
	return &Log{
		workflowID:  workflowID,
		nextID:      1,
		createdAt:   now,
		lastUpdated: now,
	}
}

// WorkflowID returns the id this log belongs to.
func (l *Log) WorkflowID() string {
	return l.workflowID
}

func (l *Log) append(kind Kind, content any, metadata map[string]any) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	now := time.Now()
	l.entries = append(l.entries, Entry{
		EntryID:   id,
		Timestamp: now,
		Kind:      kind,
		Content:   content,
		Metadata:  metadata,
	})
	l.lastUpdated = now
	return id
}

// AppendText appends a text entry and returns its id. Empty level defaults
// to info.
func (l *Log) AppendText(text string, level Level, metadata map[string]any) int64 {
	if level == "" {
		level = LevelInfo
	}
	return l.append(KindText, Text{Text: text, Level: level}, metadata)
}

// AppendTable appends a table entry and returns its id.
func (l *Log) AppendTable(headers []string, rows [][]string, title string, metadata map[string]any) int64 {
	return l.append(KindTable, Table{Headers: headers, Rows: rows, Title: title}, metadata)
}

// AppendSunburst appends a sunburst chart entry and returns its id.
func (l *Log) AppendSunburst(labels, parents []string, values []float64, title string, colors []string, metadata map[string]any) int64 {
	return l.append(KindSunburst, Sunburst{
		Labels:  labels,
		Parents: parents,
		Values:  values,
		Title:   title,
		Colors:  colors,
	}, metadata)
}

// Info appends an info-level text entry.
func (l *Log) Info(text string) int64 {
	return l.AppendText(text, LevelInfo, nil)
}

// Warning appends a warning-level text entry.
func (l *Log) Warning(text string) int64 {
	return l.AppendText(text, LevelWarning, nil)
}

// Error appends an error-level text entry.
func (l *Log) Error(text string) int64 {
	return l.AppendText(text, LevelError, nil)
}

// Entries returns a snapshot of entries in append order. A non-empty kind
// filters to that kind.
func (l *Log) Entries(kind Kind) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// EntriesSince returns entries with EntryID greater than sinceID, in append
// order. Used by streaming consumers.
func (l *Log) EntriesSince(sinceID int64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.EntryID > sinceID {
			out = append(out, e)
		}
	}
	return out
}

// Summary returns the log's aggregate counts.
func (l *Log) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[Kind]int)
	for _, e := range l.entries {
		counts[e.Kind]++
	}
	return Summary{
		WorkflowID:   l.workflowID,
		Total:        len(l.entries),
		CountsByKind: counts,
		CreatedAt:    l.createdAt,
		LastUpdated:  l.lastUpdated,
	}
}

// SnapshotJSON serializes the full log as a JSON array of entries.
func (l *Log) SnapshotJSON() ([]byte, error) {
	return json.Marshal(l.Entries(""))
}

// Registry holds the process's workflow logs. One Registry is created at
// process entry and passed by reference; there is no package-level instance.
type Registry struct {
	mu   sync.RWMutex
	logs map[string]*Log
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{logs: make(map[string]*Log)}
}

// Get returns the log for a workflow id, creating it on first use.
func (r *Registry) Get(workflowID string) *Log {
	r.mu.RLock()
	l, ok := r.logs[workflowID]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[workflowID]; ok {
		return l
	}
	l = newLog(workflowID)
	r.logs[workflowID] = l
	return l
}

// Lookup returns the log for a workflow id without creating it.
func (r *Registry) Lookup(workflowID string) (*Log, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[workflowID]
	return l, ok
}

// WorkflowIDs returns the ids of all known logs.
func (r *Registry) WorkflowIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.logs))
	for id := range r.logs {
		ids = append(ids, id)
	}
	return ids
}
