package worklog

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_EntryIDsStrictlyIncreasing(t *testing.T) {
	log := NewRegistry().Get("wf-1")

	first := log.AppendText("starting", LevelInfo, nil)
	second := log.AppendTable([]string{"File"}, [][]string{{"a.sql"}}, "", nil)
	third := log.AppendSunburst([]string{"root"}, []string{""}, []float64{1}, "", nil, nil)

	assert.Less(t, first, second)
	assert.Less(t, second, third)

	entries := log.Entries("")
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].EntryID, entries[i-1].EntryID)
	}
}

func TestAppend_ConcurrentWritersSerialize(t *testing.T) {
	log := NewRegistry().Get("wf-concurrent")

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				log.AppendText(fmt.Sprintf("writer %d entry %d", w, i), LevelDebug, nil)
			}
		}(w)
	}
	wg.Wait()

	entries := log.Entries("")
	require.Len(t, entries, writers*perWriter)

	seen := make(map[int64]bool)
	var prev int64
	for _, e := range entries {
		assert.False(t, seen[e.EntryID], "duplicate entry id %d", e.EntryID)
		seen[e.EntryID] = true
		assert.Greater(t, e.EntryID, prev)
		prev = e.EntryID
	}
}

func TestEntries_KindFilter(t *testing.T) {
	log := NewRegistry().Get("wf-filter")
	log.Info("one")
	log.AppendTable([]string{"h"}, nil, "", nil)
	log.Warning("two")

	texts := log.Entries(KindText)
	require.Len(t, texts, 2)
	tables := log.Entries(KindTable)
	require.Len(t, tables, 1)
}

func TestSummary_CountsByKind(t *testing.T) {
	log := NewRegistry().Get("wf-summary")
	log.Info("a")
	log.Info("b")
	log.AppendSunburst([]string{"x"}, []string{""}, []float64{2}, "types", nil, nil)

	s := log.Summary()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.CountsByKind[KindText])
	assert.Equal(t, 1, s.CountsByKind[KindSunburst])
	assert.False(t, s.CreatedAt.IsZero())
	assert.False(t, s.LastUpdated.Before(s.CreatedAt))
}

func TestTable_Markdown(t *testing.T) {
	table := Table{
		Headers: []string{"File", "Type", "Matches"},
		Rows: [][]string{
			{"schema.sql", "sql", "3"},
			{"config.yml", "config"}, // short row padded
		},
		Title: "Discovery",
	}

	md := table.Markdown()
	assert.Contains(t, md, "**Discovery**")
	assert.Contains(t, md, "| File | Type | Matches |")
	assert.Contains(t, md, "| --- | --- | --- |")
	assert.Contains(t, md, "| schema.sql | sql | 3 |")
	assert.Contains(t, md, "| config.yml | config |  |")
}

func TestTable_MarkdownEmpty(t *testing.T) {
	assert.Contains(t, Table{}.Markdown(), "No data available")
}

func TestSunburst_FigureShape(t *testing.T) {
	s := Sunburst{
		Labels:  []string{"db", "sql", "config"},
		Parents: []string{"", "db", "db"},
		Values:  []float64{5, 3, 2},
		Title:   "Files by Type",
	}

	fig := s.Figure()
	data, ok := fig["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	trace := data[0].(map[string]any)
	assert.Equal(t, "sunburst", trace["type"])
	assert.Equal(t, "total", trace["branchvalues"])
	assert.Equal(t, s.Labels, trace["labels"])
}

func TestEntry_JSONRoundTrip(t *testing.T) {
	log := NewRegistry().Get("wf-roundtrip")
	log.AppendText("hello **world**", LevelWarning, map[string]any{"step": "discovery"})
	log.AppendTable([]string{"a", "b"}, [][]string{{"1", "2"}}, "T", nil)
	log.AppendSunburst([]string{"r", "c"}, []string{"", "r"}, []float64{2, 1}, "Chart", []string{"#111", "#222"}, nil)

	snapshot, err := log.SnapshotJSON()
	require.NoError(t, err)

	var restored []Entry
	require.NoError(t, json.Unmarshal(snapshot, &restored))
	require.Len(t, restored, 3)

	original := log.Entries("")
	for i := range original {
		assert.Equal(t, original[i].EntryID, restored[i].EntryID)
		assert.Equal(t, original[i].Kind, restored[i].Kind)
		assert.True(t, original[i].Timestamp.Equal(restored[i].Timestamp))
	}
	assert.Equal(t, original[0].Content, restored[0].Content)
	assert.Equal(t, original[1].Content, restored[1].Content)
	assert.Equal(t, original[2].Content, restored[2].Content)
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	reg := NewRegistry()

	a := reg.Get("wf-x")
	b := reg.Get("wf-x")
	assert.Same(t, a, b)

	_, ok := reg.Lookup("missing")
	assert.False(t, ok)
	assert.Contains(t, reg.WorkflowIDs(), "wf-x")
}

func TestEntriesSince(t *testing.T) {
	log := NewRegistry().Get("wf-since")
	id1 := log.Info("one")
	log.Info("two")
	log.Info("three")

	newer := log.EntriesSince(id1)
	require.Len(t, newer, 2)
	assert.Greater(t, newer[0].EntryID, id1)
}
