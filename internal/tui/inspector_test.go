package tui

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevsman/pokerplayer-sub002/solver"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func testTable(t *testing.T) *solver.StrategyTable {
	t.Helper()
	table := solver.NewStrategyTable("inspect-test", 500, solver.AbstractionMeta{
		HandCeilings:  []float64{0.5, 1.0},
		BucketSamples: 10,
		BucketSeed:    7,
		BoardBuckets:  6,
	})
	require.NoError(t, table.Upsert(1, 1, 2, []string{"call", "fold", "raise"}, []float64{2, 1, 2}))
	require.NoError(t, table.Upsert(0, 1, 0, []string{"check", "raise"}, []float64{3, 1}))
	require.NoError(t, table.Upsert(0, 0, 0, []string{"call", "fold", "raise"}, []float64{1, 1, 2}))
	return table
}

func TestNewInspectorBuildsSortedRows(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())

	require.Len(t, m.rows, 3)
	assert.Equal(t, 0, m.rows[0].street)
	assert.Equal(t, 0, m.rows[0].handBucket)
	assert.Equal(t, 1, m.rows[1].handBucket)
	assert.Equal(t, 1, m.rows[2].street)
	assert.Contains(t, m.rows[0].search, "preflop")
	assert.Contains(t, m.rows[2].search, "flop")
}

func TestParseTableKey(t *testing.T) {
	street, hand, board, ok := parseTableKey("2|14|3|call,fold,raise")
	require.True(t, ok)
	assert.Equal(t, 2, street)
	assert.Equal(t, 14, hand)
	assert.Equal(t, 3, board)

	for _, key := range []string{"", "1|2|3", "x|2|3|call", "1|y|3|call", "1|2|z|call", "9|2|3|call"} {
		_, _, _, ok := parseTableKey(key)
		assert.False(t, ok, "key %q should not parse", key)
	}
}

func TestFilteredRowsMatchesSubstring(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())

	assert.Len(t, m.filteredRows(), 3)

	m.filterInput.SetValue("flop")
	rows := m.filteredRows()
	for _, row := range rows {
		assert.Contains(t, row.search, "flop")
	}
	assert.Len(t, rows, 3) // "preflop" contains "flop" too

	m.filterInput.SetValue("weight 4.0")
	require.Len(t, m.filteredRows(), 2)

	m.filterInput.SetValue("no such thing")
	assert.Empty(t, m.filteredRows())
}

func TestRenderRowShowsProbabilityBars(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())

	out := renderRow(m.rows[0])
	assert.Contains(t, out, "preflop")
	assert.Contains(t, out, "fold")
	assert.Contains(t, out, "raise")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, strings.Repeat("█", 10))
}

func TestInspectorTabSwitchesFocus(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())
	require.Equal(t, 1, m.focusedPane)
	require.True(t, m.filterInput.Focused())

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = model.(*InspectorModel)
	assert.Equal(t, 0, m.focusedPane)
	assert.False(t, m.filterInput.Focused())

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = model.(*InspectorModel)
	assert.Equal(t, 1, m.focusedPane)
	assert.True(t, m.filterInput.Focused())
}

func TestInspectorTypingFiltersEntries(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())

	for _, r := range "turn" {
		model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = model.(*InspectorModel)
	}
	assert.Equal(t, "turn", m.filterInput.Value())
	assert.Empty(t, m.filteredRows())

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(*InspectorModel)
	assert.Equal(t, 0, m.focusedPane)
}

func TestInspectorQuitClearsView(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = model.(*InspectorModel)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Equal(t, "", m.View())
}

func TestInspectorViewAfterResize(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())
	assert.Equal(t, "Loading...", m.View())

	model, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = model.(*InspectorModel)

	view := m.View()
	assert.Contains(t, view, "run inspect-test")
	assert.Contains(t, view, "iterations 500")
	assert.Contains(t, view, "entries 3/3")
	assert.Contains(t, view, "type to filter")
	assert.True(t, m.initialized)

	// Tiny terminals clamp instead of panicking.
	model, _ = m.Update(tea.WindowSizeMsg{Width: 3, Height: 2})
	m = model.(*InspectorModel)
	assert.NotEmpty(t, m.View())
}

func TestInspectorScrollKeys(t *testing.T) {
	m := NewInspector(testTable(t), quietLogger())
	model, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	m = model.(*InspectorModel)
	m.View()

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = model.(*InspectorModel)
	require.Equal(t, 0, m.focusedPane)

	for _, key := range []string{"j", "j", "f", "G", "g", "k", "b"} {
		model, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
		m = model.(*InspectorModel)
	}
	assert.NotEmpty(t, m.View())
	assert.Zero(t, m.viewport.YOffset)
}
