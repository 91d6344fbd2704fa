// Package tui provides an interactive terminal browser for trained
// strategy tables.
package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/kevsman/pokerplayer-sub002/internal/game"
	"github.com/kevsman/pokerplayer-sub002/solver"
)

const probabilityBarWidth = 20

// strategyRow is one renderable table entry, pre-parsed from its key.
type strategyRow struct {
	street      int
	handBucket  int
	boardBucket int
	entry       solver.StrategyEntry
	header      string
	search      string
}

// InspectorModel is the bubbletea model for browsing a strategy table.
// The viewport holds the rendered entries and the text input filters them.
type InspectorModel struct {
	table  *solver.StrategyTable
	logger *log.Logger

	viewport    viewport.Model
	filterInput textinput.Model

	rows []strategyRow

	focusedPane int // 0 = table, 1 = filter
	width       int
	height      int
	initialized bool
	quitting    bool
}

// NewInspector builds an inspector over the given table. Entries are
// sorted by street, hand bucket, and board bucket.
func NewInspector(table *solver.StrategyTable, logger *log.Logger) *InspectorModel {
	ti := textinput.New()
	ti.Placeholder = "street, bucket, or action"
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.CharLimit = 60
	ti.Width = 40
	ti.Focus()

	vp := viewport.New(80, 20)

	return &InspectorModel{
		table:       table,
		logger:      logger.WithPrefix("tui"),
		viewport:    vp,
		filterInput: ti,
		rows:        buildRows(table),
		focusedPane: 1,
	}
}

// buildRows flattens the table into sorted, searchable rows. Entries
// whose keys do not parse are skipped.
func buildRows(table *solver.StrategyTable) []strategyRow {
	rows := make([]strategyRow, 0, len(table.Entries))
	for key, entry := range table.Entries {
		street, hand, board, ok := parseTableKey(key)
		if !ok {
			continue
		}
		header := fmt.Sprintf("%-8s hand %-3d board %-3d weight %.1f",
			game.Street(street), hand, board, entry.Weight)
		rows = append(rows, strategyRow{
			street:      street,
			handBucket:  hand,
			boardBucket: board,
			entry:       entry,
			header:      header,
			search:      strings.ToLower(header + " " + strings.Join(entry.Actions, " ")),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.street != b.street {
			return a.street < b.street
		}
		if a.handBucket != b.handBucket {
			return a.handBucket < b.handBucket
		}
		if a.boardBucket != b.boardBucket {
			return a.boardBucket < b.boardBucket
		}
		return strings.Join(a.entry.Actions, ",") < strings.Join(b.entry.Actions, ",")
	})
	return rows
}

// parseTableKey splits "street|hand|board|actions" into its bucket tuple.
func parseTableKey(key string) (street, hand, board int, ok bool) {
	parts := strings.SplitN(key, "|", 4)
	if len(parts) != 4 {
		return 0, 0, 0, false
	}
	var err error
	if street, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, false
	}
	if hand, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, false
	}
	if board, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, false
	}
	if street < int(game.Preflop) || street > int(game.Showdown) {
		return 0, 0, 0, false
	}
	return street, hand, board, true
}

func (m *InspectorModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *InspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("terminal resized", "width", msg.Width, "height", msg.Height)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *InspectorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case "tab":
		if m.focusedPane == 0 {
			m.focusedPane = 1
			m.filterInput.Focus()
			return m, textinput.Blink
		}
		m.focusedPane = 0
		m.filterInput.Blur()
		return m, nil
	}

	if m.focusedPane == 0 {
		switch msg.String() {
		case "up", "k":
			m.viewport.LineUp(1)
		case "down", "j":
			m.viewport.LineDown(1)
		case "pgup", "b":
			m.viewport.HalfViewUp()
		case "pgdown", "f":
			m.viewport.HalfViewDown()
		case "home", "g":
			m.viewport.GotoTop()
		case "end", "G":
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	if msg.String() == "enter" {
		m.focusedPane = 0
		m.filterInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// filteredRows returns the rows whose text matches the current filter.
// An empty filter matches everything.
func (m *InspectorModel) filteredRows() []strategyRow {
	filter := strings.ToLower(strings.TrimSpace(m.filterInput.Value()))
	if filter == "" {
		return m.rows
	}
	matched := make([]strategyRow, 0, len(m.rows))
	for _, row := range m.rows {
		if strings.Contains(row.search, filter) {
			matched = append(matched, row)
		}
	}
	return matched
}

// renderRow renders one entry as a header line plus one bar per action.
func renderRow(row strategyRow) string {
	var b strings.Builder
	b.WriteString(RowHeaderStyle.Render(row.header))
	for i, action := range row.entry.Actions {
		p := row.entry.Probabilities[i]
		filled := int(p*probabilityBarWidth + 0.5)
		if filled < 0 {
			filled = 0
		}
		if filled > probabilityBarWidth {
			filled = probabilityBarWidth
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", probabilityBarWidth-filled)
		line := fmt.Sprintf("  %-6s %s %5.1f%%", action, bar, p*100)
		b.WriteString("\n")
		b.WriteString(actionStyle(action).Render(line))
	}
	return b.String()
}

func actionStyle(action string) lipgloss.Style {
	switch action {
	case "fold":
		return FoldStyle
	case "raise":
		return RaiseStyle
	default:
		return CallStyle
	}
}

func renderRows(rows []strategyRow) string {
	if len(rows) == 0 {
		return InfoStyle.Render("no entries match the filter")
	}
	sections := make([]string, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, renderRow(row))
	}
	return strings.Join(sections, "\n\n")
}

func (m *InspectorModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	rows := m.filteredRows()
	header := HeaderStyle.Render(fmt.Sprintf(" run %s  iterations %d  entries %d/%d ",
		m.table.RunID, m.table.Iterations, len(rows), len(m.rows)))

	helpText := "tab: filter  j/k: scroll  b/f: half page  g/G: top/bottom  esc: quit"
	if m.focusedPane == 1 {
		helpText = "type to filter  enter: apply  tab: table  esc: quit"
	}
	filterContent := m.filterInput.View() + "\n" + InfoStyle.Render(helpText)
	filterHeight := lipgloss.Height(filterContent)

	paneWidth := m.width - 2
	if paneWidth < 1 {
		paneWidth = 1
	}
	viewportWidth := m.width - 6
	if viewportWidth < 1 {
		viewportWidth = 1
	}
	viewportHeight := m.height - filterHeight - lipgloss.Height(header) - 5
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
	m.viewport.SetContent(renderRows(rows))
	if !m.initialized {
		m.viewport.GotoTop()
		m.initialized = true
	}

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Padding(0, 1).
		Width(paneWidth)
	filterStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Padding(0, 1).
		Width(paneWidth)
	if m.focusedPane == 0 {
		tableStyle = tableStyle.BorderForeground(lipgloss.Color("#04B575"))
	} else {
		filterStyle = filterStyle.BorderForeground(lipgloss.Color("#04B575"))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		tableStyle.Render(m.viewport.View()),
		filterStyle.Render(filterContent),
	)
}
