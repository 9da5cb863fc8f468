package review

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// SourceCount is one picker row: a source and its pending review count.
// An empty Source stands for every source.
type SourceCount struct {
	Source string
	Count  int
}

// CountBySource groups items by source, preceded by an "all sources" row.
func CountBySource(items []Item) []SourceCount {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Entry.Source]++
	}
	rows := make([]SourceCount, 0, len(counts)+1)
	for src, n := range counts {
		rows = append(rows, SourceCount{Source: src, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Source < rows[j].Source })
	return append([]SourceCount{{Count: len(items)}}, rows...)
}

// FilterSource keeps the items from source; "" keeps everything.
func FilterSource(items []Item, source string) []Item {
	if source == "" {
		return items
	}
	var out []Item
	for _, it := range items {
		if it.Entry.Source == source {
			out = append(out, it)
		}
	}
	return out
}

type pickerModel struct {
	rows   []SourceCount
	cursor int
	chosen int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Duplicate Review: select a source")
	s += "\n"

	for i, r := range m.rows {
		name := r.Source
		if name == "" {
			name = "All sources"
		}
		label := fmt.Sprintf("%s (%d pending)", name, r.Count)
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunSourcePicker shows an interactive source selector.
// Returns the chosen source ("" for all) and false if the user quit.
func RunSourcePicker(rows []SourceCount) (string, bool, error) {
	p := tea.NewProgram(pickerModel{rows: rows, chosen: -1})
	result, err := p.Run()
	if err != nil {
		return "", false, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return "", false, nil
	}
	return rows[final.chosen].Source, true, nil
}
