package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#FFB3BA")
	muted  = lipgloss.Color("#6B7280")
	mint   = lipgloss.Color("#A8E6CF")

	titleStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	noteStyle  = lipgloss.NewStyle().Foreground(muted)
	helpStyle  = lipgloss.NewStyle().Foreground(muted).Italic(true)
	countStyle = lipgloss.NewStyle().Foreground(mint)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(muted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#111827")).Background(mint)
	return s
}

func (m *model) View() string {
	var b strings.Builder

	live := 0
	for _, r := range m.rows {
		if r.stream.IsLive() {
			live++
		}
	}
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(countStyle.Render(fmt.Sprintf("%d accounts, %d live", len(m.rows), live)))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	for _, n := range m.notes {
		b.WriteString(noteStyle.Render(n))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • q quit"))
	b.WriteString("\n")
	return b.String()
}
