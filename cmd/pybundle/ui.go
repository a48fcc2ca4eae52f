// # cmd/pybundle/ui.go
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pybundle/internal/bundle"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	entry      string
	list       list.Model
	result     *bundle.Result
	err        error
	lastUpdate time.Time
}

type updateMsg struct {
	result *bundle.Result
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.result = msg.result
		m.err = msg.err
		m.lastUpdate = time.Now()

		items := []list.Item{}
		if m.result != nil {
			for _, grp := range m.result.Groups {
				items = append(items, item{
					title: fmt.Sprintf("Circular Dependency (%s)", grp.Kind),
					desc:  strings.Join(grp.Names, " -> "),
				})
			}
			for _, d := range m.result.Diagnostics {
				if d.Severity == bundle.Info {
					continue
				}
				desc := d.Message
				if d.Location.File != "" {
					desc = fmt.Sprintf("%s (%s:%d)", d.Message, d.Location.File, d.Location.Line)
				}
				items = append(items, item{
					title: strings.ToUpper(d.Severity.String()[:1]) + d.Severity.String()[1:],
					desc:  desc,
				})
			}
		}
		m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	stats := ""
	if m.result != nil {
		stats = fmt.Sprintf("%d modules | %d statements | %d renames | %s",
			m.result.Stats.Modules, m.result.Stats.IncludedItems,
			m.result.Stats.Renames, byteCount(m.result.Stats.OutputBytes))
	}
	status := statusStyle.Render(fmt.Sprintf("Last build: %v | %s",
		m.lastUpdate.Format("15:04:05"), stats))

	var summary string
	switch {
	case m.err != nil:
		summary = errorStyle.Render(fmt.Sprintf("✗ %v", m.err))
	case m.result != nil && m.result.Stats.CycleGroups > 0:
		summary = warnStyle.Render(fmt.Sprintf("⚠ %d cycle groups resolved in bundle", m.result.Stats.CycleGroups))
	default:
		summary = successStyle.Render("✓ Bundle up to date")
	}

	header := fmt.Sprintf("%s\n%s\n%s\n", titleStyle("pybundle — "+m.entry), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func byteCount(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	if n < 1024*1024 {
		return fmt.Sprintf("%.1f KiB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1f MiB", float64(n)/(1024*1024))
}

func initialModel(entry string) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Findings"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		entry:      entry,
		list:       l,
		lastUpdate: time.Now(),
	}
}
