// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"pitchcv/internal/pitch"
	"pitchcv/internal/tracker"
	"pitchcv/internal/transport"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultRefresh is how often the monitor polls for a new reading.
const DefaultRefresh = 33 * time.Millisecond

const meterWidth = 41 // odd, so 0 V has its own cell

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(11)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Bold(true)

	lightOnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	lightOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))
)

type monitorKeys struct {
	Quit  key.Binding
	Pause key.Binding
}

func (k monitorKeys) ShortHelp() []key.Binding  { return []key.Binding{k.Pause, k.Quit} }
func (k monitorKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var defaultMonitorKeys = monitorKeys{
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Pause: key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "freeze")),
}

type tickMsg time.Time

// MonitorModel shows the tracker's latest reading: voltage with a meter,
// frequency, nearest note and the indicator light.
type MonitorModel struct {
	provider transport.ReadingProvider
	refresh  time.Duration
	title    string

	reading tracker.Reading
	frozen  bool
	keys    monitorKeys
	help    help.Model
}

// NewMonitorModel polls provider every refresh (DefaultRefresh when <= 0).
func NewMonitorModel(provider transport.ReadingProvider, title string, refresh time.Duration) MonitorModel {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return MonitorModel{
		provider: provider,
		refresh:  refresh,
		title:    title,
		keys:     defaultMonitorKeys,
		help:     help.New(),
	}
}

func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if !m.frozen {
			m.reading = m.provider.Latest()
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.frozen = !m.frozen
		}
	}
	return m, nil
}

func (m MonitorModel) View() string {
	r := m.reading
	var sb strings.Builder

	title := m.title
	if m.frozen {
		title += " (frozen)"
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	row("CV", valueStyle.Render(fmt.Sprintf("%+7.3f V", r.ControlVoltage)))
	row("", meter(r.ControlVoltage))
	if r.Analyses == 0 {
		row("Frequency", "--")
	} else {
		row("Frequency", valueStyle.Render(fmt.Sprintf("%.2f Hz", r.Frequency)))
	}
	row("Note", valueStyle.Render(pitch.NoteForFrequency(r.Frequency).String()))
	row("Light", light(r.Indicator))
	row("Analyses", fmt.Sprintf("%d (peak slot %d)", r.Analyses, r.Peak))

	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// Reading returns the reading currently displayed.
func (m MonitorModel) Reading() tracker.Reading { return m.reading }

// meter draws the voltage as a marker on a -10..+10 V scale.
func meter(cv float64) string {
	span := pitch.MaxVoltage - pitch.MinVoltage
	pos := int((cv - pitch.MinVoltage) / span * float64(meterWidth-1))
	pos = min(max(pos, 0), meterWidth-1)

	cells := []rune(strings.Repeat("─", meterWidth))
	cells[meterWidth/2] = '┼'
	cells[pos] = '●'
	return fmt.Sprintf("%+.0f %s %+.0f", pitch.MinVoltage, string(cells), pitch.MaxVoltage)
}

func light(brightness float64) string {
	if brightness > 0 {
		return lightOnStyle.Render("●")
	}
	return lightOffStyle.Render("○")
}

// RunMonitor blocks until the user quits.
func RunMonitor(provider transport.ReadingProvider, title string, refresh time.Duration) error {
	p := tea.NewProgram(NewMonitorModel(provider, title, refresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
