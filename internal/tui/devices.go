// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"pitchcv/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ScreenType is the active picker screen.
type ScreenType int

const (
	ListScreen ScreenType = iota
	RateScreen
)

// SampleRates offered once a device is chosen.
var SampleRates = []float64{44100, 48000, 88200, 96000}

var (
	keyQuit  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp    = key.NewBinding(key.WithKeys("up", "k"))
	keyDown  = key.NewBinding(key.WithKeys("down", "j"))
	keyEnter = key.NewBinding(key.WithKeys("enter"))
	keyBack  = key.NewBinding(key.WithKeys("esc"))
)

// Selection is the result of the picker. OK is false when the user quit
// without choosing.
type Selection struct {
	DeviceID   int
	SampleRate float64
	OK         bool
}

// DevicePickerModel lists the input-capable devices and then the sample
// rates for the chosen one.
type DevicePickerModel struct {
	devices  []audio.Device
	cursor   int
	rate     int
	screen   ScreenType
	viewport viewport.Model
	ready    bool
	result   Selection
}

// NewDevicePickerModel keeps only devices with input channels.
func NewDevicePickerModel(devices []audio.Device) DevicePickerModel {
	var inputs []audio.Device
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return DevicePickerModel{devices: inputs, screen: ListScreen}
}

func (m DevicePickerModel) Init() tea.Cmd { return nil }

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		switch m.screen {
		case ListScreen:
			m = m.updateList(msg)
		case RateScreen:
			if key.Matches(msg, keyEnter) {
				m.result = Selection{
					DeviceID:   m.devices[m.cursor].ID,
					SampleRate: SampleRates[m.rate],
					OK:         true,
				}
				return m, tea.Quit
			}
			m = m.updateRate(msg)
		}
	}

	if m.ready {
		m.viewport.SetContent(m.render())
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m DevicePickerModel) updateList(msg tea.KeyMsg) DevicePickerModel {
	switch {
	case key.Matches(msg, keyUp):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, keyDown):
		m.cursor = min(m.cursor+1, max(len(m.devices)-1, 0))
	case key.Matches(msg, keyEnter):
		if len(m.devices) == 0 {
			return m
		}
		m.screen = RateScreen
		m.rate = 0
		for i, r := range SampleRates {
			if r == m.devices[m.cursor].DefaultSampleRate {
				m.rate = i
				break
			}
		}
	}
	return m
}

func (m DevicePickerModel) updateRate(msg tea.KeyMsg) DevicePickerModel {
	switch {
	case key.Matches(msg, keyBack):
		m.screen = ListScreen
	case key.Matches(msg, keyUp):
		m.rate = max(m.rate-1, 0)
	case key.Matches(msg, keyDown):
		m.rate = min(m.rate+1, len(SampleRates)-1)
	}
	return m
}

func (m DevicePickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title, help := "Select Input Device", "↑/↓: Navigate • Enter: Choose • q: Quit"
	if m.screen == RateScreen {
		title, help = "Select Sample Rate", "↑/↓: Change • Enter: Start • Esc: Back • q: Quit"
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", titleStyle.Render(title), m.viewport.View(), infoStyle.Render(help))
}

func (m DevicePickerModel) render() string {
	if m.screen == RateScreen {
		return m.renderRates()
	}
	return m.renderDevices()
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s (%s)\n    Input channels: %d, Default sample rate: %.0f Hz\n",
			d.ID, d.Name, d.Kind(), d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.cursor {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DevicePickerModel) renderRates() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Device: %s\n\nSample Rate:\n", m.devices[m.cursor].Name)
	for i, r := range SampleRates {
		marker := " "
		if i == m.rate {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, r)
		if i == m.rate {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Selection returns what the user picked.
func (m DevicePickerModel) Selection() Selection { return m.result }

// PickDevice runs the picker and returns the user's choice.
func PickDevice(devices []audio.Device) (Selection, error) {
	final, err := tea.NewProgram(NewDevicePickerModel(devices), tea.WithAltScreen()).Run()
	if err != nil {
		return Selection{}, err
	}
	return final.(DevicePickerModel).Selection(), nil
}
