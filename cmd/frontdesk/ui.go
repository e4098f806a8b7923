//go:build cgo

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/frontdesk-ai/frontdesk-core/core"
)

const expiryWarning = 30 * time.Second

type transcriptChangedMsg struct{}

type stateChangedMsg struct {
	state session.State
}

type stoppedMsg struct {
	reason session.StopReason
}

type tickMsg time.Time

type startFailedMsg struct {
	err error
}

type keyMap struct {
	Quit       key.Binding
	ToggleMode key.Binding
	PushToTalk key.Binding
	Sources    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		ToggleMode: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "input mode")),
		PushToTalk: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "talk")),
		Sources:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sources")),
	}
}

type styles struct {
	Header    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Latency   lipgloss.Style
	Source    lipgloss.Style
	Timer     lipgloss.Style
	TimerWarn lipgloss.Style
	Status    lipgloss.Style
	Level     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		System:    lipgloss.NewStyle().Faint(true).Italic(true),
		Latency:   lipgloss.NewStyle().Faint(true),
		Source:    lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("179")),
		Timer:     lipgloss.NewStyle().Foreground(lipgloss.Color("246")),
		TimerWarn: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		Status:    lipgloss.NewStyle().Faint(true),
		Level:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
}

type uiModel struct {
	sess *session.Session

	viewport viewport.Model
	keys     keyMap
	styles   styles

	width  int
	height int
	ready  bool

	state       session.State
	talking     bool
	showSources bool
	level       float64
	stopReason  session.StopReason
	startErr    error
}

func newModel(sess *session.Session) uiModel {
	return uiModel{
		sess:   sess,
		keys:   defaultKeyMap(),
		styles: defaultStyles(),
		state:  session.StateIdle,
	}
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(m.startSession(), tick())
}

func (m uiModel) startSession() tea.Cmd {
	return func() tea.Msg {
		if err := m.sess.Start(context.Background()); err != nil {
			return startFailedMsg{err: err}
		}
		return nil
	}
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()

	case transcriptChangedMsg:
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()

	case stateChangedMsg:
		m.state = msg.state

	case stoppedMsg:
		m.stopReason = msg.reason
		return m, tea.Quit

	case startFailedMsg:
		m.startErr = msg.err
		return m, tea.Quit

	case tickMsg:
		m.level = m.sess.InputLevel()
		return m, tick()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m uiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.sess.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleMode):
		next := session.InputModeManual
		if m.sess.Mode() == session.InputModeManual {
			next = session.InputModeContinuous
		}
		if err := m.sess.SetInputMode(next); err == nil {
			m.talking = false
		}
		return m, nil

	case key.Matches(msg, m.keys.PushToTalk):
		// Terminals deliver no key-up events, so push-to-talk toggles.
		if m.sess.Mode() != session.InputModeManual {
			return m, nil
		}
		if m.talking {
			m.sess.EndUtterance()
			m.talking = false
		} else {
			m.sess.BeginUtterance()
			m.talking = true
		}
		return m, nil

	case key.Matches(msg, m.keys.Sources):
		m.showSources = !m.showSources
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m uiModel) View() string {
	if !m.ready {
		return "starting..."
	}

	header := m.styles.Header.Render("frontdesk") + "  " + m.renderTimer()
	status := m.renderStatus()

	return header + "\n" + m.viewport.View() + "\n" + status
}

func (m uiModel) renderTimer() string {
	expiresAt := m.sess.ExpiresAt()
	if expiresAt.IsZero() {
		return ""
	}

	remaining := time.Until(expiresAt).Truncate(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	label := fmt.Sprintf("%d:%02d left", int(remaining.Minutes()), int(remaining.Seconds())%60)
	if remaining <= expiryWarning {
		return m.styles.TimerWarn.Render(label)
	}
	return m.styles.Timer.Render(label)
}

func (m uiModel) renderStatus() string {
	parts := []string{string(m.state), "mode: " + string(m.sess.Mode())}

	if m.sess.Mode() == session.InputModeManual {
		if m.talking {
			parts = append(parts, "recording (space to send)")
		} else {
			parts = append(parts, "space to talk")
		}
	}

	status := m.styles.Status.Render(strings.Join(parts, "  |  "))
	return status + "  " + m.styles.Level.Render(levelMeter(m.level))
}

// levelMeter renders the microphone energy as a small bar.
func levelMeter(level float64) string {
	const width = 10
	filled := int(level * 4 * width)
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func (m uiModel) renderTranscript() string {
	var b strings.Builder
	wrapWidth := m.viewport.Width - 2
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	for _, turn := range m.sess.Transcript() {
		switch turn.Role {
		case session.TurnRoleUser:
			b.WriteString(m.styles.User.Render("You: "))
			b.WriteString(wordwrap.String(turn.Text, wrapWidth))
		case session.TurnRoleAssistant:
			b.WriteString(m.styles.Assistant.Render("Assistant: "))
			b.WriteString(wordwrap.String(turn.Text, wrapWidth))
			if turn.Sealed && turn.Elapsed > 0 {
				b.WriteString(m.styles.Latency.Render(fmt.Sprintf(" (%.1fs)", turn.Elapsed.Seconds())))
			}
			if turn.Context != "" {
				if m.showSources {
					b.WriteString("\n" + m.styles.Source.Render(wordwrap.String(turn.Context, wrapWidth)))
				} else {
					b.WriteString("\n" + m.styles.Source.Render("▸ source available (s to show)"))
				}
			}
		case session.TurnRoleSystem:
			b.WriteString(m.styles.System.Render(wordwrap.String(turn.Text, wrapWidth)))
		}
		b.WriteString("\n\n")
	}

	return b.String()
}
