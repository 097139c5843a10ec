// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lanlan-project/voicestage/internal/player"
)

const maxTranscript = 500

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string
	character  string

	// Channel text
	status     string
	transcript string
	expression string

	// Playback
	state       string
	discipline  string
	targetDepth int
	bufferDepth int
	scheduled   int
	mouth       float64

	// Stats
	received      int64
	played        int64
	dropped       int64
	underruns     int64
	interruptions int64
	deviceErrors  int64

	// Debug
	showDebug bool
	sessionID string

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case StatsMsg:
		m.applyStats(player.Stats(msg))
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderSpeech()
	s += m.renderPlayback()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverName)
	}

	return fmt.Sprintf(`┌─ Voicestage ─────────────────────────────────────────┐
│ Status: %-45s │
│ Voice:  %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 45), truncate(m.character, 45))
}

// renderSpeech renders the latest channel text
func (m Model) renderSpeech() string {
	s := fmt.Sprintf("│ Says:   %-45s │\n", tail(m.transcript, 45))
	s += fmt.Sprintf("│ Mood:   %-45s │\n", truncate(m.expression, 45))
	if m.status != "" {
		s += fmt.Sprintf("│ Note:   %-45s │\n", truncate(m.status, 45))
	}
	return s
}

// renderPlayback renders the scheduler state and mouth meter
func (m Model) renderPlayback() string {
	mouthBar := renderBar(int(m.mouth*100), 100, 20)
	depthBar := renderBar(m.bufferDepth, max(m.targetDepth, m.bufferDepth, 1), 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ State:  %-10s %-34s │\n"+
		"│ Buffer: [%s] %d/%d queued, %d playing%-11s │\n"+
		"│ Mouth:  [%s] %3.0f%%%-18s │\n",
		m.state, m.discipline,
		depthBar, m.bufferDepth, m.targetDepth, m.scheduled, "",
		mouthBar, m.mouth*100, "")
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  RX: %d  Played: %d  Dropped: %d%-8s │
│         Underruns: %d  Interrupts: %d%-12s │
`, m.received, m.played, m.dropped, "", m.underruns, m.interruptions, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Interrupt  d:Debug  q:Quit                     │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Session: %-42s │
│   Device errors: %-36d │
`, truncate(m.sessionID, 42), m.deviceErrors)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case " ", "space":
		if m.controls != nil {
			select {
			case m.controls.BargeIn <- struct{}{}:
			default:
			}
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Character != "" {
		m.character = msg.Character
	}
	if msg.Status != "" {
		m.status = msg.Status
	}
	if msg.NewMessage {
		m.transcript = ""
	}
	if msg.Transcript != "" {
		m.transcript = tail(m.transcript+msg.Transcript, maxTranscript)
	}
	if msg.Expression != "" {
		m.expression = msg.Expression
	}
}

// applyStats copies an engine snapshot
func (m *Model) applyStats(s player.Stats) {
	m.sessionID = s.SessionID
	m.state = s.State.String()
	m.discipline = s.Discipline.String()
	m.targetDepth = s.TargetDepth
	m.bufferDepth = s.BufferDepth
	m.scheduled = s.Scheduled
	m.mouth = s.MouthOpenness
	m.received = s.Received
	m.played = s.Played
	m.dropped = s.DecodeErrors + s.Stale
	m.underruns = s.Underruns
	m.interruptions = s.Interruptions
	m.deviceErrors = s.DeviceErrors
}

// StatusMsg updates connection and channel text. Zero fields are ignored.
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Character  string
	Status     string
	// NewMessage clears the transcript before Transcript is appended
	NewMessage bool
	Transcript string
	Expression string
}

// StatsMsg carries an engine snapshot
type StatsMsg player.Stats

// Utility functions
func renderBar(value, total, width int) string {
	if total <= 0 {
		total = 1
	}
	filled := (value * width) / total
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

// tail keeps the end of s, which is where streamed text grows
func tail(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return "..." + string(r[len(r)-length+3:])
}
