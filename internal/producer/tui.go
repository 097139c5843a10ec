// ABOUTME: Producer TUI for displaying connected players and stream counters
// ABOUTME: Real-time producer status display using bubbletea
package producer

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the producer TUI
type ServerTUI struct {
	program  *tea.Program
	ready    chan struct{}
	updates  chan ServerStatus
	quitChan chan struct{}
}

// ServerStatus holds producer state for the TUI
type ServerStatus struct {
	Clients    []ClientInfo
	Utterances int64
	Chunks     int64
	BargeIns   int64
	Mode       string
}

// ClientInfo holds player information for display
type ClientInfo struct {
	ID    string
	Since time.Time
}

// tuiModel is the bubbletea model for the producer TUI
type tuiModel struct {
	name      string
	port      int
	source    string
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down producer...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	clientHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Voicestage Producer"))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(headerStyle.Render(label + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Character", m.name)
	field("Port", fmt.Sprintf("%d", m.port))
	field("Uptime", time.Since(m.startTime).Round(time.Second).String())
	field("Source", m.source)
	field("Mode", m.status.Mode)
	field("Sent", fmt.Sprintf("%d utterances, %d chunks, %d barge-ins",
		m.status.Utterances, m.status.Chunks, m.status.BargeIns))
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Players (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No players connected"))
		b.WriteString("\n")
	} else {
		for _, c := range m.status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", c.ID))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (for %s)", time.Since(c.Since).Round(time.Second))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates a new producer TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		ready:    make(chan struct{}),
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(name string, port int, source string) error {
	m := tuiModel{
		name:      name,
		port:      port,
		source:    source,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())
	close(t.ready)

	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	select {
	case <-t.ready:
		t.program.Quit()
	default:
	}
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
