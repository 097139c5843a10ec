// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries key presses back to the application
type Controls struct {
	BargeIn chan struct{}
	Quit    chan struct{}
}

// NewControls creates a new controls handler
func NewControls() *Controls {
	return &Controls{
		BargeIn: make(chan struct{}, 1),
		Quit:    make(chan struct{}, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, character string) Model {
	return Model{
		character:  character,
		state:      "idle",
		discipline: "none",
		controls:   controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls, character string) *tea.Program {
	return tea.NewProgram(NewModel(controls, character), tea.WithAltScreen())
}
