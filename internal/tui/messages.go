package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
)

// refreshInterval is the snapshot backstop when no notification arrives.
const refreshInterval = 500 * time.Millisecond

// NotificationMsg wraps an engine notification delivered to the program.
type NotificationMsg struct {
	Notification basestation.Notification
}

// refreshMsg asks the model to re-read the snapshot.
type refreshMsg struct{}

func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Observer forwards engine notifications to a running program.
type Observer struct {
	send func(tea.Msg)
}

// NewObserver returns an observer that sends each notification through send,
// typically (*tea.Program).Send.
func NewObserver(send func(tea.Msg)) *Observer {
	return &Observer{send: send}
}

// Notify implements basestation.Observer.
func (o *Observer) Notify(n basestation.Notification) {
	o.send(NotificationMsg{Notification: n})
}
