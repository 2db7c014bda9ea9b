package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// commandSource tags commands issued from the terminal.
const commandSource = "tui"

// Engine is the subset of *basestation.Engine the terminal UI needs.
type Engine interface {
	Snapshot() basestation.Snapshot
	Enqueue(cmd basestation.Command) bool
}

// Ensure Model satisfies tea.Model.
var _ tea.Model = Model{}

// pendingState is an optimistic state shown until the device reports
// something other than observed.
type pendingState struct {
	shown     power.State
	observed  power.State
	commandID string
}

// Model is the root Bubble Tea model.
type Model struct {
	engine  Engine
	snap    basestation.Snapshot
	pending map[string]pendingState
	cursor  int
	status  string

	keys    keyMap
	help    help.Model
	spinner spinner.Model
}

// NewModel creates the model and reads the first snapshot.
func NewModel(engine Engine) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return Model{
		engine:  engine,
		snap:    engine.Snapshot(),
		pending: make(map[string]pendingState),
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: s,
	}
}

// Init starts the spinner and the refresh backstop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshCmd())
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case NotificationMsg:
		m.handleNotification(msg.Notification)
		m.refresh()
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, refreshCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.snap.Devices)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Rescan):
		m.rescan()
	case key.Matches(msg, m.keys.On):
		m.changePower(power.TargetOn)
	case key.Matches(msg, m.keys.Standby):
		m.changePower(power.TargetStandby)
	case key.Matches(msg, m.keys.Sleep):
		m.changePower(power.TargetSleep)
	}
	return m, nil
}

// rescan clears the list and restarts discovery. It does nothing while a
// scan is running.
func (m *Model) rescan() {
	if m.snap.Scanning {
		return
	}
	if !m.engine.Enqueue(basestation.RestartScan().WithSource(commandSource)) {
		m.status = "Command queue full"
		return
	}
	m.status = ""
	m.pending = make(map[string]pendingState)
	m.cursor = 0
}

// changePower enqueues target for the selected device when its displayed
// state allows it.
func (m *Model) changePower(target power.Target) {
	dev, ok := m.selected()
	if !ok || !m.displayState(dev).Allows(target) {
		return
	}

	cmd := basestation.ChangePowerState(dev.Address, target).WithSource(commandSource)
	cmd.ID = basestation.NewCommandID()
	if !m.engine.Enqueue(cmd) {
		m.status = "Command queue full"
		return
	}
	m.status = ""
	m.pending[dev.Address] = pendingState{
		shown:     target.Pending(),
		observed:  dev.PowerState,
		commandID: cmd.ID,
	}
}

// handleNotification drops optimistic states that the engine has resolved.
func (m *Model) handleNotification(n basestation.Notification) {
	switch n.Type {
	case basestation.EventScanStarted:
		m.pending = make(map[string]pendingState)
	case basestation.EventScanFailed:
		m.status = ""
	case basestation.EventPowerStateChanged:
		delete(m.pending, n.Address)
	case basestation.EventCommandExecuted:
		if n.Command == nil || n.Outcome == basestation.OutcomeOK {
			return
		}
		if p, ok := m.pending[n.Command.Address]; ok && p.commandID == n.Command.ID {
			delete(m.pending, n.Command.Address)
		}
		if n.Outcome == basestation.OutcomeFailed {
			m.status = fmt.Sprintf("Could not change %s: %s", n.Command.Address, n.Error)
		}
	}
}

// refresh re-reads the snapshot and clears pending states whose device now
// reports a different state than when the command was issued.
func (m *Model) refresh() {
	m.snap = m.engine.Snapshot()
	for addr, p := range m.pending {
		dev, ok := m.snap.Device(addr)
		if !ok || dev.PowerState != p.observed {
			delete(m.pending, addr)
		}
	}
	if m.cursor >= len(m.snap.Devices) {
		m.cursor = max(len(m.snap.Devices)-1, 0)
	}
}

func (m Model) selected() (basestation.Device, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Devices) {
		return basestation.Device{}, false
	}
	return m.snap.Devices[m.cursor], true
}

// displayState returns the pending state when one is set.
func (m Model) displayState(d basestation.Device) power.State {
	if p, ok := m.pending[d.Address]; ok {
		return p.shown
	}
	return d.PowerState
}

// View renders the header, the device list and the help line.
func (m Model) View() string {
	var b strings.Builder

	header := m.snap.Headline()
	switch {
	case m.snap.Error != basestation.ErrorNone:
		b.WriteString(headerStyle.Render(errorStyle.Render(header)))
	case m.snap.Scanning:
		b.WriteString(headerStyle.Render(m.spinner.View() + " " + header))
	default:
		b.WriteString(headerStyle.Render(header))
	}
	b.WriteString("\n")

	if len(m.snap.Devices) == 0 {
		b.WriteString(emptyStyle.Render("No base stations"))
		b.WriteString("\n")
	}
	for i, d := range m.snap.Devices {
		b.WriteString(m.renderDevice(i, d))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderDevice(i int, d basestation.Device) string {
	cursor := "  "
	if i == m.cursor {
		cursor = cursorStyle.Render("▸ ")
	}

	state := m.displayState(d)
	label := stateStyle(state.Label()).Render(state.Label())
	if _, ok := m.pending[d.Address]; ok {
		label = pendingStyle.Render(label)
	}

	actions := make([]string, 0, len(power.Targets()))
	for _, t := range power.Targets() {
		name := actionLabel(t)
		if state.Allows(t) {
			actions = append(actions, actionOn.Render("["+name+"]"))
		} else {
			actions = append(actions, actionOff.Render("["+name+"]"))
		}
	}

	return cursor +
		nameStyle.Render(d.DisplayName()) +
		addressStyle.Render(d.Address) +
		label + " " +
		strings.Join(actions, " ")
}

// actionLabel is the button text for a target.
func actionLabel(t power.Target) string {
	if t == power.TargetStandby {
		return "stand by"
	}
	return t.String()
}

// Run starts the program and blocks until the user quits or ctx is
// cancelled. addObserver registers the program as an engine observer.
func Run(ctx context.Context, engine Engine, addObserver func(basestation.Observer), opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewModel(engine), opts...)
	if addObserver != nil {
		addObserver(NewObserver(p.Send))
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}
