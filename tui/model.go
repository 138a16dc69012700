package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"midi-bridge/bus"
	"midi-bridge/mediation"
	"midi-bridge/theme"
)

const refreshRate = 100 * time.Millisecond

// Snapshotter exposes read-only engine state.
type Snapshotter interface {
	Snapshot() mediation.Snapshot
}

// StatusReporter exposes the bus connection state.
type StatusReporter interface {
	Status() bus.Status
}

type Model struct {
	Engine Snapshotter
	Bus    StatusReporter
	Theme  *theme.Theme

	snap     mediation.Snapshot
	status   bus.Status
	now      time.Time
	width    int
	quitting bool
	done     <-chan error
	Err      error // set when the pipeline stopped on its own
}

type tickMsg time.Time

// DoneMsg reports that the mediation pipeline stopped.
type DoneMsg struct{ Err error }

func NewModel(engine Snapshotter, status StatusReporter, th *theme.Theme, done <-chan error) Model {
	return Model{
		Engine: engine,
		Bus:    status,
		Theme:  th,
		done:   done,
		now:    time.Now(),
		snap:   engine.Snapshot(),
		status: status.Status(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func ListenForDone(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return DoneMsg{Err: <-done}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.done != nil {
		cmds = append(cmds, ListenForDone(m.done))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.now = time.Time(msg)
		m.snap = m.Engine.Snapshot()
		m.status = m.Bus.Status()
		return m, tick()

	case DoneMsg:
		m.Err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())

	busState := lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render("disconnected")
	if m.status.Connected {
		busState = lipgloss.NewStyle().Foreground(m.Theme.Success()).Render("connected")
	}
	header := headerStyle.Render("midi-bridge") + "  " +
		fgStyle.Render(fmt.Sprintf("bus: %s %s  mode: %s", busState, m.status.URL, m.snap.Mode))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(headerStyle.Render("MIDI ports connected"))
	out.WriteString("\n")
	out.WriteString(m.portsView(fgStyle, dimStyle))
	out.WriteString("\n")

	logWidth := 48
	if m.width > 0 {
		logWidth = max(24, m.width/2-2)
	}
	inbound := m.logView(fmt.Sprintf("%c last %d received", m.Theme.Symbols.Inbound, len(m.snap.Inbound)), m.snap.Inbound, logWidth, headerStyle, fgStyle, dimStyle)
	outbound := m.logView(fmt.Sprintf("%c last %d published", m.Theme.Symbols.Outbound, len(m.snap.Outbound)), m.snap.Outbound, logWidth, headerStyle, fgStyle, dimStyle)
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, inbound, "  ", outbound))

	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render("q:quit"))
	return out.String()
}

func (m Model) portsView(fg, dim lipgloss.Style) string {
	if len(m.snap.Ports) == 0 {
		return dim.Render("no ports open") + "\n"
	}
	var b strings.Builder
	for _, p := range m.snap.Ports {
		elapsed := m.now.Sub(p.LastReceivedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		color, sym := m.Theme.Activity(elapsed)
		activity := lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%c %.1fs ago", sym, elapsed.Seconds()))

		knobs := ""
		if n, ok := m.snap.Knobs[p.Index]; ok && n > 0 {
			knobs = dim.Render(fmt.Sprintf("  (%d knobs)", n))
		}
		b.WriteString(fg.Render(fmt.Sprintf("PORT #%d: %q  ", p.Index, p.Name)))
		b.WriteString(activity)
		b.WriteString(knobs)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) logView(title string, entries []string, width int, header, fg, dim lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(header.Render(title))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(dim.Render("nothing yet"))
	}
	for i, e := range entries {
		if len(e) > width {
			e = e[:width-1] + "…"
		}
		style := fg
		if i > 0 {
			style = dim
		}
		b.WriteString(style.Render(e))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}
