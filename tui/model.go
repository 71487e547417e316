package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-midihub/config"
	"go-midihub/debug"
	"go-midihub/midi"
	"go-midihub/sequencer"
	"go-midihub/theme"
	"go-midihub/widgets"
)

const (
	refreshRate = 50 * time.Millisecond
	rollWindow  = 8 * time.Second
	rollWidth   = 64

	// lead-in before a replayed capture starts
	replayDelay = 200 * time.Millisecond
)

var keyHelp = []widgets.KeySection{
	{Title: "Hub", Keys: []widgets.KeyBinding{
		{Key: "t", Desc: "toggle passthrough"},
		{Key: "m", Desc: "toggle metronome"},
		{Key: "+/-", Desc: "tempo"},
	}},
	{Title: "Capture", Keys: []widgets.KeyBinding{
		{Key: "r", Desc: "start/stop recording"},
		{Key: "space", Desc: "play last recording"},
		{Key: "s", Desc: "stop playback"},
	}},
	{Keys: []widgets.KeyBinding{{Key: "q", Desc: "quit"}}},
}

type Model struct {
	Hub     *sequencer.Hub
	Watcher *midi.PortWatcher // may be nil
	Config  *config.Config
	Theme   *theme.Theme

	qpm      float64
	spinner  spinner.Model
	captor   *sequencer.Captor
	last     *sequencer.NoteSequence
	live     *sequencer.NoteSequence
	player   *sequencer.Player
	status   string
	quitting bool
}

type TickMsg time.Time

type PortEventMsg midi.PortEvent

func NewModel(hub *sequencer.Hub, watcher *midi.PortWatcher, cfg *config.Config, th *theme.Theme) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(th.Warning())
	return Model{
		Hub:     hub,
		Watcher: watcher,
		Config:  cfg,
		Theme:   th,
		qpm:     cfg.QPM,
		spinner: s,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func ListenForPorts(w *midi.PortWatcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick, ListenForPorts(m.Watcher))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.captor != nil {
			seq, err := m.captor.CapturedSequence(time.Now())
			if err == nil {
				m.live = seq
			}
		}
		return m, tick()

	case PortEventMsg:
		dir := "output"
		if msg.Input {
			dir = "input"
		}
		switch msg.Type {
		case midi.PortConnected:
			m.status = fmt.Sprintf("%s %q connected", dir, msg.Name)
		case midi.PortDisconnected:
			m.status = fmt.Sprintf("%s %q disconnected", dir, msg.Name)
		}
		debug.Log("tui", "%s", m.status)
		return m, ListenForPorts(m.Watcher)
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		if m.captor != nil {
			m.captor.Stop(time.Time{})
		}
		return m, tea.Quit

	case "t":
		m.Hub.SetPassthrough(!m.Hub.Passthrough())

	case "m":
		if m.Hub.MetronomeRunning() {
			m.Hub.StopMetronome()
		} else {
			m.Hub.StartMetronome(time.Now(), m.qpm)
		}

	case "+", "=":
		m = m.setTempo(m.qpm + 5)

	case "-", "_":
		m = m.setTempo(m.qpm - 5)

	case "r":
		if m.captor == nil {
			m.captor = m.Hub.StartCapture(m.qpm, time.Now())
			m.live = nil
			m.status = "recording"
			break
		}
		if err := m.captor.Stop(time.Time{}); err != nil {
			m.status = err.Error()
		}
		seq, err := m.captor.CapturedSequence(time.Time{})
		m.captor = nil
		if err != nil {
			m.status = err.Error()
			break
		}
		m.last, m.live = seq, seq
		m.status = fmt.Sprintf("captured %d notes", len(seq.Notes))

	case " ":
		m = m.replay()

	case "s":
		if m.player != nil {
			m.player.Stop()
			m.player = nil
			m.status = "playback stopped"
		}
	}
	return m, nil
}

// setTempo changes the tempo, restarting a running metronome on the new grid
func (m Model) setTempo(qpm float64) Model {
	m.qpm = max(20, min(300, qpm))
	if m.Hub.MetronomeRunning() {
		m.Hub.StartMetronome(time.Now(), m.qpm)
	}
	return m
}

// replay plays the last capture again, shifted to start shortly from now
func (m Model) replay() Model {
	if m.last == nil || len(m.last.Notes) == 0 {
		m.status = "nothing recorded"
		return m
	}
	first := m.last.Notes[0].StartTime
	seq := m.last.Shift(time.Since(first) + replayDelay)

	if m.player != nil {
		m.player.Stop()
	}
	p, err := m.Hub.StartPlayback(seq, false)
	if err != nil {
		m.status = err.Error()
		return m
	}
	m.player = p
	m.live = seq
	m.status = fmt.Sprintf("playing %d notes", len(seq.Notes))
	return m
}

func (m Model) playing() bool {
	if m.player == nil {
		return false
	}
	select {
	case <-m.player.Done():
		return false
	default:
		return true
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	statusStyle := lipgloss.NewStyle().
		Foreground(m.Theme.FG()).
		Background(m.Theme.Surface()).
		Padding(0, 1)

	ports := ""
	if m.Config != nil {
		ports = fmt.Sprintf("  %s → %s", m.Config.Ports.Input, m.Config.Ports.Output)
	}
	header := headerStyle.Render(fmt.Sprintf("go-midihub  %s  %3.0fqpm%s", m.Hub.Texture(), m.qpm, ports))

	indicators := strings.Join([]string{
		widgets.RenderIndicator(m.Theme, m.Hub.Passthrough(), "thru"),
		widgets.RenderIndicator(m.Theme, m.Hub.MetronomeRunning(), "click"),
		widgets.RenderIndicator(m.Theme, m.captor != nil, "rec"),
		widgets.RenderIndicator(m.Theme, m.playing(), "play"),
	}, "   ")

	roll := widgets.Roll{Theme: m.Theme, Width: rollWidth, Window: rollWindow}.Render(m.live, time.Now())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(indicators)
	out.WriteString("\n\n")
	out.WriteString(roll)
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keyHelp)))

	if m.status != "" {
		out.WriteString("\n\n")
		if m.captor != nil {
			out.WriteString(m.spinner.View() + " ")
		}
		out.WriteString(statusStyle.Render(m.status))
	}

	return out.String()
}
