package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// SessionKind selects what the session view shows
type SessionKind int

const (
	SessionPlayback SessionKind = iota
	SessionRecording
)

// ProgressMsg carries a playback progress update
type ProgressMsg struct {
	Name    string
	Percent float64
}

// DoneMsg ends the session, Err is shown when set
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

// SessionModel is the Bubbletea model for one playback or recording. For
// recordings it counts elapsed time and stops itself after Limit.
type SessionModel struct {
	Kind    SessionKind
	Name    string
	Limit   time.Duration // Recording only, 0 records until a key is pressed
	Percent float64
	Started time.Time
	Elapsed time.Duration
	Done    bool
	Err     error

	// Stop is called once when the user ends the session early or the
	// recording limit is reached
	Stop func()

	stopped bool
}

// NewSessionModel creates a session view
func NewSessionModel(kind SessionKind, name string, stop func()) SessionModel {
	return SessionModel{Kind: kind, Name: name, Stop: stop, Started: time.Now()}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the elapsed-time ticker for recordings
func (m SessionModel) Init() tea.Cmd {
	if m.Kind == SessionRecording {
		return tick()
	}
	return nil
}

func (m SessionModel) stop() SessionModel {
	if !m.stopped && m.Stop != nil {
		m.Stop()
	}
	m.stopped = true
	return m
}

// Update handles messages and updates the model
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc", "enter", " ":
			m = m.stop()
			if m.Kind == SessionPlayback {
				m.Done = true
				return m, tea.Quit
			}
			// Recordings finish once the capture has been analysed
			return m, nil
		}

	case ProgressMsg:
		if msg.Name == m.Name {
			m.Percent = msg.Percent
		}

	case tickMsg:
		m.Elapsed = time.Time(msg).Sub(m.Started)
		if m.Limit > 0 && m.Elapsed >= m.Limit {
			m = m.stop()
		}
		if !m.Done && !m.stopped {
			return m, tick()
		}

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

// View renders the UI
func (m SessionModel) View() string {
	var b strings.Builder
	switch m.Kind {
	case SessionPlayback:
		b.WriteString(TitleStyle.Render("Playing " + m.Name))
		b.WriteString("\n")
		b.WriteString(ContourStyle.Render(ProgressBar(m.Percent, 40)))
	case SessionRecording:
		b.WriteString(TitleStyle.Render("Recording " + m.Name))
		b.WriteString("\n")
		status := fmt.Sprintf("● %.1f s", m.Elapsed.Seconds())
		if m.Limit > 0 {
			status += fmt.Sprintf(" / %.1f s", m.Limit.Seconds())
		}
		if m.stopped {
			status = "Analysing..."
		}
		b.WriteString(ErrorStyle.Render(status))
	}
	b.WriteString("\n")
	if m.Err != nil {
		b.WriteString(ErrorStyle.Render("Error: ") + m.Err.Error() + "\n")
	} else if !m.Done {
		b.WriteString(SubtitleStyle.Render("press q or enter to stop"))
		b.WriteString("\n")
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
