package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// EntryStartMsg is sent when the scheduler starts an entry
type EntryStartMsg struct {
	Entry string
}

// PageVisitMsg is sent before a page is fetched
type PageVisitMsg struct {
	Entry string
	URL   string
}

// PageSavedMsg is sent after a page has been checkpointed
type PageSavedMsg struct {
	Entry   string
	URL     string
	Path    string
	Bytes   int64
	Written bool
}

// PageSkippedMsg is sent when the skip policy passes over a page
type PageSkippedMsg struct {
	Entry  string
	URL    string
	Reason string
}

// EntryFinishedMsg is sent when an entry's traversal ends
type EntryFinishedMsg struct {
	Entry string
	Err   error
}

// RunDoneMsg is sent once the scheduler returns
type RunDoneMsg struct {
	Err error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.progress.Update(msg)
		if p, ok := updated.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case TickMsg:
		// Redraw elapsed times
		return m, tickCmd()

	case EntryStartMsg:
		m.StartEntry(msg.Entry)
		m.AddLogMessage("INFO", "Started "+msg.Entry)
		return m, nil

	case PageVisitMsg:
		m.VisitPage(msg.Entry, msg.URL)
		return m, nil

	case PageSavedMsg:
		m.SavePage(msg.Entry, msg.Path, msg.Bytes, msg.Written)
		if msg.Written {
			m.AddLogMessage("SUCCESS", "Saved "+msg.Path)
		}
		return m, nil

	case PageSkippedMsg:
		m.SkipPage(msg.Entry)
		return m, nil

	case EntryFinishedMsg:
		m.FinishEntry(msg.Entry, msg.Err)
		if msg.Err != nil {
			m.AddLogMessage("ERROR", msg.Entry+": "+msg.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Finished "+msg.Entry)
		}
		return m, m.progress.SetPercent(m.completion())

	case RunDoneMsg:
		m.Finish(msg.Err)
		m.AddLogMessage("INFO", "Run complete, press q to exit")
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// completion is the share of entries that have finished
func (m *Model) completion() float64 {
	pending, running, done, failed := m.Counts()
	total := pending + running + done + failed
	if total == 0 {
		return 0
	}
	return float64(done+failed) / float64(total)
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case "p", "P":
		m.mu.Lock()
		m.isPaused = !m.isPaused
		paused := m.isPaused
		m.mu.Unlock()
		if paused {
			m.AddLogMessage("WARN", "Crawl paused by user")
		} else {
			m.AddLogMessage("INFO", "Crawl resumed by user")
		}
		return m, nil

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
