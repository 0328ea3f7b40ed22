package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// EntryState represents where an entry is in the run
type EntryState int

const (
	EntryPending EntryState = iota
	EntryRunning
	EntryDone
	EntryFailed
)

// EntryItem is the view's record of one entry
type EntryItem struct {
	Name       string
	State      EntryState
	CurrentURL string
	Pages      int
	Saved      int
	Existing   int
	Skipped    int
	Bytes      int64
	LastFile   string
	Err        error
	StartTime  time.Time
	Duration   time.Duration
}

// Model represents the TUI model
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	entries map[string]*EntryItem
	order   []string

	totalSaved       int
	totalBytes       int64
	sessionStartTime time.Time
	finished         bool
	finishErr        error

	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	// cancel stops the crawl when the user quits
	cancel func()

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model listing names as pending entries
func NewModel(names []string, cancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	m := &Model{
		spinner:          s,
		progress:         p,
		entries:          make(map[string]*EntryItem, len(names)),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
		cancel:           cancel,
	}
	for _, name := range names {
		m.entries[name] = &EntryItem{Name: name}
		m.order = append(m.order, name)
	}
	return m
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// entry returns the item for name, adding it when the run reports an entry
// the model was not created with
func (m *Model) entry(name string) *EntryItem {
	item, ok := m.entries[name]
	if !ok {
		item = &EntryItem{Name: name}
		m.entries[name] = item
		m.order = append(m.order, name)
	}
	return item
}

// StartEntry marks an entry as running
func (m *Model) StartEntry(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.entry(name)
	item.State = EntryRunning
	item.StartTime = time.Now()
}

// VisitPage records the page an entry is currently on
func (m *Model) VisitPage(name, pageURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.entry(name)
	item.CurrentURL = pageURL
	item.Pages++
}

// SavePage records a checkpointed page. written is false when the asset was
// already on disk.
func (m *Model) SavePage(name, path string, bytes int64, written bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.entry(name)
	item.LastFile = path
	if written {
		item.Saved++
		item.Bytes += bytes
		m.totalSaved++
		m.totalBytes += bytes
	} else {
		item.Existing++
	}
}

// SkipPage records a page passed over by the skip policy
func (m *Model) SkipPage(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entry(name).Skipped++
}

// FinishEntry marks an entry as done or failed
func (m *Model) FinishEntry(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.entry(name)
	item.CurrentURL = ""
	item.Err = err
	if !item.StartTime.IsZero() {
		item.Duration = time.Since(item.StartTime)
	}
	if err != nil {
		item.State = EntryFailed
	} else {
		item.State = EntryDone
	}
}

// Finish marks the whole run as over
func (m *Model) Finish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finished = true
	m.finishErr = err
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR", "FATAL":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Entries returns copies of all entries in run order
func (m *Model) Entries() []EntryItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]EntryItem, 0, len(m.order))
	for _, name := range m.order {
		items = append(items, *m.entries[name])
	}
	return items
}

// Counts returns how many entries are in each state
func (m *Model) Counts() (pending, running, done, failed int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, item := range m.entries {
		switch item.State {
		case EntryPending:
			pending++
		case EntryRunning:
			running++
		case EntryDone:
			done++
		case EntryFailed:
			failed++
		}
	}
	return
}

// IsPaused reports whether the user paused the crawl
func (m *Model) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
