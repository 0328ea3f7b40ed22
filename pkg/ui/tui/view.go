package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
 ██████╗██╗  ██╗ █████╗ ██╗███╗   ██╗ ██████╗██████╗  █████╗ ██╗    ██╗██╗
██╔════╝██║  ██║██╔══██╗██║████╗  ██║██╔════╝██╔══██╗██╔══██╗██║    ██║██║
██║     ███████║███████║██║██╔██╗ ██║██║     ██████╔╝███████║██║ █╗ ██║██║
██║     ██╔══██║██╔══██║██║██║╚██╗██║██║     ██╔══██╗██╔══██║██║███╗██║██║
╚██████╗██║  ██║██║  ██║██║██║ ╚████║╚██████╗██║  ██║██║  ██║╚███╔███╔╝███████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝╚═╝  ╚═══╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚══╝╚══╝ ╚══════╝`

// snapshot is the state a single frame needs, copied under the lock
type snapshot struct {
	width, height int
	showHelp      bool
	isPaused      bool
	finished      bool
	finishErr     error
	totalSaved    int
	totalBytes    int64
	elapsed       time.Duration
	logs          []LogMessage
}

func (m *Model) snapshot() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return snapshot{
		width:      m.width,
		height:     m.height,
		showHelp:   m.showHelp,
		isPaused:   m.isPaused,
		finished:   m.finished,
		finishErr:  m.finishErr,
		totalSaved: m.totalSaved,
		totalBytes: m.totalBytes,
		elapsed:    time.Since(m.sessionStartTime),
		logs:       append([]LogMessage(nil), m.logMessages...),
	}
}

// View renders the entire TUI
func (m *Model) View() string {
	s := m.snapshot()
	if s.width == 0 || s.height == 0 {
		return "Initializing..."
	}

	entries := m.Entries()
	width := (s.width - 4) / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(s, width),
		m.renderEntriesPanel(entries, width),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderCurrentPanel(entries, width),
		m.renderLogsPanel(s, width),
	)

	sections := []string{
		logoStyle.Width(s.width).Render(logo),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}

	if s.showHelp {
		sections = append(sections, m.renderHelp(s.width))
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(s.width).Height(s.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderStatsPanel renders the run statistics
func (m *Model) renderStatsPanel(s snapshot, width int) string {
	title := titleStyle.Render(" RUN STATS ")
	pending, running, done, failed := m.Counts()

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(s.elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Entries:"), statsValueStyle.Render(
			fmt.Sprintf("%d pending • %d running • %d done • %d failed", pending, running, done, failed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Saved:"), statsValueStyle.Render(
			fmt.Sprintf("%d files (%s)", s.totalSaved, FormatBytes(s.totalBytes)))),
		m.progress.View(),
	}

	switch {
	case s.finished && s.finishErr != nil:
		stats = append(stats, errorStyle.Render("✗ FINISHED WITH ERRORS"))
	case s.finished:
		stats = append(stats, successStyle.Render("✓ FINISHED"))
	case s.isPaused:
		stats = append(stats, warningStyle.Render("⏸  PAUSED"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

// renderEntriesPanel lists every entry with its state
func (m *Model) renderEntriesPanel(entries []EntryItem, width int) string {
	title := titleStyle.Render(" ENTRIES ")

	var lines []string
	for _, item := range entries {
		var marker string
		switch item.State {
		case EntryPending:
			marker = "⏳"
		case EntryRunning:
			marker = m.spinner.View()
		case EntryDone:
			marker = "✓"
		case EntryFailed:
			marker = "✗"
		}

		line := fmt.Sprintf("%s %s", marker, item.Name)
		if item.State != EntryPending {
			line += fmt.Sprintf("  %d saved • %d existing • %d skipped", item.Saved, item.Existing, item.Skipped)
		}
		lines = append(lines, entryStyle(item.State).Render(truncate(line, width-6)))
	}
	if len(lines) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(dimWhite).Render("No entries"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

// renderCurrentPanel shows the running entry's position in its chain
func (m *Model) renderCurrentPanel(entries []EntryItem, width int) string {
	title := titleStyle.Render(" CURRENT PAGE ")

	var current *EntryItem
	for i := range entries {
		if entries[i].State == EntryRunning {
			current = &entries[i]
			break
		}
	}

	var content string
	if current == nil {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("Idle")
	} else {
		lines := []string{
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Entry:"), statsValueStyle.Render(current.Name)),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Page:"), urlStyle.Render(truncate(current.CurrentURL, width-14))),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Pages fetched:"), statsValueStyle.Render(fmt.Sprintf("%d", current.Pages))),
		}
		if current.LastFile != "" {
			lines = append(lines, fmt.Sprintf("%s %s", statsLabelStyle.Render("Last file:"),
				logMessageStyle.Render(truncate(current.LastFile, width-18))))
		}
		content = strings.Join(lines, "\n")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(s snapshot, width int) string {
	title := titleStyle.Render(" LOGS ")

	start := len(s.logs) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range s.logs[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))

		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := s.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp(width int) string {
	help := `
  Keys:
    q/Q      - Stop the crawl and quit
    p/P      - Pause/Resume between pages
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Entries:
    ⏳       - Pending
    ` + successStyle.Render("✓") + `        - Done
    ` + errorStyle.Render("✗") + `        - Failed
`

	return panelStyle.Width(width).Render(help)
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
