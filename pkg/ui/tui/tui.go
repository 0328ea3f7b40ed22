package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chaincrawl/internal/downloader"
	"chaincrawl/pkg/crawler"
)

// TUI represents the terminal user interface. It implements crawler.Observer
// so a running Scheduler can drive it.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a TUI listing names. cancel is called when the user quits.
func NewTUI(names []string, cancel func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(names, cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the TUI until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// EntryStarted implements crawler.Observer
func (t *TUI) EntryStarted(entry string) {
	t.Send(EntryStartMsg{Entry: entry})
}

// PageVisited implements crawler.Observer
func (t *TUI) PageVisited(entry, pageURL string) {
	t.Send(PageVisitMsg{Entry: entry, URL: pageURL})
}

// PageSaved implements crawler.Observer
func (t *TUI) PageSaved(entry, pageURL string, res downloader.Result) {
	t.Send(PageSavedMsg{
		Entry:   entry,
		URL:     pageURL,
		Path:    filepath.Base(res.Path),
		Bytes:   res.Bytes,
		Written: res.Written,
	})
}

// PageSkipped implements crawler.Observer
func (t *TUI) PageSkipped(entry, pageURL, reason string) {
	t.Send(PageSkippedMsg{Entry: entry, URL: pageURL, Reason: reason})
}

// EntryFinished implements crawler.Observer
func (t *TUI) EntryFinished(entry string, _ crawler.Result, err error) {
	t.Send(EntryFinishedMsg{Entry: entry, Err: err})
}

// Done reports the end of the run
func (t *TUI) Done(err error) {
	t.Send(RunDoneMsg{Err: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// IsPaused returns whether the user paused the crawl
func (t *TUI) IsPaused() bool {
	return t.model.IsPaused()
}

// LogWriter returns a writer for JSON log lines that shows them in the
// logs panel
func (t *TUI) LogWriter() *LogWriter {
	return &LogWriter{send: t.Send}
}

// Gate wraps next so that the crawl holds between pages while paused
func (t *TUI) Gate(next crawler.Pauser) crawler.Pauser {
	return &pauseGate{next: next, paused: t.IsPaused, poll: 200 * time.Millisecond}
}

type pauseGate struct {
	next   crawler.Pauser
	paused func() bool
	poll   time.Duration
}

func (g *pauseGate) Pause(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if g.next != nil {
		if _, err := g.next.Pause(ctx); err != nil {
			return time.Since(start), err
		}
	}

	for g.paused() {
		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-time.After(g.poll):
		}
	}
	return time.Since(start), nil
}

// LogWriter turns zerolog JSON lines into LogMsg values
type LogWriter struct {
	send func(tea.Msg)
}

// Write implements io.Writer. Lines that are not JSON are shown verbatim.
func (w *LogWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimSpace(p), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.send(parseLogLine(line))
	}
	return len(p), nil
}

func parseLogLine(line []byte) LogMsg {
	var event map[string]interface{}
	if err := json.Unmarshal(line, &event); err != nil {
		return LogMsg{Level: "INFO", Message: string(line)}
	}

	level, _ := event["level"].(string)
	message, _ := event["message"].(string)
	if entry, ok := event["entry"].(string); ok && entry != "" {
		message = "[" + entry + "] " + message
	}
	if errText, ok := event["error"].(string); ok && errText != "" {
		message += ": " + errText
	}
	return LogMsg{Level: strings.ToUpper(level), Message: message}
}
