package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModel(t *testing.T) {
	model := NewModel([]string{"comic", "strip"}, nil)

	if len(model.Entries()) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(model.Entries()))
	}

	model.StartEntry("comic")
	model.VisitPage("comic", "https://example.com/1")
	model.SavePage("comic", "00001 - One.png", 2048, true)
	model.VisitPage("comic", "https://example.com/2")
	model.SavePage("comic", "00002 - Two.png", 0, false)
	model.SkipPage("comic")

	item := model.Entries()[0]
	if item.State != EntryRunning {
		t.Errorf("Expected running state, got %d", item.State)
	}
	if item.Pages != 2 || item.Saved != 1 || item.Existing != 1 || item.Skipped != 1 {
		t.Errorf("Unexpected counters: %+v", item)
	}
	if item.CurrentURL != "https://example.com/2" {
		t.Errorf("Unexpected current URL %s", item.CurrentURL)
	}
	if model.totalSaved != 1 || model.totalBytes != 2048 {
		t.Errorf("Expected 1 saved file of 2048 bytes, got %d / %d", model.totalSaved, model.totalBytes)
	}

	model.FinishEntry("comic", nil)
	model.StartEntry("strip")
	model.FinishEntry("strip", errors.New("no image found"))

	pending, running, done, failed := model.Counts()
	if pending != 0 || running != 0 || done != 1 || failed != 1 {
		t.Errorf("Unexpected counts: pending=%d running=%d done=%d failed=%d", pending, running, done, failed)
	}
	if model.Entries()[0].CurrentURL != "" {
		t.Error("Finished entry should not keep a current URL")
	}
}

func TestModelAddsUnknownEntries(t *testing.T) {
	model := NewModel(nil, nil)
	model.StartEntry("late")

	entries := model.Entries()
	if len(entries) != 1 || entries[0].Name != "late" {
		t.Errorf("Expected entry to be added on first event, got %+v", entries)
	}
}

func TestUpdateMessages(t *testing.T) {
	model := NewModel([]string{"comic"}, nil)

	model.Update(EntryStartMsg{Entry: "comic"})
	model.Update(PageVisitMsg{Entry: "comic", URL: "https://example.com/1"})
	model.Update(PageSavedMsg{Entry: "comic", Path: "00001 - One.png", Bytes: 10, Written: true})
	model.Update(PageSkippedMsg{Entry: "comic", URL: "https://example.com/0", Reason: "in skip list"})
	_, cmd := model.Update(EntryFinishedMsg{Entry: "comic"})
	if cmd == nil {
		t.Error("Expected progress animation command after an entry finishes")
	}
	model.Update(RunDoneMsg{})

	item := model.Entries()[0]
	if item.State != EntryDone || item.Saved != 1 || item.Skipped != 1 {
		t.Errorf("Unexpected entry after messages: %+v", item)
	}
	if !model.finished {
		t.Error("Expected model to be finished")
	}
	if model.completion() != 1 {
		t.Errorf("Expected full completion, got %f", model.completion())
	}
	if len(model.logMessages) == 0 {
		t.Error("Expected log messages from entry events")
	}
}

func TestQuitCancelsCrawl(t *testing.T) {
	cancelled := false
	model := NewModel([]string{"comic"}, func() { cancelled = true })

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("Expected quit to cancel the crawl")
	}
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}

func TestPauseToggle(t *testing.T) {
	model := NewModel(nil, nil)
	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}

	model.Update(key)
	if !model.IsPaused() {
		t.Error("Expected paused after p")
	}
	model.Update(key)
	if model.IsPaused() {
		t.Error("Expected resumed after second p")
	}
}

func TestLogMessagesAreCapped(t *testing.T) {
	model := NewModel(nil, nil)
	for i := 0; i < model.maxLogMessages+10; i++ {
		model.AddLogMessage("INFO", "line")
	}
	if len(model.logMessages) != model.maxLogMessages {
		t.Errorf("Expected %d log messages, got %d", model.maxLogMessages, len(model.logMessages))
	}
}

func TestView(t *testing.T) {
	model := NewModel([]string{"comic", "strip"}, nil)
	if model.View() != "Initializing..." {
		t.Error("Expected placeholder before the first window size")
	}

	model.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	model.Update(EntryStartMsg{Entry: "comic"})
	model.Update(PageVisitMsg{Entry: "comic", URL: "https://example.com/1"})

	view := model.View()
	for _, want := range []string{"comic", "strip", "CURRENT PAGE", "https://example.com/1"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

type stubPauser struct{ calls int }

func (s *stubPauser) Pause(ctx context.Context) (time.Duration, error) {
	s.calls++
	return 0, ctx.Err()
}

func TestPauseGateWaitsWhilePaused(t *testing.T) {
	next := &stubPauser{}
	polls := 0
	gate := &pauseGate{
		next: next,
		paused: func() bool {
			polls++
			return polls < 3
		},
		poll: time.Millisecond,
	}

	if _, err := gate.Pause(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if next.calls != 1 {
		t.Errorf("Expected wrapped pauser to be called once, got %d", next.calls)
	}
	if polls != 3 {
		t.Errorf("Expected gate to poll until resumed, got %d polls", polls)
	}
}

func TestPauseGateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gate := &pauseGate{
		next:   &stubPauser{},
		paused: func() bool { return true },
		poll:   time.Hour,
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := gate.Pause(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestLogWriter(t *testing.T) {
	var got []LogMsg
	w := &LogWriter{send: func(msg tea.Msg) { got = append(got, msg.(LogMsg)) }}

	input := `{"level":"info","entry":"comic","message":"Saved page"}
{"level":"error","message":"Entry failed","error":"no image found"}
plain text
`
	n, err := w.Write([]byte(input))
	if err != nil || n != len(input) {
		t.Fatalf("Write returned %d, %v", n, err)
	}

	want := []LogMsg{
		{Level: "INFO", Message: "[comic] Saved page"},
		{Level: "ERROR", Message: "Entry failed: no image found"},
		{Level: "INFO", Message: "plain text"},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, test := range tests {
		result := FormatBytes(test.bytes)
		if result != test.expected {
			t.Errorf("FormatBytes(%d) = %s, expected %s", test.bytes, result, test.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate kept %q", got)
	}
	if got := truncate("https://example.com/very/long", 12); got != "https://e..." {
		t.Errorf("truncate = %q", got)
	}
}
