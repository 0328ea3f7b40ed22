package ui

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"chaincrawl/internal/downloader"
	"chaincrawl/pkg/crawler"
)

func TestProgressDisplay(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, 2, false)

	p.EntryStarted("comic")
	p.PageVisited("comic", "https://example.com/1")
	p.PageSaved("comic", "https://example.com/1", downloader.Result{Written: true, Bytes: 2048, Path: "/out/comic/00001 - One.png"})
	p.PageSaved("comic", "https://example.com/2", downloader.Result{Path: "/out/comic/00002 - Two.png"})
	p.PageSkipped("comic", "https://example.com/3", crawler.ReasonSaved)
	p.EntryFinished("comic", crawler.Result{Saved: 1, Existing: 1, Skipped: 1, Duration: 3 * time.Second}, nil)

	p.EntryStarted("strip")
	p.EntryFinished("strip", crawler.Result{}, errors.New("no image found"))
	p.Complete()

	out := buf.String()
	for _, want := range []string{
		"[1/2] comic",
		"✓ comic • 1 saved • 1 existing • 1 skipped • 3s",
		"[2/2] strip",
		"✗ strip: no image found",
		"Saved 1 files (2.0 KB) from 2 entries",
		"1 entries failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "https://example.com/1") {
		t.Error("non-verbose display should not list pages")
	}

	saved, existing, skipped, failed := p.Counts()
	if saved != 1 || existing != 1 || skipped != 1 || failed != 1 {
		t.Errorf("Counts() = %d, %d, %d, %d", saved, existing, skipped, failed)
	}
}

func TestProgressDisplayVerbose(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, 1, true)

	p.PageVisited("comic", "https://example.com/1")
	p.PageSaved("comic", "https://example.com/1", downloader.Result{Written: true, Bytes: 10, Path: "/out/comic/00001 - One.png"})
	p.PageSkipped("comic", "https://example.com/0", crawler.ReasonSkipList)

	out := buf.String()
	for _, want := range []string{"https://example.com/1", "00001 - One.png • 10 B", "(in skip list)"} {
		if !strings.Contains(out, want) {
			t.Errorf("verbose output missing %q", want)
		}
	}
}

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func TestNotifier(t *testing.T) {
	sender := &recordingSender{err: errors.New("no notification daemon")}
	var buf bytes.Buffer
	n := NewNotifierWithSender(sender, &buf)

	n.SendSuccess("Run complete", "3 files saved")
	n.SendError("Run failed", "1 entry failed")

	if len(sender.titles) != 2 {
		t.Errorf("Expected 2 notifications, got %d", len(sender.titles))
	}
	if !strings.Contains(buf.String(), "3 files saved") {
		t.Error("Expected message on console")
	}

	// A nil sender only prints
	NewNotifierWithSender(nil, &buf).SendNotification("title", "message")
}

func TestQuietMode(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetNoColor(true)
	SetQuietMode(true)
	defer func() {
		SetQuietMode(false)
		SetNoColor(false)
		SetOutput(os.Stdout)
	}()

	PrintInfo("Entries", "3")
	PrintSuccess("done")
	PrintError("Failed to load configuration", "missing url")

	if got := buf.String(); got != "Failed to load configuration: missing url\n" {
		t.Errorf("quiet output = %q", got)
	}
}
