package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"chaincrawl/internal/downloader"
	"chaincrawl/pkg/crawler"
)

// ProgressDisplay prints a compact per-entry progress report. It implements
// crawler.Observer for runs without the TUI.
type ProgressDisplay struct {
	mu           sync.Mutex
	out          io.Writer
	totalEntries int
	started      int
	startTime    time.Time
	saved        int
	existing     int
	skipped      int
	bytes        int64
	failed       int
	isVerbose    bool
}

// NewProgressDisplay creates a display for a run over totalEntries entries.
// Verbose mode reports every page, not just entry boundaries.
func NewProgressDisplay(out io.Writer, totalEntries int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:          out,
		totalEntries: totalEntries,
		startTime:    time.Now(),
		isVerbose:    verbose,
	}
}

// EntryStarted implements crawler.Observer
func (p *ProgressDisplay) EntryStarted(entry string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started++
	fmt.Fprintf(p.out, "%s [%d/%d] %s\n", Magenta("→"), p.started, p.totalEntries, Cyan(entry))
}

// PageVisited implements crawler.Observer
func (p *ProgressDisplay) PageVisited(entry, pageURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isVerbose {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("·"), Dim(pageURL))
	}
}

// PageSaved implements crawler.Observer
func (p *ProgressDisplay) PageSaved(entry, pageURL string, res downloader.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !res.Written {
		p.existing++
		if p.isVerbose {
			fmt.Fprintf(p.out, "  %s %s %s\n", Yellow("="), filepath.Base(res.Path), Dim("(already on disk)"))
		}
		return
	}

	p.saved++
	p.bytes += res.Bytes
	if p.isVerbose {
		fmt.Fprintf(p.out, "  %s %s • %s\n", Green("✓"), filepath.Base(res.Path), p.formatBytes(res.Bytes))
	}
}

// PageSkipped implements crawler.Observer
func (p *ProgressDisplay) PageSkipped(entry, pageURL, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
	if p.isVerbose {
		fmt.Fprintf(p.out, "  %s %s %s\n", Dim("↷"), pageURL, Dim("("+reason+")"))
	}
}

// EntryFinished implements crawler.Observer
func (p *ProgressDisplay) EntryFinished(entry string, res crawler.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.failed++
		fmt.Fprintf(p.out, "%s %s: %v\n", Red("✗"), entry, err)
		return
	}

	fmt.Fprintf(p.out, "%s %s • %d saved • %d existing • %d skipped • %s\n",
		Green("✓"),
		entry,
		res.Saved,
		res.Existing,
		res.Skipped,
		p.formatDuration(res.Duration),
	)
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Fprintf(p.out, "\n%s Saved %d files (%s) from %d entries in %s\n",
		Green("✓"),
		p.saved,
		p.formatBytes(p.bytes),
		p.started,
		p.formatDuration(elapsed),
	)

	if p.existing > 0 || p.skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d already on disk, %d skipped\n", Dim("•"), p.existing, p.skipped)
	}
	if p.failed > 0 {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d entries failed", p.failed)))
	}
}

// Counts returns the totals seen so far
func (p *ProgressDisplay) Counts() (saved, existing, skipped, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, p.existing, p.skipped, p.failed
}

// formatDuration formats a duration in a human-readable way
func (p *ProgressDisplay) formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	} else {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatBytes formats bytes in a human-readable way
func (p *ProgressDisplay) formatBytes(bytes int64) string {
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
