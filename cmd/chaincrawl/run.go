package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chaincrawl/internal/downloader"
	"chaincrawl/pkg/auth"
	"chaincrawl/pkg/checkpoint"
	"chaincrawl/pkg/config"
	"chaincrawl/pkg/crawler"
	errs "chaincrawl/pkg/errors"
	"chaincrawl/pkg/fetch"
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/ratelimit"
	"chaincrawl/pkg/selector"
	"chaincrawl/pkg/ui"
	"chaincrawl/pkg/ui/tui"

	"github.com/spf13/cobra"
)

var (
	// Run command flags
	entriesFile string
	outputDir   string
	delayMin    float64
	delayMax    float64
	addBlank    bool
	strict      bool
	render      bool
	useTUI      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [entry...]",
	Short: "Crawl every entry, or only the named ones",
	Long: `Crawl entries from the entries file, in file order.

Each entry resumes from its last saved page. Pages already saved or listed
under skip are not downloaded again. After every saved page the entries file
is rewritten, so the run can be interrupted at any time.

A failing entry is reported and the run moves on to the next one; with
--strict the run stops at the first failure. The exit status is 1 when any
entry failed.`,
	Example: `  # Crawl everything in ./config.yaml
  chaincrawl run

  # Crawl two entries into ./comics with a 2-5 second pause between pages
  chaincrawl run xkcd smbc --output ./comics --delay-min 2 --delay-max 5

  # Append a template entry to fill in
  chaincrawl --add-blank

  # Watch progress in the terminal UI
  chaincrawl run --tui`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().StringVar(&entriesFile, "entries", "", "entries file (default: config.yaml)")

	for _, cmd := range []*cobra.Command{runCmd, rootCmd} {
		cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output root, one directory per entry (default: output)")
		cmd.Flags().Float64Var(&delayMin, "delay-min", 0, "minimum pause between pages, in seconds")
		cmd.Flags().Float64Var(&delayMax, "delay-max", 0, "maximum pause between pages, in seconds")
		cmd.Flags().BoolVar(&addBlank, "add-blank", false, "append a blank template entry and exit")
		cmd.Flags().BoolVar(&strict, "strict", false, "stop at the first failed entry")
		cmd.Flags().BoolVar(&render, "render", false, "render every page in headless Chrome")
		cmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	}
}

// collectFlags returns the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	values := map[string]interface{}{
		"entries":   entriesFile,
		"output":    outputDir,
		"delay-min": delayMin,
		"delay-max": delayMax,
		"strict":    strict,
		"render":    render,
		"log-level": logLevel,
		"log-file":  logFile,
	}

	flags := make(map[string]interface{})
	for name, value := range values {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = value
		}
	}
	return flags
}

// loadSettings loads configuration and installs the global logger
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return nil, err
	}
	return cfg, nil
}

// openStore opens the entries file, explaining what to do when a template
// had to be written in its place
func openStore(cfg *config.Config, log logger.Logger) (*checkpoint.Store, error) {
	store, err := checkpoint.Open(cfg.Crawl.EntriesFile, log)
	if err != nil {
		if errs.Is(err, errs.ErrorTypeConfigMissing) {
			ui.PrintError("Entries file not found", cfg.Crawl.EntriesFile)
			ui.PrintWarning("A template entry was written there, please configure me and run again")
		} else {
			ui.PrintError("Failed to load entries", err.Error())
		}
		return nil, err
	}
	return store, nil
}

// newRunContext assembles the crawl components from cfg. The returned
// function releases the headless browser, if one was started.
func newRunContext(cfg *config.Config, store *checkpoint.Store, log logger.Logger) (*crawler.RunContext, func()) {
	renderer := fetch.NewRenderer(fetch.RendererConfig{
		Timeout:   cfg.Render.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})

	opts := fetch.Options{
		Timeout:     cfg.HTTP.Timeout,
		UserAgent:   cfg.HTTP.UserAgent,
		MaxAttempts: cfg.HTTP.MaxAttempts,
		Renderer:    renderer,
		Logger:      log,
	}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		opts.Limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
	}

	// Cookies are optional; a broken credential backend only costs them
	if manager, err := auth.NewManager(); err != nil {
		log.WithError(err).Warn("Credential storage unavailable, requests are sent without cookies")
	} else {
		opts.Credentials = manager
	}

	client := fetch.NewClient(opts)

	rc := &crawler.RunContext{
		OutputDir:    cfg.Crawl.OutputDir,
		Render:       cfg.Render.Enabled,
		SaveMetadata: cfg.Output.SaveMetadata,
		Strict:       cfg.Crawl.Strict,
		Store:        store,
		Fetcher:      client,
		Extractor:    selector.New(),
		Writer:       downloader.NewAssetWriter(client, log),
		Delay:        ratelimit.NewRandomDelay(cfg.Crawl.DelayBounds()),
		Logger:       log,
	}
	return rc, renderer.Close
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	if addBlank {
		name, err := store.AddBlank()
		if err != nil {
			ui.PrintError("Failed to add blank entry", err.Error())
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Added blank entry %q to %s", name, store.Path()))
		return nil
	}

	names := args
	if len(names) == 0 {
		names = store.Names()
	}
	if len(names) == 0 {
		ui.PrintWarning("No entries configured", store.Path())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(map[string]interface{}{
		"version": version,
		"entries": len(names),
		"output":  cfg.Crawl.OutputDir,
	}).Info("chaincrawl starting")

	var summary crawler.Summary
	if useTUI {
		summary, err = runWithTUI(ctx, cfg, store, names)
	} else {
		summary, err = runPlain(ctx, cfg, store, names, log)
	}

	notify(summary, err)
	return err
}

// runPlain crawls with line-oriented progress on stdout
func runPlain(ctx context.Context, cfg *config.Config, store *checkpoint.Store, names []string, log logger.Logger) (crawler.Summary, error) {
	rc, release := newRunContext(cfg, store, log)
	defer release()

	ui.PrintInfo("Entries file", store.Path())
	ui.PrintInfo("Output", cfg.Crawl.OutputDir)

	display := ui.NewProgressDisplay(os.Stdout, len(names), verbose)
	if !quiet {
		rc.Observer = display
	}

	summary, err := crawler.NewScheduler(rc).Run(ctx, names...)
	if !quiet && len(summary.Entries) > 0 {
		display.Complete()
	}

	switch {
	case err == nil:
		log.Info("Run completed successfully")
	case ctx.Err() != nil:
		ui.PrintWarning("Interrupted, progress up to the last saved page is kept")
	case len(summary.Entries) == 0:
		// Nothing ran: unknown entry or invalid configuration
		ui.PrintError("Cannot start run", err.Error())
	default:
		ui.PrintError("Run finished with failures", fmt.Sprintf("%d of %d entries", summary.Failed(), len(summary.Entries)))
	}
	return summary, err
}

// runWithTUI crawls in the background while the terminal UI owns the screen
func runWithTUI(ctx context.Context, cfg *config.Config, store *checkpoint.Store, names []string) (crawler.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(names, cancel)

	// Log lines go to the TUI instead of the console
	log, err := logger.NewWithSink(&cfg.Logging, terminal.LogWriter())
	if err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return crawler.Summary{}, err
	}
	logger.SetLogger(log)

	rc, release := newRunContext(cfg, store, log)
	defer release()
	rc.Observer = terminal
	rc.Delay = terminal.Gate(rc.Delay)

	type outcome struct {
		summary crawler.Summary
		err     error
	}
	crawlDone := make(chan outcome, 1)
	go func() {
		summary, err := crawler.NewScheduler(rc).Run(ctx, names...)
		terminal.Done(err)
		crawlDone <- outcome{summary, err}
	}()

	// TUI runs in the main goroutine until the user quits
	if err := terminal.Start(); err != nil {
		cancel()
		<-crawlDone
		ui.PrintError("Terminal UI failed", err.Error())
		return crawler.Summary{}, err
	}

	// Quitting early cancels the crawl; wait for the in-flight page to settle
	cancel()
	res := <-crawlDone

	if res.err != nil {
		ui.PrintError("Run finished with failures", res.err.Error())
	} else {
		ui.PrintSuccess(fmt.Sprintf("Saved %d files from %d entries", res.summary.Saved(), len(res.summary.Entries)))
	}
	return res.summary, res.err
}

// notify sends the end-of-run desktop notification when enabled
func notify(summary crawler.Summary, err error) {
	if !notifications {
		return
	}

	n := ui.NewNotifier()
	if err != nil {
		n.SendError("chaincrawl run failed", fmt.Sprintf("%d of %d entries failed", summary.Failed(), len(summary.Entries)))
		return
	}
	n.SendSuccess("chaincrawl run complete", fmt.Sprintf("%d files saved from %d entries", summary.Saved(), len(summary.Entries)))
}

// Make run the default command when no subcommand is specified
func init() {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && isKnownCommand(args[0]) {
			return cmd.Help()
		}
		return runCrawl(cmd, args)
	}

	// Set Args to allow arbitrary arguments
	rootCmd.Args = cobra.ArbitraryArgs
}

func isKnownCommand(arg string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == arg || cmd.HasAlias(arg) {
			return true
		}
	}
	return false
}
