package crawler

import (
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/selector"
)

// RunContext carries everything a crawl needs. It replaces package-level
// state so that independent runs and tests do not interfere.
type RunContext struct {
	// OutputDir is the root under which each entry gets its own directory
	OutputDir string
	// Render forces headless rendering for every entry
	Render bool
	// SaveMetadata writes a JSON sidecar next to every newly written asset
	SaveMetadata bool
	// Strict stops the run at the first failed entry
	Strict bool

	Store     ConfigStore
	Fetcher   PageFetcher
	Extractor Extractor
	Writer    AssetWriter
	Delay     Pauser
	Logger    logger.Logger
	Observer  Observer
}

// withDefaults returns a copy with unset optional components filled in
func (rc *RunContext) withDefaults() *RunContext {
	cp := *rc
	if cp.OutputDir == "" {
		cp.OutputDir = "output"
	}
	if cp.Extractor == nil {
		cp.Extractor = selector.New()
	}
	if cp.Delay == nil {
		cp.Delay = noDelay{}
	}
	if cp.Logger == nil {
		cp.Logger = logger.GetLogger()
	}
	if cp.Observer == nil {
		cp.Observer = nopObserver{}
	}
	return &cp
}
