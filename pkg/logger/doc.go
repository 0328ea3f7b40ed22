// Package logger provides structured logging for chaincrawl.
//
// It wraps zerolog behind a small Logger interface so that components can
// take a logger as a dependency and tests can substitute a TestLogger or a
// no-op logger.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("entry", "comic")
//	log.InfoWithFields("Asset saved", map[string]interface{}{
//	    "file":  "00003 - Title.png",
//	    "bytes": 48213,
//	})
//
// Console output goes to stderr. When a log file is configured, events are
// written to both the console and the file.
package logger
