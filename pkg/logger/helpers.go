package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs the outcome of an HTTP request
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogSaved logs a page whose asset was handled
func LogSaved(l Logger, entry, pageURL, path string, written bool, bytes int64) {
	fields := map[string]interface{}{
		"entry": entry,
		"page":  pageURL,
		"file":  path,
	}
	if written {
		fields["bytes"] = bytes
		l.InfoWithFields("Asset saved", fields)
		return
	}
	l.InfoWithFields("Asset already on disk", fields)
}

// LogSkipped logs a page that was passed over without saving
func LogSkipped(l Logger, entry, pageURL, reason string) {
	l.InfoWithFields("Skipping page", map[string]interface{}{
		"entry":  entry,
		"page":   pageURL,
		"reason": reason,
	})
}

// LogEntryResult logs how an entry's traversal ended
func LogEntryResult(l Logger, entry string, saved, skipped int, err error) {
	fields := map[string]interface{}{
		"entry":   entry,
		"saved":   saved,
		"skipped": skipped,
	}
	if err != nil {
		l.WithError(err).ErrorWithFields("Entry failed", fields)
		return
	}
	l.InfoWithFields("Entry complete", fields)
}

// LogDelay logs the politeness pause between requests
func LogDelay(l Logger, d time.Duration) {
	if d <= 0 {
		return
	}
	l.DebugWithFields("Waiting before next request", map[string]interface{}{
		"delay": d,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Debug("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Debug("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
