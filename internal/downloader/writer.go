// Package downloader saves page assets into entry directories.
package downloader

import (
	"context"
	"io"
	"time"

	errs "chaincrawl/pkg/errors"
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/metadata"
	"chaincrawl/pkg/storage"
)

// Downloader streams a remote asset into w
type Downloader interface {
	Download(ctx context.Context, assetURL string, w io.Writer) (int64, error)
}

// Result describes the outcome of a Save
type Result struct {
	// Written is false when the file was already present and nothing was downloaded
	Written  bool
	Bytes    int64
	Path     string
	Duration time.Duration
}

// AssetWriter downloads assets to their numbered file names
type AssetWriter struct {
	client Downloader
	logger logger.Logger
}

// NewAssetWriter creates an AssetWriter backed by client
func NewAssetWriter(client Downloader, log logger.Logger) *AssetWriter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &AssetWriter{
		client: client,
		logger: log.WithField("component", "asset_writer"),
	}
}

// NextCounter recovers the numbering for dir, creating it if absent
func (w *AssetWriter) NextCounter(dir string) (int, error) {
	manager, err := storage.NewManager(dir)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWrite, err, "cannot prepare output directory")
	}
	counter, err := manager.NextCounter()
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeWrite, err, "cannot scan output directory")
	}
	return counter, nil
}

// Save downloads imageURL to "{counter:05d} - {title}{ext}" inside dir. An
// existing file at that path is left alone and reported with Written=false.
// Failures are returned as Write errors and are not retried.
func (w *AssetWriter) Save(ctx context.Context, dir string, counter int, title, imageURL string) (Result, error) {
	start := time.Now()

	manager, err := storage.NewManager(dir)
	if err != nil {
		return Result{}, errs.Wrap(errs.ErrorTypeWrite, err, "cannot prepare output directory")
	}

	name := storage.FileName(counter, title, imageURL)
	result := Result{Path: manager.Path(name)}

	if manager.Exists(name) {
		w.logger.DebugWithFields("Asset already present", map[string]interface{}{
			"path": result.Path,
		})
		result.Duration = time.Since(start)
		return result, nil
	}

	n, err := manager.Write(name, func(out io.Writer) (int64, error) {
		return w.client.Download(ctx, imageURL, out)
	})
	result.Bytes = n
	result.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		w.logger.WithError(err).ErrorWithFields("Failed to save asset", map[string]interface{}{
			"path":  result.Path,
			"image": imageURL,
		})
		return result, errs.Wrap(errs.ErrorTypeWrite, err, "failed to save asset").WithURL(imageURL)
	}

	result.Written = true
	w.logger.DebugWithFields("Asset written", map[string]interface{}{
		"path":     result.Path,
		"bytes":    n,
		"duration": result.Duration,
	})
	return result, nil
}

// Adopt reports the file in dir named by an unfinished checkpoint. A run
// uses this to pick up an asset that was written before the process stopped,
// instead of downloading it again under a new number.
func (w *AssetWriter) Adopt(dir, file string) (Result, bool) {
	manager, err := storage.NewManager(dir)
	if err != nil {
		return Result{}, false
	}

	info, err := manager.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return Result{}, false
	}

	w.logger.InfoWithFields("Found asset without checkpoint", map[string]interface{}{
		"path":  manager.Path(file),
		"bytes": info.Size(),
	})
	return Result{Path: manager.Path(file), Bytes: info.Size()}, true
}

// FileName returns the name Save uses for counter, title and imageURL
func (w *AssetWriter) FileName(counter int, title, imageURL string) string {
	return storage.FileName(counter, title, imageURL)
}

// SaveMetadata writes the JSON sidecar for a saved page into dir
func (w *AssetWriter) SaveMetadata(dir string, meta *metadata.PageMetadata) (string, error) {
	path, err := meta.Save(dir)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeWrite, err, "failed to save metadata")
	}
	return path, nil
}
