// Package storage manages the per-entry output directories.
//
// Each entry owns a directory under the output root. Assets inside it are
// named "{counter:05d} - {title}{ext}", and the numeric prefix is how a
// later run recovers where numbering left off.
//
// Usage:
//
//	dir, err := storage.NewManager(filepath.Join("output", "MyComic"))
//	if err != nil {
//	    return err
//	}
//
//	counter, err := dir.NextCounter()
//	name := storage.FileName(counter, title, imageURL)
//	if !dir.Exists(name) {
//	    n, err := dir.Write(name, func(w io.Writer) (int64, error) {
//	        return client.Download(ctx, imageURL, w)
//	    })
//	}
//
// Writes go to a temporary file in the same directory which is synced and
// renamed into place, so a crash never leaves a truncated asset under its
// final name.
package storage
