package storage

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var counterPrefix = regexp.MustCompile(`^\d+`)

// titleReplacer keeps a title from escaping the entry directory
var titleReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")

// Manager handles file operations inside a single entry directory
type Manager struct {
	dir string
}

// NewManager returns a Manager for dir, creating it if absent
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the entry directory path
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the full path of name inside the entry directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// NextCounter returns one more than the largest numeric filename prefix in
// the directory, or 1 when no file carries one.
func (m *Manager) NextCounter() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	highest := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		prefix := counterPrefix.FindString(entry.Name())
		if prefix == "" {
			continue
		}
		n, err := strconv.Atoi(prefix)
		if err != nil {
			// Prefix too long for an int, cannot be one of ours
			continue
		}
		highest = max(highest, n)
	}
	return highest + 1, nil
}

// Exists reports whether name is already present in the directory
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.Path(name))
	return err == nil
}

// Stat returns file info for name
func (m *Manager) Stat(name string) (os.FileInfo, error) {
	return os.Stat(m.Path(name))
}

// Write creates name atomically from whatever fill writes. The file only
// appears under its final name once fill succeeded and the data is synced.
func (m *Manager) Write(name string, fill func(w io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(m.dir, ".partial-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := fill(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tmpName, m.Path(name)); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return n, nil
}

// FileName builds "{counter:05d} - {title}{ext}" where ext is taken from the
// last dot of the asset URL's path.
func FileName(counter int, title, assetURL string) string {
	return fmt.Sprintf("%05d - %s%s", counter, SanitizeTitle(title), Ext(assetURL))
}

// SidecarName is FileName with the asset extension replaced by ext
func SidecarName(counter int, title, ext string) string {
	return fmt.Sprintf("%05d - %s%s", counter, SanitizeTitle(title), ext)
}

// SanitizeTitle replaces path separators so the title stays one path element
func SanitizeTitle(title string) string {
	return titleReplacer.Replace(title)
}

// Ext returns the extension of the asset URL's path including the dot, or ""
func Ext(assetURL string) string {
	p := assetURL
	if u, err := url.Parse(assetURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	i := strings.LastIndex(base, ".")
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return base[i:]
}
