// Package metadata writes the JSON sidecar stored next to each saved asset.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chaincrawl/pkg/storage"
)

// Ext is the sidecar file extension
const Ext = ".json"

// PageMetadata describes one saved page
type PageMetadata struct {
	Entry    string `json:"entry"`
	Counter  int    `json:"counter"`
	PageURL  string `json:"page_url"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Text     string `json:"text,omitempty"`

	// File properties
	FileName string    `json:"file_name"`
	FileSize int64     `json:"file_size"`
	SavedAt  time.Time `json:"saved_at"`
}

// Path returns the sidecar location for m inside dir
func (m *PageMetadata) Path(dir string) string {
	return filepath.Join(dir, storage.SidecarName(m.Counter, m.Title, Ext))
}

// Save writes the metadata next to the asset in dir and returns the path
func (m *PageMetadata) Save(dir string) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	path := m.Path(dir)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata file: %w", err)
	}
	return path, nil
}

// Load reads a sidecar file
func Load(path string) (*PageMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta PageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// Summary returns the page text collapsed to one line and truncated to maxLength
func (m *PageMetadata) Summary(maxLength int) string {
	if m.Text == "" {
		return ""
	}

	text := strings.Join(strings.Fields(m.Text), " ")
	if maxLength > 3 && len([]rune(text)) > maxLength {
		text = string([]rune(text)[:maxLength-3]) + "..."
	}
	return text
}
