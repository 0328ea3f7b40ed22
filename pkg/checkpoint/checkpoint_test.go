package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	errs "chaincrawl/pkg/errors"
)

const sampleStore = `# comics I follow
Zeta:
  url: https://zeta.example.com/1
  next_page: //a[@rel="next"]/@href
  title: //h1/text()
  image: //img[@id="comic"]/@src
  text: null
  saved_urls:
    - https://zeta.example.com/1
  skip: []
Alpha:
  url: https://alpha.example.com/start
  image: css:#comic img@src
  render: true
  custom_note: keep me
`

func writeStore(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write store: %v", err)
	}
	return path
}

func TestOpenMissingWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	store, err := Open(path, nil)
	if store != nil {
		t.Error("Expected no store when the file is missing")
	}
	if !errs.Is(err, errs.ErrorTypeConfigMissing) {
		t.Fatalf("Expected ConfigMissing, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Template was not written: %v", err)
	}
	content := string(data)
	for _, want := range []string{"ExampleEntry:", "url: null", "image: null", "saved_urls: []", "skip: []"} {
		if !strings.Contains(content, want) {
			t.Errorf("Template missing %q:\n%s", want, content)
		}
	}

	// The template is loadable but does not validate
	store, err = Open(path, nil)
	if err != nil {
		t.Fatalf("Failed to reopen template: %v", err)
	}
	if err := store.Validate(); err == nil {
		t.Error("Template entry should fail validation")
	}
}

func TestNamesKeepDocumentOrder(t *testing.T) {
	store, err := Open(writeStore(t, sampleStore), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	names := store.Names()
	if len(names) != 2 || names[0] != "Zeta" || names[1] != "Alpha" {
		t.Errorf("Expected [Zeta Alpha], got %v", names)
	}
}

func TestGet(t *testing.T) {
	store, err := Open(writeStore(t, sampleStore), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	zeta, err := store.Get("Zeta")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if zeta.Name != "Zeta" || zeta.Image != `//img[@id="comic"]/@src` {
		t.Errorf("Unexpected entry: %+v", zeta)
	}
	if zeta.ResumeURL() != "https://zeta.example.com/1" {
		t.Errorf("Expected resume from last saved URL, got %s", zeta.ResumeURL())
	}
	if zeta.Text != "" {
		t.Errorf("Expected null text to decode empty, got %q", zeta.Text)
	}

	alpha, err := store.Get("Alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !alpha.Render {
		t.Error("Expected render flag to be set")
	}
	if alpha.ResumeURL() != "https://alpha.example.com/start" {
		t.Errorf("Expected resume from start URL, got %s", alpha.ResumeURL())
	}

	// Returned entries are copies
	zeta.SavedURLs[0] = "mutated"
	again, _ := store.Get("Zeta")
	if again.SavedURLs[0] != "https://zeta.example.com/1" {
		t.Error("Mutating a returned entry changed the store")
	}
}

func TestGetUnknownEntry(t *testing.T) {
	store, err := Open(writeStore(t, sampleStore), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	_, err = store.Get("Missing")
	if !errs.Is(err, errs.ErrorTypeEntryNotFound) {
		t.Fatalf("Expected EntryNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "Alpha, Zeta") {
		t.Errorf("Expected available entries in message, got %v", err)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	path := writeStore(t, `
NoImage:
  url: https://a.example.com
NoURL:
  image: //img/@src
Fine:
  url: https://b.example.com
  image: //img/@src
`)
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	err = store.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "NoImage: invalid_entry: image selector is required") {
		t.Errorf("Missing image problem: %s", msg)
	}
	if !strings.Contains(msg, "NoURL: invalid_entry: url is required") {
		t.Errorf("Missing url problem: %s", msg)
	}
	if strings.Contains(msg, "Fine") {
		t.Errorf("Valid entry reported: %s", msg)
	}

	if err := store.Validate("Fine"); err != nil {
		t.Errorf("Validating a single valid entry failed: %v", err)
	}
}

func TestRecordSavedFlushesImmediately(t *testing.T) {
	path := writeStore(t, sampleStore)
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := store.RecordSaved("Alpha", "https://alpha.example.com/start"); err != nil {
		t.Fatalf("RecordSaved failed: %v", err)
	}
	if err := store.RecordSaved("Zeta", "https://zeta.example.com/2"); err != nil {
		t.Fatalf("RecordSaved failed: %v", err)
	}

	// A fresh process sees both checkpoints
	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	alpha, _ := reopened.Get("Alpha")
	if len(alpha.SavedURLs) != 1 || alpha.SavedURLs[0] != "https://alpha.example.com/start" {
		t.Errorf("Unexpected Alpha saved URLs: %v", alpha.SavedURLs)
	}
	zeta, _ := reopened.Get("Zeta")
	if zeta.ResumeURL() != "https://zeta.example.com/2" || len(zeta.SavedURLs) != 2 {
		t.Errorf("Unexpected Zeta saved URLs: %v", zeta.SavedURLs)
	}

	// Comments, order and unknown keys survive rewrites
	data, _ := os.ReadFile(path)
	content := string(data)
	if !strings.Contains(content, "# comics I follow") {
		t.Error("Comment lost on rewrite")
	}
	if !strings.Contains(content, "custom_note: keep me") {
		t.Error("Unknown key lost on rewrite")
	}
	if strings.Index(content, "Zeta:") > strings.Index(content, "Alpha:") {
		t.Error("Entry order changed on rewrite")
	}

	// No temp files left behind
	matches, _ := filepath.Glob(path + ".*.tmp")
	if len(matches) != 0 {
		t.Errorf("Temporary files left behind: %v", matches)
	}
}

func TestMarkPendingUntilRecordSaved(t *testing.T) {
	path := writeStore(t, sampleStore)
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := store.MarkPending("Zeta", "https://zeta.example.com/2", "00002 - Two.png"); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}
	// A second mark replaces the first
	if err := store.MarkPending("Zeta", "https://zeta.example.com/3", "00003 - Three.png"); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	zeta, _ := reopened.Get("Zeta")
	if zeta.Pending == nil || zeta.Pending.URL != "https://zeta.example.com/3" || zeta.Pending.File != "00003 - Three.png" {
		t.Fatalf("Unexpected pending record: %+v", zeta.Pending)
	}
	data, _ := os.ReadFile(path)
	if strings.Count(string(data), "pending:") != 1 {
		t.Errorf("Expected exactly one pending record:\n%s", data)
	}

	if err := store.RecordSaved("Zeta", "https://zeta.example.com/3"); err != nil {
		t.Fatalf("RecordSaved failed: %v", err)
	}
	reopened, err = Open(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	zeta, _ = reopened.Get("Zeta")
	if zeta.Pending != nil {
		t.Errorf("Pending record survived checkpoint: %+v", zeta.Pending)
	}
	if zeta.ResumeURL() != "https://zeta.example.com/3" {
		t.Errorf("Unexpected resume URL %s", zeta.ResumeURL())
	}

	if err := store.MarkPending("Nope", "https://x", "f"); !errs.Is(err, errs.ErrorTypeEntryNotFound) {
		t.Errorf("Expected EntryNotFound, got %v", err)
	}
}

func TestRewriteKeepsFileMode(t *testing.T) {
	for _, mode := range []os.FileMode{0644, 0640} {
		path := writeStore(t, sampleStore)
		if err := os.Chmod(path, mode); err != nil {
			t.Fatalf("Chmod failed: %v", err)
		}

		store, err := Open(path, nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := store.RecordSaved("Zeta", "https://zeta.example.com/2"); err != nil {
			t.Fatalf("RecordSaved failed: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Mode().Perm() != mode {
			t.Errorf("Expected mode %v after rewrite, got %v", mode, info.Mode().Perm())
		}
	}
}

func TestRecordSavedUnknownEntry(t *testing.T) {
	store, err := Open(writeStore(t, sampleStore), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.RecordSaved("Nope", "https://x"); !errs.Is(err, errs.ErrorTypeEntryNotFound) {
		t.Errorf("Expected EntryNotFound, got %v", err)
	}
}

func TestAddBlankPicksUniqueNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Bootstrap(path); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	first, err := store.AddBlank()
	if err != nil {
		t.Fatalf("AddBlank failed: %v", err)
	}
	second, err := store.AddBlank()
	if err != nil {
		t.Fatalf("AddBlank failed: %v", err)
	}
	if first != "ExampleEntry2" || second != "ExampleEntry3" {
		t.Errorf("Expected ExampleEntry2 and ExampleEntry3, got %s and %s", first, second)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if got := len(reopened.Names()); got != 3 {
		t.Errorf("Expected 3 entries, got %d", got)
	}
}

func TestRecordSavedOnNullEntry(t *testing.T) {
	path := writeStore(t, "Bare:\n")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := store.RecordSaved("Bare", "https://bare.example.com/1"); err != nil {
		t.Fatalf("RecordSaved failed: %v", err)
	}
	e, _ := store.Get("Bare")
	if len(e.SavedURLs) != 1 {
		t.Errorf("Expected one saved URL, got %v", e.SavedURLs)
	}
}

func TestOpenRejectsMalformedStore(t *testing.T) {
	tests := map[string]string{
		"not a mapping": "- a\n- b\n",
		"duplicate":     "A:\n  url: x\nA:\n  url: y\n",
		"bad yaml":      "A: [\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Open(writeStore(t, content), nil)
			if !errs.Is(err, errs.ErrorTypeInvalidEntry) {
				t.Errorf("Expected InvalidEntry, got %v", err)
			}
		})
	}
}

func TestEmptyStore(t *testing.T) {
	store, err := Open(writeStore(t, ""), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(store.Names()) != 0 {
		t.Error("Expected no entries")
	}
	if _, err := store.AddBlank(); err != nil {
		t.Errorf("AddBlank on empty store failed: %v", err)
	}
}

func TestBackup(t *testing.T) {
	path := writeStore(t, sampleStore)
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Backup(); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	data, err := os.ReadFile(path + ".backup")
	if err != nil || string(data) != sampleStore {
		t.Errorf("Backup content mismatch: %v", err)
	}
}
