package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	errs "chaincrawl/pkg/errors"
	"chaincrawl/pkg/logger"

	"gopkg.in/yaml.v3"
)

// TemplateName is the name given to blank entries
const TemplateName = "ExampleEntry"

// Entry is one crawl target together with its resume state
type Entry struct {
	Name      string   `yaml:"-"`
	URL       string   `yaml:"url"`
	NextPage  string   `yaml:"next_page"`
	Title     string   `yaml:"title"`
	Image     string   `yaml:"image"`
	Text      string   `yaml:"text"`
	Render    bool     `yaml:"render,omitempty"`
	SavedURLs []string `yaml:"saved_urls"`
	Skip      []string `yaml:"skip"`
	// Pending is set while a page's asset is being written
	Pending *Pending `yaml:"pending,omitempty"`
}

// Pending names the page whose asset download started but was not yet
// checkpointed, and the file it is written to
type Pending struct {
	URL  string `yaml:"url"`
	File string `yaml:"file"`
}

// ResumeURL returns the last saved URL, or the start URL when nothing was saved
func (e Entry) ResumeURL() string {
	if n := len(e.SavedURLs); n > 0 {
		return e.SavedURLs[n-1]
	}
	return e.URL
}

// IsSaved reports whether url is already recorded
func (e Entry) IsSaved(url string) bool {
	return slices.Contains(e.SavedURLs, url)
}

// IsSkipped reports whether url is on the skip list
func (e Entry) IsSkipped(url string) bool {
	return slices.Contains(e.Skip, url)
}

func (e Entry) clone() Entry {
	e.SavedURLs = slices.Clone(e.SavedURLs)
	e.Skip = slices.Clone(e.Skip)
	if e.Pending != nil {
		p := *e.Pending
		e.Pending = &p
	}
	return e
}

// Store is the YAML entry file. Entries keep their document order and the
// file is rewritten atomically after every mutation.
type Store struct {
	path   string
	doc    *yaml.Node
	order  []string
	nodes  map[string]*yaml.Node
	logger logger.Logger
	mu     sync.Mutex
}

// Open loads the entry store at path. When the file does not exist a
// template is written in its place and a ConfigMissing error is returned.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read entry store: %w", err)
		}
		if berr := Bootstrap(path); berr != nil {
			return nil, berr
		}
		log.WarnWithFields("Entry store not found, template written", map[string]interface{}{
			"path": path,
		})
		return nil, errs.New(errs.ErrorTypeConfigMissing,
			fmt.Sprintf("entry store not found, a template was written to %s; please configure it", path))
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidEntry, err, "failed to parse entry store")
	}

	s := &Store{
		path:   path,
		nodes:  make(map[string]*yaml.Node),
		logger: log,
	}
	if err := s.index(&doc); err != nil {
		return nil, err
	}

	log.DebugWithFields("Entry store loaded", map[string]interface{}{
		"path":    path,
		"entries": len(s.order),
	})
	return s, nil
}

// index records the order and value node of every entry in doc
func (s *Store) index(doc *yaml.Node) error {
	if doc.Kind == 0 || (doc.Kind == yaml.DocumentNode && len(doc.Content) == 0) {
		// Empty file
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return errs.New(errs.ErrorTypeInvalidEntry, "entry store must be a mapping of entry names")
	}

	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		if _, dup := s.nodes[name]; dup {
			return errs.New(errs.ErrorTypeInvalidEntry, "duplicate entry").WithEntry(name)
		}
		s.order = append(s.order, name)
		s.nodes[name] = root.Content[i+1]
	}
	s.doc = doc
	return nil
}

// Path returns the location of the entry file
func (s *Store) Path() string {
	return s.path
}

// Names returns entry names in document order
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Get returns a copy of the named entry
func (s *Store) Get(name string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(name)
}

func (s *Store) get(name string) (Entry, error) {
	node, ok := s.nodes[name]
	if !ok {
		available := slices.Clone(s.order)
		sort.Strings(available)
		return Entry{}, errs.New(errs.ErrorTypeEntryNotFound,
			fmt.Sprintf("no such entry; available: %s", strings.Join(available, ", "))).WithEntry(name)
	}

	var e Entry
	if node.Kind != yaml.ScalarNode || node.Tag != "!!null" {
		if err := node.Decode(&e); err != nil {
			return Entry{}, errs.Wrap(errs.ErrorTypeInvalidEntry, err, "malformed entry").WithEntry(name)
		}
	}
	e.Name = name
	return e.clone(), nil
}

// Entries returns every entry in document order
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		e, err := s.get(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Validate checks the named entries, or all entries when names is empty,
// and reports every missing required field at once.
func (s *Store) Validate(names ...string) error {
	if len(names) == 0 {
		names = s.Names()
	}

	var problems []error
	for _, name := range names {
		e, err := s.Get(name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if strings.TrimSpace(e.URL) == "" {
			problems = append(problems, errs.New(errs.ErrorTypeInvalidEntry, "url is required").WithEntry(name))
		}
		if strings.TrimSpace(e.Image) == "" {
			problems = append(problems, errs.New(errs.ErrorTypeInvalidEntry, "image selector is required").WithEntry(name))
		}
	}
	return errors.Join(problems...)
}

// MarkPending records that url's asset is about to be written to file and
// flushes the store. The record lasts until RecordSaved checkpoints a page.
func (s *Store) MarkPending(name, url, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.mapping(name)
	if err != nil {
		return err
	}

	prev := slices.Clone(node.Content)
	removeKey(node, "pending")
	pending := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{
		scalarNode("url"), scalarNode(url),
		scalarNode("file"), scalarNode(file),
	}}
	node.Content = append(node.Content, scalarNode("pending"), pending)

	if err := s.save(); err != nil {
		node.Content = prev
		return err
	}

	s.logger.DebugWithFields("Download pending", map[string]interface{}{
		"entry": name,
		"url":   url,
		"file":  file,
	})
	return nil
}

// RecordSaved appends url to the entry's saved URLs, clears any pending
// record and flushes the store. Callers are responsible for not recording
// the same URL twice.
func (s *Store) RecordSaved(name, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.mapping(name)
	if err != nil {
		return err
	}

	prev := slices.Clone(node.Content)
	removeKey(node, "pending")

	seq := mappingValue(node, "saved_urls")
	if seq == nil {
		seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		node.Content = append(node.Content, scalarNode("saved_urls"), seq)
	}
	if seq.Kind != yaml.SequenceNode {
		*seq = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}
	seq.Style = 0
	seq.Content = append(seq.Content, scalarNode(url))

	if err := s.save(); err != nil {
		// Keep memory consistent with disk
		seq.Content = seq.Content[:len(seq.Content)-1]
		node.Content = prev
		return err
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"entry": name,
		"url":   url,
		"saved": len(seq.Content),
	})
	return nil
}

// AddBlank appends a template entry under a name not yet in use and
// flushes the store. It returns the chosen name.
func (s *Store) AddBlank() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := TemplateName
	for i := 2; ; i++ {
		if _, taken := s.nodes[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s%d", TemplateName, i)
	}

	root := s.doc.Content[0]
	value := blankEntryNode()
	root.Content = append(root.Content, scalarNode(name), value)
	s.order = append(s.order, name)
	s.nodes[name] = value

	if err := s.save(); err != nil {
		root.Content = root.Content[:len(root.Content)-2]
		s.order = s.order[:len(s.order)-1]
		delete(s.nodes, name)
		return "", err
	}

	s.logger.InfoWithFields("Blank entry added", map[string]interface{}{
		"entry": name,
		"path":  s.path,
	})
	return name, nil
}

// mapping returns the named entry's node, turning a null entry into a blank
// mapping so keys can be added to it
func (s *Store) mapping(name string) (*yaml.Node, error) {
	node, ok := s.nodes[name]
	if !ok {
		return nil, errs.New(errs.ErrorTypeEntryNotFound, "no such entry").WithEntry(name)
	}
	if node.Kind != yaml.MappingNode {
		*node = *blankEntryNode()
	}
	return node, nil
}

// Backup copies the entry file next to itself with a .backup suffix
func (s *Store) Backup() error {
	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open entry store for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(s.path + ".backup")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy entry store to backup: %w", err)
	}
	return nil
}

func (s *Store) save() error {
	return writeDocument(s.path, s.doc)
}

// Bootstrap writes a store containing a single blank template entry
func Bootstrap(path string) error {
	doc := &yaml.Node{
		Kind: yaml.DocumentNode,
		Content: []*yaml.Node{{
			Kind:    yaml.MappingNode,
			Tag:     "!!map",
			Content: []*yaml.Node{scalarNode(TemplateName), blankEntryNode()},
		}},
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create entry store directory: %w", err)
		}
	}
	return writeDocument(path, doc)
}

// writeDocument replaces path with doc atomically
func writeDocument(path string, doc *yaml.Node) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.Wrap(errs.ErrorTypeWrite, err, "failed to create temporary entry store")
	}
	tempPath := file.Name()

	// CreateTemp uses 0600; keep the mode of the file being replaced
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := file.Chmod(mode); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeWrite, err, "failed to set entry store permissions")
	}

	enc := yaml.NewEncoder(file)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeWrite, err, "failed to encode entry store")
	}
	if err := enc.Close(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeWrite, err, "failed to encode entry store")
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeWrite, err, "failed to sync entry store")
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeWrite, err, "failed to close entry store")
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errs.Wrap(errs.ErrorTypeWrite, err, "failed to replace entry store")
	}
	return nil
}

func blankEntryNode() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range []string{"url", "next_page", "title", "image", "text"} {
		n.Content = append(n.Content, scalarNode(key), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"})
	}
	for _, key := range []string{"saved_urls", "skip"} {
		n.Content = append(n.Content, scalarNode(key), &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle})
	}
	return n
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// removeKey deletes key and its value from a mapping node
func removeKey(m *yaml.Node, key string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = slices.Delete(m.Content, i, i+2)
			return
		}
	}
}

// mappingValue returns the value node for key in a mapping node, or nil
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
