// Package memory persists short per-project notes (intent, workflow, free
// notes) so an agent can pick up a composition where it left off.
package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m4xw311/bachmcp/errors"
)

// Entry is what is remembered about one project.
type Entry struct {
	Intent    string `json:"intent,omitempty"`
	Workflow  string `json:"workflow,omitempty"`
	Notes     string `json:"notes,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// Store reads and writes a single JSON file mapping project name to Entry.
// Each call re-reads the file, so edits made outside the process are seen.
type Store struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewStore returns a store backed by path. The file and its directory are
// created on the first Write.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Read returns the entry for project. The bool is false when nothing has
// been written for it yet.
func (s *Store) Read(project string) (Entry, bool, error) {
	key := strings.TrimSpace(project)
	if key == "" {
		return Entry{}, false, errors.New("project name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := all[key]
	return e, ok, nil
}

// Project is a listing row: a project name and when it was last written.
type Project struct {
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

// Projects lists every stored project, sorted by name.
func (s *Store) Projects() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(all))
	for name, e := range all {
		updated := e.UpdatedAt
		if updated == "" {
			updated = "unknown"
		}
		out = append(out, Project{Name: name, UpdatedAt: updated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Write merges update into the stored entry for project. Empty fields in
// update leave the stored value untouched. UpdatedAt is always stamped.
func (s *Store) Write(project string, update Entry) (Entry, error) {
	key := strings.TrimSpace(project)
	if key == "" {
		return Entry{}, errors.New("project name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return Entry{}, err
	}
	e := all[key]
	if v := strings.TrimSpace(update.Intent); v != "" {
		e.Intent = v
	}
	if v := strings.TrimSpace(update.Workflow); v != "" {
		e.Workflow = v
	}
	if v := strings.TrimSpace(update.Notes); v != "" {
		e.Notes = v
	}
	e.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	all[key] = e
	if err := s.save(all); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *Store) load() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read memory file %s", s.path)
	}
	all := map[string]Entry{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrapf(err, "could not parse memory file %s", s.path)
	}
	if all == nil {
		// A literal null decodes to a nil map.
		all = map[string]Entry{}
	}
	return all, nil
}

func (s *Store) save(all map[string]Entry) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "could not create memory directory")
		}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize memory")
	}
	return os.WriteFile(s.path, data, 0644)
}
