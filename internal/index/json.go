package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/fsutil"
	"github.com/savify/savify/pkg/model"
)

const jsonTable = "_default"

// jsonRow mirrors one TinyDB document so existing savify_db.json files stay
// readable.
type jsonRow struct {
	Filename  string `json:"filename"`
	Branch    string `json:"branch"`
	CreatedAt string `json:"created_at,omitempty"`
}

// JSON is a Store backed by a TinyDB-layout JSON document:
// {"_default": {"1": {"filename": ..., "branch": ...}, ...}}.
// Every call re-reads the file and mutations rewrite it atomically.
type JSON struct {
	path string
	mu   sync.Mutex
}

// OpenJSON opens the document at path, creating an empty one if missing.
func OpenJSON(path string) (*JSON, error) {
	s := &JSON{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(map[string]jsonRow{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat index: %w", err)
	}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSON) Close() error { return nil }

func (s *JSON) Find(ctx context.Context, path string) (*model.TrackedFile, error) {
	return s.findBy(func(r jsonRow) bool { return r.Filename == path })
}

func (s *JSON) FindByLine(ctx context.Context, lineID string) (*model.TrackedFile, error) {
	return s.findBy(func(r jsonRow) bool { return r.Branch == lineID })
}

func (s *JSON) findBy(match func(jsonRow) bool) (*model.TrackedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, key := range sortedKeys(rows) {
		if r := rows[key]; match(r) {
			tf := r.tracked()
			return &tf, nil
		}
	}
	return nil, ErrNotFound
}

func (s *JSON) Insert(ctx context.Context, tf model.TrackedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	next := 1
	for key, r := range rows {
		if r.Filename == tf.Path || r.Branch == tf.LineID {
			return errclass.ErrDuplicateEntry.WithMessagef("path %s or line %s already indexed", tf.Path, tf.LineID)
		}
		if n, err := strconv.Atoi(key); err == nil && n >= next {
			next = n + 1
		}
	}
	created := tf.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	rows[strconv.Itoa(next)] = jsonRow{
		Filename:  tf.Path,
		Branch:    tf.LineID,
		CreatedAt: created.Format(time.RFC3339Nano),
	}
	return s.save(rows)
}

func (s *JSON) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for key, r := range rows {
		if r.Filename == path {
			delete(rows, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(rows)
}

func (s *JSON) All(ctx context.Context) ([]model.TrackedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]model.TrackedFile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.tracked())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *JSON) load() (map[string]jsonRow, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	doc := map[string]map[string]jsonRow{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse index %s: %w", s.path, err)
		}
	}
	rows := doc[jsonTable]
	if rows == nil {
		rows = map[string]jsonRow{}
	}
	return rows, nil
}

func (s *JSON) save(rows map[string]jsonRow) error {
	data, err := json.Marshal(map[string]map[string]jsonRow{jsonTable: rows})
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := fsutil.AtomicWrite(s.path, data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (r jsonRow) tracked() model.TrackedFile {
	tf := model.TrackedFile{Path: r.Filename, LineID: r.Branch}
	if r.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
			tf.CreatedAt = t
		}
	}
	return tf
}

func sortedKeys(rows map[string]jsonRow) []string {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
