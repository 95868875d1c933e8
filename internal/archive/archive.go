// Package archive persists finished runs as JSON documents so earlier
// schedules and sweeps can be listed and reloaded.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshharrison/hlsched/internal/reporter"
)

// DefaultDir is the archive root used when none is configured.
const DefaultDir = ".hlsched"

const runsDir = "runs"

// ErrNotFound is returned by Load for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Record is one archived run. Exactly one of Outcome and Sweep is set.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Command   string    `json:"command"`
	GraphFile string    `json:"graph_file,omitempty"`
	Backend   string    `json:"backend,omitempty"`

	Outcome *reporter.OutcomeReport `json:"outcome,omitempty"`
	Sweep   *reporter.SweepReport   `json:"sweep,omitempty"`
}

// Headline summarizes the record in one line.
func (r *Record) Headline() string {
	switch {
	case r.Outcome != nil:
		return fmt.Sprintf("%s latency=%d area=%d", r.Outcome.Mode, r.Outcome.Latency, r.Outcome.Area)
	case r.Sweep != nil:
		var pts []string
		for _, p := range r.Sweep.Points {
			pts = append(pts, fmt.Sprintf("(%d,%d)", p.Latency, p.Cost))
		}
		return fmt.Sprintf("sweep %d/%d points %s", len(r.Sweep.Points), r.Sweep.Evaluated, strings.Join(pts, " "))
	default:
		return "empty"
	}
}

// Store reads and writes records under Dir/runs.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir, or DefaultDir when dir is empty.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir}
}

// NewID returns a run id that sorts chronologically, e.g.
// run-20261019-101500-1a2b3c4d.
func NewID(now time.Time) string {
	return fmt.Sprintf("run-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, runsDir, id+".json")
}

// Save writes rec, assigning an id and timestamp if they are unset.
func (s *Store) Save(rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.ID == "" {
		rec.ID = NewID(rec.CreatedAt)
	}
	if err := os.MkdirAll(filepath.Join(s.Dir, runsDir), 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return os.WriteFile(s.path(rec.ID), data, 0644)
}

// Load reads the record with the given id.
func (s *Store) Load(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run %s: %w", id, err)
	}
	return &rec, nil
}

// List returns all archived records, newest first. A missing archive
// directory yields an empty list.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(filepath.Join(s.Dir, runsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive: %w", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Latest returns the newest record.
func (s *Store) Latest() (*Record, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: archive is empty", ErrNotFound)
	}
	return records[0], nil
}
