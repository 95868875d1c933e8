package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joshharrison/hlsched/internal/reporter"
)

func outcomeRecord(latency int) *Record {
	return &Record{
		Command:   "schedule",
		GraphFile: "dfg.edgelist",
		Outcome: &reporter.OutcomeReport{
			Mode:      "ml_rc",
			Latency:   latency,
			Area:      3,
			Instances: map[string]int{"adder": 1, "mult": 2},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := New(t.TempDir())

	rec := outcomeRecord(9)
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(rec.ID, "run-") {
		t.Errorf("expected generated run id, got %q", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if _, err := os.Stat(filepath.Join(s.Dir, runsDir, rec.ID+".json")); err != nil {
		t.Fatalf("expected run file: %v", err)
	}

	loaded, err := s.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Outcome == nil || loaded.Outcome.Latency != 9 {
		t.Errorf("expected latency 9, got %+v", loaded.Outcome)
	}
	if loaded.Outcome.Instances["mult"] != 2 {
		t.Errorf("expected 2 multipliers, got %v", loaded.Outcome.Instances)
	}
	if loaded.Headline() != "ml_rc latency=9 area=3" {
		t.Errorf("unexpected headline %q", loaded.Headline())
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Load("run-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := New(t.TempDir())

	// Empty archive
	records, err := s.List()
	if err != nil {
		t.Fatalf("List (empty): %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected 0 records, got %d", len(records))
	}
	if _, err := s.Latest(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from empty archive, got %v", err)
	}

	base := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
	older := outcomeRecord(9)
	older.CreatedAt = base
	newer := &Record{
		Command:   "sweep",
		CreatedAt: base.Add(2 * time.Hour),
		Sweep: &reporter.SweepReport{
			Points:    []reporter.PointReport{{Candidate: "a", Latency: 7, Cost: 3}, {Candidate: "b", Latency: 9, Cost: 2}},
			Evaluated: 3,
		},
	}
	for _, rec := range []*Record{older, newer} {
		if err := s.Save(rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	records, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Newest first
	if records[0].ID != newer.ID {
		t.Errorf("expected newest first, got %s", records[0].ID)
	}
	if records[1].ID != older.ID {
		t.Errorf("expected oldest second, got %s", records[1].ID)
	}
	if got := records[0].Headline(); got != "sweep 2/3 points (7,3) (9,2)" {
		t.Errorf("unexpected sweep headline %q", got)
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != newer.ID {
		t.Errorf("expected latest %s, got %s", newer.ID, latest.ID)
	}
}

func TestNewID_SortsChronologically(t *testing.T) {
	a := NewID(time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC))
	b := NewID(time.Date(2026, 2, 20, 11, 0, 0, 0, time.UTC))
	if a >= b {
		t.Errorf("expected %s < %s", a, b)
	}
	if !strings.HasPrefix(a, "run-20260220-090000-") {
		t.Errorf("unexpected id format %q", a)
	}
}
