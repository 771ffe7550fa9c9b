package ensemble

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tarstars/gbdt_engine/internal/loss"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

func sampleEnsemble() Ensemble {
	return Ensemble{
		Loss:               loss.SquaredError,
		Task:               loss.Regression,
		TreesPerIteration:  1,
		InitialPredictions: []float32{0.5},
		RankingGroupColumn: -1,
		Trees:              []tree.Tree{leafTree(1), leafTree(-1)},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := sampleEnsemble()
	if err := Save(dir, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Loss != want.Loss || got.Task != want.Task {
		t.Fatalf("loaded loss/task = %v/%v, want %v/%v", got.Loss, got.Task, want.Loss, want.Task)
	}
	if len(got.Trees) != len(want.Trees) {
		t.Fatalf("loaded %d trees, want %d", len(got.Trees), len(want.Trees))
	}
	if got.InitialPredictions[0] != want.InitialPredictions[0] {
		t.Fatalf("loaded initial predictions = %v, want %v", got.InitialPredictions, want.InitialPredictions)
	}
}

func TestSaveRefusesInvalidEnsemble(t *testing.T) {
	dir := t.TempDir()
	bad := sampleEnsemble()
	bad.TreesPerIteration = 0
	if err := Save(dir, bad); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadRejectsDirectoryMissingDoneSentinel(t *testing.T) {
	dir := t.TempDir()
	e := sampleEnsemble()
	if err := Save(dir, e); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, doneFileName)); err != nil {
		t.Fatalf("removing done sentinel: %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrData) {
		t.Fatalf("expected ErrData for a missing done sentinel, got %v", err)
	}
}

func TestLoadRejectsUnknownNodeFormat(t *testing.T) {
	dir := t.TempDir()
	e := sampleEnsemble()
	if err := Save(dir, e); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var header Header
	if err := readJSON(filepath.Join(dir, headerFileName), &header); err != nil {
		t.Fatalf("readJSON: %v", err)
	}
	header.NodeFormat = "protobuf-v7"
	if err := writeJSON(filepath.Join(dir, headerFileName), header); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrData) {
		t.Fatalf("expected ErrData for an unsupported node_format, got %v", err)
	}
}
