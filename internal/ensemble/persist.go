package ensemble

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tarstars/gbdt_engine/internal/loss"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// Header is the persisted metadata record, one JSON document per model
// directory. NodeFormat is fixed to "json-v1": this repository only ever
// writes and reads its own single tree encoding.
type Header struct {
	Loss                loss.Kind       `json:"loss"`
	NumTreesPerIteration uint32         `json:"num_trees_per_iteration"`
	NumTreeShards       uint32          `json:"num_tree_shards"`
	NumTrees            uint32          `json:"num_trees"`
	NodeFormat          string          `json:"node_format"`
	ValidationLoss      *float32        `json:"validation_loss,omitempty"`
	InitialPredictions  []float32       `json:"initial_predictions"`
	TrainingLogs        json.RawMessage `json:"training_logs,omitempty"`

	Task               loss.Task `json:"task"`
	NumClasses         uint32    `json:"num_classes,omitempty"`
	RankingGroupColumn int       `json:"ranking_group_column"`
}

const nodeFormatJSONv1 = "json-v1"

// headerFileName and nodesFileName split what could be one file into a
// two-file header+nodes layout, so a reader can inspect metadata without
// paying to parse every tree.
const (
	headerFileName = "header.json"
	nodesFileName  = "nodes.json"
	doneFileName   = "done"
)

// Save writes an ensemble to dir as header.json + nodes.json, then touches an
// empty "done" sentinel last so a reader can tell a save completed fully.
func Save(dir string, e Ensemble) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("ensemble: refusing to save an invalid ensemble: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensemble: %w", err)
	}

	header := Header{
		Loss:                 e.Loss,
		NumTreesPerIteration: e.TreesPerIteration,
		NumTreeShards:        1,
		NumTrees:             uint32(len(e.Trees)),
		NodeFormat:           nodeFormatJSONv1,
		ValidationLoss:       e.ValidationLoss,
		InitialPredictions:   e.InitialPredictions,
		Task:                 e.Task,
		NumClasses:           e.NumClasses,
		RankingGroupColumn:   e.RankingGroupColumn,
	}
	if err := writeJSON(filepath.Join(dir, headerFileName), header); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, nodesFileName), e.Trees); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, doneFileName), nil, 0o644)
}

// Load reads an ensemble saved by Save. It refuses a directory missing the
// "done" sentinel: a partially written model must never be mistaken for a
// complete one.
func Load(dir string) (Ensemble, error) {
	if _, err := os.Stat(filepath.Join(dir, doneFileName)); err != nil {
		return Ensemble{}, fmt.Errorf("%w: model directory %s has no done sentinel, save may be incomplete", ErrData, dir)
	}

	var header Header
	if err := readJSON(filepath.Join(dir, headerFileName), &header); err != nil {
		return Ensemble{}, err
	}
	if header.NodeFormat != nodeFormatJSONv1 {
		return Ensemble{}, fmt.Errorf("%w: unsupported node_format %q", ErrData, header.NodeFormat)
	}

	var trees []tree.Tree
	if err := readJSON(filepath.Join(dir, nodesFileName), &trees); err != nil {
		return Ensemble{}, err
	}

	e := Ensemble{
		Trees:              trees,
		Loss:               header.Loss,
		Task:               header.Task,
		TreesPerIteration:  header.NumTreesPerIteration,
		InitialPredictions: header.InitialPredictions,
		ValidationLoss:     header.ValidationLoss,
		NumClasses:         header.NumClasses,
		RankingGroupColumn: header.RankingGroupColumn,
	}
	if err := e.Validate(); err != nil {
		return Ensemble{}, fmt.Errorf("ensemble: loaded model failed validation: %w", err)
	}
	return e, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ensemble: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("ensemble: %w", err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ensemble: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("ensemble: %w", err)
	}
	return nil
}
