// Command gbdt-train is a minimal runnable demonstration of the training
// wiring: flag parsing selects a mode, a JSON config drives the run. It is
// not a production CLI — flag/config surface is explicitly out of scope for
// the core.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/tarstars/gbdt_engine/internal/dataset"
	"github.com/tarstars/gbdt_engine/internal/ensemble"
	"github.com/tarstars/gbdt_engine/internal/loss"
	"github.com/tarstars/gbdt_engine/internal/ranking"
	"github.com/tarstars/gbdt_engine/internal/telemetry"
	"github.com/tarstars/gbdt_engine/internal/trainer"
	"github.com/tarstars/gbdt_engine/internal/tree"
)

// demoGroupSize buckets consecutive rows into synthetic ranking groups when
// the requested loss needs one; the npy loader this demo uses has no notion
// of a group column of its own.
const demoGroupSize = 10

// TrainConfig holds file paths plus hyperparameters, decoded straight from a
// JSON file.
type TrainConfig struct {
	FileNameTrainNumerical string `json:"filename_train_numerical"`
	FileNameTrainLabel     string `json:"filename_train_label"`
	FileNameModel          string `json:"filename_model"`
	NumClasses             int    `json:"num_classes"`
	NStages                int    `json:"n_stages"`
	LossKind               string `json:"loss_kind"`
	loss.Config
}

func decodeConfig(path string, out interface{}) {
	f, err := os.Open(path)
	if err != nil {
		log.Panicf("gbdt-train: %v", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(out); err != nil {
		log.Panicf("gbdt-train: %v", err)
	}
}

func buildLoss(cfg TrainConfig) (loss.Loss, loss.Task) {
	switch loss.Kind(cfg.LossKind) {
	case loss.BinomialLogLikelihood:
		return loss.BinomialLoss{Config: cfg.Config}, loss.Classification
	case loss.SquaredError:
		return loss.SquaredErrorLoss{Config: cfg.Config, Task: loss.Regression}, loss.Regression
	case loss.MultinomialLogLikelihood:
		return loss.MultinomialLoss{Config: cfg.Config, NumClasses: cfg.NumClasses}, loss.Classification
	case loss.LambdaMartNDCG5:
		return loss.LambdaMartNDCGLoss{Config: cfg.Config}, loss.Ranking
	case loss.XeNdcgMart:
		return loss.XeNdcgLoss{Config: cfg.Config}, loss.Ranking
	default:
		log.Panicf("gbdt-train: unknown loss_kind %q", cfg.LossKind)
		return nil, 0
	}
}

func trainModel(configPath string) {
	var cfg TrainConfig
	decodeConfig(configPath, &cfg)

	numerical := dataset.LoadNumericalColumnNPY(cfg.FileNameTrainNumerical)
	labels := dataset.LoadNumericalColumnNPY(cfg.FileNameTrainLabel)
	n := uint64(len(labels))

	columns := []dataset.ColumnSpec{
		{Name: "feature_0", Kind: dataset.Numerical},
		{Name: "label", Kind: dataset.Numerical},
	}

	l, task := buildLoss(cfg)

	groupCol := -1
	if task == loss.Ranking {
		groupCol = len(columns)
		numGroups := uint32(n)/demoGroupSize + 2
		columns = append(columns, dataset.ColumnSpec{Name: "group", Kind: dataset.Categorical, NumberOfUniqueValues: numGroups})
	}

	spec := dataset.DataSpec{Columns: columns}
	ds := dataset.NewInMemory(spec, n)
	ds.SetNumerical(0, numerical)
	ds.SetNumerical(1, labels)

	var groupIndex *ranking.GroupIndex
	if task == loss.Ranking {
		groupIDs := make([]uint32, n)
		for row := range groupIDs {
			groupIDs[row] = uint32(row)/demoGroupSize + 1 // 0 stays reserved for OOV
		}
		ds.SetCategorical(groupCol, groupIDs)
		var err error
		groupIndex, err = ranking.BuildGroupIndex(ds, 1, groupCol)
		if err != nil {
			log.Panicf("gbdt-train: %v", err)
		}
	}

	log.Printf("training %s for %d iterations over %d rows", cfg.LossKind, cfg.NStages, n)

	tr, err := trainer.New(trainer.Trainer{
		Loss:               l,
		Task:               task,
		Grower:             tree.StumpGrower{},
		Dataset:            ds,
		LabelColumn:        1,
		GroupIndex:         groupIndex,
		RankingGroupColumn: groupCol,
		Rng:                rand.New(rand.NewSource(1)),
	})
	if err != nil {
		log.Panicf("gbdt-train: %v", err)
	}
	if _, err := tr.Run(cfg.NStages); err != nil {
		log.Panicf("gbdt-train: %v", err)
	}

	model := tr.Ensemble()
	if err := model.Validate(); err != nil {
		log.Panicf("gbdt-train: trained an invalid ensemble: %v", err)
	}
	if err := ensemble.Save(cfg.FileNameModel, model); err != nil {
		log.Panicf("gbdt-train: %v", err)
	}
	log.Printf("saved model to %s", cfg.FileNameModel)
}

// predictModel loads a saved model and scores the single numerical feature
// column produced by trainModel's demo dataset, one row per PredictRow call.
func predictModel(modelDir, featuresPath string) {
	model, err := ensemble.Load(modelDir)
	if err != nil {
		log.Panicf("gbdt-train: %v", err)
	}
	log.Printf("loaded model: loss=%s trees=%d trees_per_iteration=%d", model.Loss, len(model.Trees), model.TreesPerIteration)

	features := dataset.LoadNumericalColumnNPY(featuresPath)
	sink := telemetry.NopSink{}
	runID := telemetry.NewRunID()
	for row, value := range features {
		f := value
		featureAt := func(idx int) float32 {
			if idx == 0 {
				return f
			}
			return 0
		}
		start := time.Now()
		pred, err := model.PredictRow(featureAt)
		sink.OnInference(telemetry.InferenceStats{RunID: runID, Duration: time.Since(start)})
		if err != nil {
			log.Panicf("gbdt-train: row %d: %v", row, err)
		}
		log.Printf("row %d: %+v", row, pred)
	}
}

func main() {
	mode := flag.String("mode", "train", "train | predict")
	configPath := flag.String("config", "", "path to a JSON config file")
	modelDir := flag.String("model", "", "path to a saved model directory (predict mode)")
	featuresPath := flag.String("features", "", "path to a single-column .npy feature file (predict mode)")
	flag.Parse()

	switch *mode {
	case "train":
		if *configPath == "" {
			log.Fatal("gbdt-train: -config is required in train mode")
		}
		trainModel(*configPath)
	case "predict":
		if *modelDir == "" {
			log.Fatal("gbdt-train: -model is required in predict mode")
		}
		if *featuresPath == "" {
			log.Fatal("gbdt-train: -features is required in predict mode")
		}
		predictModel(*modelDir, *featuresPath)
	default:
		log.Fatalf("gbdt-train: unknown -mode %q", *mode)
	}
}
