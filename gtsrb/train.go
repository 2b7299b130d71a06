// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/tsrkit/trafficsigns/bestcheckpoint"
	"github.com/tsrkit/trafficsigns/history"
	"github.com/tsrkit/trafficsigns/sgd"
	"github.com/tsrkit/trafficsigns/stepdecay"
	"k8s.io/klog/v2"
)

var (
	// DType used by the model.
	DType = dtypes.Float32

	// ParamsExcludedFromSaving is the list of parameters (see CreateDefaultContext) that shouldn't be saved
	// along on the models checkpoints, and may be overwritten in further training sessions.
	ParamsExcludedFromSaving = []string{
		"num_epochs", "eval_batch_size", "seed",
	}
)

// HistoryFileName is the file, in the checkpoint directory, where the training history is saved.
const HistoryFileName = "history.json"

// CreateDefaultContext sets the context with default hyperparameters to use with TrainModel.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		// Training data.
		"batch_size":       32,
		"eval_batch_size":  256,
		"num_epochs":       30,
		"validation_split": 0.2,
		"seed":             42,

		// Optimizer: SGD with Nesterov momentum and time-based decay, plus the per-epoch step decay.
		optimizers.ParamOptimizer:       sgd.Name,
		optimizers.ParamLearningRate:    stepdecay.Default.Initial,
		optimizers.ParamClipStepByValue: 0.0,
		sgd.ParamMomentum:               sgd.DefaultMomentum,
		sgd.ParamNesterov:               true,
		sgd.ParamDecay:                  sgd.DefaultDecay,
		stepdecay.ParamFactor:           stepdecay.Default.Factor,
		stepdecay.ParamEpochsPerDrop:    stepdecay.Default.EpochsPerDrop,

		// Model.
		ParamConvDropout:  0.2,
		ParamDenseDropout: 0.5,
	})
	return ctx
}

// TrainConfig holds the configuration of TrainModel that is not a model hyperparameter.
type TrainConfig struct {
	// TrainDir holds one sub-directory per class with the training images.
	TrainDir string

	// Pattern used to find the images in TrainDir. Defaults to DefaultPattern.
	Pattern string

	// CheckpointDir where the best model is saved.
	CheckpointDir string

	// Resume training from the checkpoint in CheckpointDir. If false, a previous checkpoint is removed.
	Resume bool

	// NumWorkers decoding images, see LoadOptions.
	NumWorkers int

	// PlotPath, if set, is where a PNG with the training curves is saved.
	PlotPath string

	// ParamsSet are the hyperparameters set by the user, which are not saved in the checkpoint.
	ParamsSet []string

	// Verbosity: 0 is quiet, 1 shows progress bars and the history table, 2 also the hyperparameters.
	Verbosity int
}

// TrainResult holds the state after training, used for evaluation.
type TrainResult struct {
	// Context with the final weights (not necessarily the best, which are saved in the checkpoint).
	Context *context.Context

	History    *history.History
	Checkpoint *bestcheckpoint.Monitor
}

// TrainModel loads the training images, trains the model for "num_epochs" epochs and saves the model with the best
// validation loss in the checkpoint directory.
//
// Hyperparameters are read from ctx, see CreateDefaultContext.
func TrainModel(ctx *context.Context, backend backends.Backend, config TrainConfig) (*TrainResult, error) {
	batchSize := context.GetParamOr(ctx, "batch_size", 0)
	evalBatchSize := context.GetParamOr(ctx, "eval_batch_size", batchSize)
	numEpochs := context.GetParamOr(ctx, "num_epochs", 0)
	validationSplit := context.GetParamOr(ctx, "validation_split", 0.2)
	if batchSize <= 0 {
		return nil, errors.Errorf("batch_size must be > 0, got %d", batchSize)
	}
	if numEpochs <= 0 {
		return nil, errors.Errorf("num_epochs must be > 0, got %d", numEpochs)
	}
	seed := context.GetParamOr(ctx, "seed", 42)
	rng := rand.New(rand.NewSource(int64(seed)))

	// Load all training images in memory, in a random order: the validation split takes the last ones.
	paths, err := ListImagePaths(config.TrainDir, config.Pattern)
	if err != nil {
		return nil, err
	}
	ShufflePaths(paths, rng)
	samples, err := LoadSamples(paths, LoadOptions{
		NumWorkers: config.NumWorkers, ShowProgress: config.Verbosity >= 1, Name: "training images"})
	if err != nil {
		return nil, err
	}
	trainSamples, validationSamples, err := SplitValidation(samples, validationSplit)
	if err != nil {
		return nil, err
	}
	if len(validationSamples) == 0 {
		return nil, errors.Errorf("no validation samples out of %d images with validation_split=%g",
			len(samples), validationSplit)
	}
	trainDS, validationDS, err := CreateDatasets(backend, trainSamples, validationSamples, batchSize, evalBatchSize, rng)
	if err != nil {
		return nil, err
	}
	klog.Infof("Training on %d images, validating on %d images", len(trainSamples), len(validationSamples))

	// Best model checkpoint.
	monitor, err := bestcheckpoint.New(ctx, config.CheckpointDir, config.Resume,
		append(config.ParamsSet, ParamsExcludedFromSaving...)...)
	if err != nil {
		return nil, err
	}
	if config.Verbosity >= 2 {
		fmt.Println(commandline.SprintContextSettings(ctx))
	}

	ctx = ctx.In("model") // Convention scope used for model creation.
	trainer := train.NewTrainer(backend, ctx, ModelGraph,
		losses.CategoricalCrossEntropyLogits,
		optimizers.FromContext(ctx),
		[]metrics.Interface{NewMovingAverageCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)}, // trainMetrics
		[]metrics.Interface{NewCategoricalAccuracy("Mean Accuracy", "#acc")})                              // evalMetrics
	loop := train.NewLoop(trainer)
	if config.Verbosity >= 1 {
		commandline.AttachProgressBar(loop)
	}

	firstEpoch := 0
	if optimizers.GetGlobalStep(ctx) == 0 {
		if err := ctx.SetRNGStateFromSeed(int64(seed)); err != nil {
			return nil, errors.WithMessagef(err, "seeding the random number generator")
		}
	} else {
		trainer.SetContext(ctx.Reuse())
		firstEpoch = monitor.BestEpoch() + 1
		klog.Infof("Resuming training from epoch %d (best validation loss %.5g)", firstEpoch, monitor.Best())
	}

	hist := &history.History{}
	if firstEpoch > 0 {
		// Continue the previous history, up to the epoch of the checkpoint.
		if previous, err := history.LoadJSON(filepath.Join(monitor.Dir(), HistoryFileName)); err == nil {
			for _, r := range previous.Records {
				if r.Epoch < firstEpoch {
					hist.Add(r)
				}
			}
		} else {
			klog.V(1).Infof("No previous training history: %v", err)
		}
	}
	schedule := stepdecay.FromContext(ctx)
	for epoch := firstEpoch; epoch < numEpochs; epoch++ {
		learningRate, err := schedule.Apply(ctx, DType, epoch)
		if err != nil {
			return nil, err
		}
		trainMetrics, err := loop.RunEpochs(trainDS, 1)
		if err != nil {
			return nil, errors.WithMessagef(err, "training epoch %d", epoch)
		}
		record := history.Record{Epoch: epoch, LearningRate: learningRate}
		record.TrainLoss = metricOfType(trainer.TrainMetrics(), trainMetrics, metrics.LossMetricType)
		record.TrainAccuracy = metricOfType(trainer.TrainMetrics(), trainMetrics, metrics.AccuracyMetricType)

		evalMetrics, err := trainer.Eval(validationDS)
		if err != nil {
			return nil, errors.WithMessagef(err, "evaluating validation of epoch %d", epoch)
		}
		validationDS.Reset()
		record.ValidationLoss = metricOfType(trainer.EvalMetrics(), evalMetrics, metrics.LossMetricType)
		record.ValidationAccuracy = metricOfType(trainer.EvalMetrics(), evalMetrics, metrics.AccuracyMetricType)

		record.Saved, err = monitor.Update(epoch, record.ValidationLoss)
		if err != nil {
			return nil, err
		}
		hist.Add(record)
		klog.Infof("Epoch %d/%d: lr=%.3g loss=%.4f acc=%.2f%% val_loss=%.4f val_acc=%.2f%%",
			epoch+1, numEpochs, learningRate, record.TrainLoss, 100*record.TrainAccuracy,
			record.ValidationLoss, 100*record.ValidationAccuracy)
	}
	if config.Verbosity >= 1 {
		fmt.Printf("\tMedian train step: %d microseconds\n", loop.MedianTrainStepDuration().Microseconds())
		fmt.Println(hist.Render())
	}
	if hist.Len() > 0 {
		if err := hist.SaveJSON(filepath.Join(monitor.Dir(), HistoryFileName)); err != nil {
			klog.Warningf("Failed to save training history: %+v", err)
		}
		if config.PlotPath != "" {
			if err := hist.SavePlot(config.PlotPath); err != nil {
				return nil, err
			}
			klog.Infof("Training curves plotted to %q", config.PlotPath)
		}
	}
	return &TrainResult{Context: ctx, History: hist, Checkpoint: monitor}, nil
}

// metricOfType returns the value of the last metric of the given type, or NaN if there is none.
// For the train metrics this picks the moving average loss over the per-batch loss.
func metricOfType(metricsObjs []metrics.Interface, values []*tensors.Tensor, metricType string) float64 {
	value := math.NaN()
	for ii, m := range metricsObjs {
		if ii < len(values) && m.MetricType() == metricType {
			value = shapes.ConvertTo[float64](values[ii].Value())
		}
	}
	return value
}
