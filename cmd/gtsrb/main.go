// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gtsrb trains a convolutional traffic-sign classifier on the German Traffic Sign Recognition Benchmark (GTSRB),
// saves the model with the best validation loss, and reports the accuracy on the test images.
//
// Training images are expected in one sub-directory per class (e.g.: "Final_Training/Images/00007/*.ppm").
// Test images either follow the same layout, or are in a flat directory labeled by an annotations CSV file
// (see --test_annotations).
//
// Hyperparameters can be changed with --set, e.g.: --set="num_epochs=10;batch_size=64".
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/tsrkit/trafficsigns/gtsrb"
	"github.com/tsrkit/trafficsigns/gtsrb/classifier"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagTrainDir        = flag.String("train_dir", "data/GTSRB/Final_Training/Images", "Directory with one sub-directory of training images per class.")
	flagTestDir         = flag.String("test_dir", "data/GTSRB/Final_Test/Images", "Directory with the test images.")
	flagPattern         = flag.String("pattern", gtsrb.DefaultPattern, "Pattern (see filepath.Match) of the images, relative to the training and test directories.")
	flagTestPattern     = flag.String("test_pattern", "", "Pattern of the test images. Defaults to --pattern, or \"*.ppm\" if --test_annotations is set.")
	flagTestAnnotations = flag.String("test_annotations", "", "Optional CSV file (separated by \";\", with columns \"Filename\" and \"ClassId\") labeling the test images.")
	flagCheckpoint      = flag.String("checkpoint", "model", "Directory where the best model is saved.")
	flagResume          = flag.Bool("resume", false, "Resume training from the model in --checkpoint. Otherwise a previous model is removed.")
	flagTrain           = flag.Bool("train", true, "Train the model. If false, the model in --checkpoint is evaluated.")
	flagEval            = flag.Bool("eval", true, "Evaluate the model on the test images.")
	flagWorkers         = flag.Int("workers", 0, "Number of parallel workers decoding images. Defaults to the number of CPUs.")
	flagPlot            = flag.String("plot", "", "If set, save a PNG with the training curves to this file.")
	flagVerbosity       = flag.Int("verbosity", 1, "Level of verbosity, the higher the more verbose.")
)

func main() {
	ctx := gtsrb.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))

	err := exceptions.TryCatch[error](func() { run(ctx, paramsSet) })
	if err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

func run(ctx *context.Context, paramsSet []string) {
	backend := backends.MustNew()
	if *flagVerbosity >= 1 {
		fmt.Printf("Backend %q:\t%s\n", backend.Name(), backend.Description())
	}
	checkpointDir := fsutil.MustReplaceTildeInDir(*flagCheckpoint)

	var predictor gtsrb.Predictor
	if *flagTrain {
		result := must.M1(gtsrb.TrainModel(ctx, backend, gtsrb.TrainConfig{
			TrainDir:      fsutil.MustReplaceTildeInDir(*flagTrainDir),
			Pattern:       *flagPattern,
			CheckpointDir: checkpointDir,
			Resume:        *flagResume,
			NumWorkers:    *flagWorkers,
			PlotPath:      *flagPlot,
			ParamsSet:     paramsSet,
			Verbosity:     *flagVerbosity,
		}))
		if best, found := result.History.Best(); found {
			fmt.Printf("Best model: epoch %d, validation loss %.4f, saved to %q\n",
				best.Epoch, best.ValidationLoss, result.Checkpoint.Dir())
		}
		if *flagEval {
			// Evaluate the weights at the end of training.
			predictor = must.M1(classifier.New(backend, result.Context))
		}
	} else if *flagEval {
		if !fsutil.MustFileExists(checkpointDir) {
			exceptions.Panicf("no model found in %q, train one first", checkpointDir)
		}
		predictor = must.M1(classifier.Load(backend, checkpointDir))
	}
	if !*flagEval {
		return
	}

	evalBatchSize := context.GetParamOr(ctx, "eval_batch_size", 256)
	testSamples := must.M1(loadTestSamples())
	result := must.M1(gtsrb.Evaluate(predictor, testSamples, evalBatchSize))
	klog.V(1).Infof("%d correct out of %d test images", result.Correct, result.Total)
	must.M(gtsrb.ReportAccuracy(os.Stdout, result))
}

// loadTestSamples labels the test images either by their directory, or with the annotations file.
func loadTestSamples() ([]gtsrb.Sample, error) {
	opts := gtsrb.LoadOptions{
		NumWorkers:   *flagWorkers,
		ShowProgress: *flagVerbosity >= 1,
		Name:         "test images",
	}
	pattern := *flagTestPattern
	if *flagTestAnnotations != "" {
		annotations, err := gtsrb.LoadAnnotations(fsutil.MustReplaceTildeInDir(*flagTestAnnotations))
		if err != nil {
			return nil, err
		}
		opts.Labeler = annotations.Labeler()
		if pattern == "" {
			pattern = "*.ppm"
		}
	}
	if pattern == "" {
		pattern = *flagPattern
	}
	samples, err := gtsrb.LoadDir(fsutil.MustReplaceTildeInDir(*flagTestDir), pattern, opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading test images")
	}
	return samples, nil
}
