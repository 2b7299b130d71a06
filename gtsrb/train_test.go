// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/stretchr/testify/require"
	"github.com/tsrkit/trafficsigns/history"
)

// createTrainDir creates a small training directory with numPerClass random images for each of the given classes.
func createTrainDir(t *testing.T, classes []string, numPerClass int) string {
	rng := rand.New(rand.NewSource(13))
	root := t.TempDir()
	for track, class := range classes {
		for ii := range numPerClass {
			writePPM(t, filepath.Join(root, class, fmt.Sprintf("%05d_%05d.ppm", track, ii)),
				randomImage(rng, 20+ii, 24))
		}
	}
	return root
}

func smallTrainingContext(numEpochs int) *context.Context {
	ctx := CreateDefaultContext()
	ctx.SetParams(map[string]any{
		"batch_size":      4,
		"eval_batch_size": 8,
		"num_epochs":      numEpochs,
	})
	return ctx
}

func TestTrainModel(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping TestTrainModel: it trains the full model for a few steps.")
	}
	backend := graphtest.BuildTestBackend()
	trainDir := createTrainDir(t, []string{"00000", "00001", "00014"}, 4)
	checkpointDir := filepath.Join(t.TempDir(), "model")
	plotPath := filepath.Join(t.TempDir(), "curves.png")

	result, err := TrainModel(smallTrainingContext(2), backend, TrainConfig{
		TrainDir:      trainDir,
		CheckpointDir: checkpointDir,
		NumWorkers:    2,
		PlotPath:      plotPath,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.History.Len())
	for ii, record := range result.History.Records {
		require.Equal(t, ii, record.Epoch)
		require.InDelta(t, 0.01, record.LearningRate, 1e-9)
		require.False(t, math.IsNaN(record.ValidationLoss), "validation loss is NaN")
	}
	require.True(t, result.History.Records[0].Saved, "first epoch always improves")
	best, found := result.History.Best()
	require.True(t, found)
	require.Equal(t, best.Epoch, result.Checkpoint.BestEpoch())

	// 12 images, 9 for training in batches of 4 (the last one partial), for 2 epochs.
	require.Equal(t, int64(6), optimizers.GetGlobalStep(result.Context))

	_, err = os.Stat(filepath.Join(checkpointDir, HistoryFileName))
	require.NoError(t, err)
	_, err = os.Stat(plotPath)
	require.NoError(t, err)

	// Resuming continues after the best epoch, keeping its history.
	resumed, err := TrainModel(smallTrainingContext(3), backend, TrainConfig{
		TrainDir:      trainDir,
		CheckpointDir: checkpointDir,
		Resume:        true,
	})
	require.NoError(t, err)
	require.Equal(t, 3, resumed.History.Len())
	for ii, record := range resumed.History.Records {
		require.Equal(t, ii, record.Epoch)
	}
	require.Equal(t, result.History.Records[best.Epoch], resumed.History.Records[best.Epoch])
	saved, err := history.LoadJSON(filepath.Join(checkpointDir, HistoryFileName))
	require.NoError(t, err)
	require.Equal(t, resumed.History.Len(), saved.Len())
}

func TestTrainModelErrors(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	trainDir := createTrainDir(t, []string{"00003"}, 2)

	ctx := smallTrainingContext(1)
	ctx.SetParam("batch_size", 0)
	_, err := TrainModel(ctx, backend, TrainConfig{TrainDir: trainDir, CheckpointDir: t.TempDir()})
	require.Error(t, err)

	_, err = TrainModel(smallTrainingContext(1), backend, TrainConfig{TrainDir: t.TempDir(), CheckpointDir: t.TempDir()})
	require.ErrorIs(t, err, ErrNoImages)

	// A single image leaves nothing for training.
	oneImageDir := createTrainDir(t, []string{"00003"}, 1)
	_, err = TrainModel(smallTrainingContext(1), backend, TrainConfig{TrainDir: oneImageDir, CheckpointDir: t.TempDir()})
	require.Error(t, err)
}
