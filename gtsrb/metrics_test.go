// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"testing"

	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/stretchr/testify/require"
)

func TestCategoricalAccuracy(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	exec := context.MustNewExec(backend, context.New(), func(ctx *context.Context, labels, logits *Node) *Node {
		return CategoricalAccuracyGraph(ctx, []*Node{labels}, []*Node{logits})
	})
	labels := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0, 0, 1}}
	logits := [][]float32{{5, 1, 0}, {0, 0, 3}, {-1, -2, 0}, {2, 1, 0}}
	accuracy := exec.MustExec1(labels, logits)
	require.InDelta(t, 0.5, tensors.ToScalar[float32](accuracy), 1e-6)
	require.Equal(t, "50.00%", accuracyPrettyPrint(accuracy))

	require.Equal(t, metrics.AccuracyMetricType, NewCategoricalAccuracy("Mean Accuracy", "#acc").MetricType())
	require.Equal(t, "~acc", NewMovingAverageCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01).ShortName())
}
