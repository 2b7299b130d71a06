// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
)

// CategoricalAccuracyGraph returns the fraction of examples where argmax(logits) matches argmax(labels),
// for one-hot encoded labels. Ties are resolved to the first maximum.
func CategoricalAccuracyGraph(_ *context.Context, labels, logits []*Node) *Node {
	labels0, logits0 := labels[0], logits[0]
	if !labels0.Shape().Equal(logits0.Shape()) {
		exceptions.Panicf("one-hot labels (%s) and logits (%s) must have the same shape",
			labels0.Shape(), logits0.Shape())
	}
	g := logits0.Graph()
	correctExamples := ConvertDType(
		Equal(ArgMax(logits0, -1), ArgMax(labels0, -1)),
		logits0.DType())
	count := Scalar(g, logits0.DType(), float64(correctExamples.Shape().Size()))
	return Div(ReduceAllSum(correctExamples), count)
}

func accuracyPrettyPrint(value *tensors.Tensor) string {
	return fmt.Sprintf("%.2f%%", shapes.ConvertTo[float64](value.Value())*100.0)
}

// NewCategoricalAccuracy returns the mean accuracy over all evaluated examples.
func NewCategoricalAccuracy(name, shortName string) *metrics.MeanMetric {
	return metrics.NewMeanMetric(name, shortName, metrics.AccuracyMetricType, CategoricalAccuracyGraph, accuracyPrettyPrint)
}

// NewMovingAverageCategoricalAccuracy returns the exponential moving average of the accuracy, used during training.
func NewMovingAverageCategoricalAccuracy(name, shortName string, newExampleWeight float64) metrics.Interface {
	return metrics.NewExponentialMovingAverageMetric(name, shortName, metrics.AccuracyMetricType,
		CategoricalAccuracyGraph, accuracyPrettyPrint, newExampleWeight)
}
