// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Predictor returns the predicted class for each image of a batch shaped [batchSize, NumChannels, ImageSize, ImageSize].
// It is implemented by classifier.Classifier.
type Predictor interface {
	PredictBatch(images *tensors.Tensor) ([]int, error)
}

// Result of an evaluation.
type Result struct {
	Correct, Total int
}

// Accuracy is the fraction of correct predictions.
func (r Result) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

// Evaluate predicts the class of all samples, in batches of batchSize, and counts how many match their labels.
func Evaluate(predictor Predictor, samples []Sample, batchSize int) (Result, error) {
	var result Result
	if len(samples) == 0 {
		return result, errors.New("no samples to evaluate")
	}
	if batchSize <= 0 {
		return result, errors.Errorf("batch size must be > 0, got %d", batchSize)
	}
	for start := 0; start < len(samples); start += batchSize {
		batch := samples[start:min(start+batchSize, len(samples))]
		flat := make([]float32, 0, len(batch)*ImageNumValues)
		for ii, sample := range batch {
			if len(sample.Image) != ImageNumValues {
				return result, errors.Errorf("sample #%d has %d values, expected %d", start+ii, len(sample.Image), ImageNumValues)
			}
			flat = append(flat, sample.Image...)
		}
		images := tensors.FromFlatDataAndDimensions(flat, len(batch), NumChannels, ImageSize, ImageSize)
		predictions, err := predictor.PredictBatch(images)
		if err != nil {
			return result, errors.WithMessagef(err, "predicting batch starting at sample #%d", start)
		}
		if len(predictions) != len(batch) {
			return result, errors.Errorf("got %d predictions for a batch of %d", len(predictions), len(batch))
		}
		for ii, prediction := range predictions {
			if prediction == batch[ii].Label {
				result.Correct++
			}
		}
		result.Total += len(batch)
	}
	return result, nil
}

// ReportAccuracy writes the accuracy in the format "Test accuracy = <value>".
func ReportAccuracy(w io.Writer, result Result) error {
	_, err := fmt.Fprintf(w, "Test accuracy = %v\n", result.Accuracy())
	return err
}
