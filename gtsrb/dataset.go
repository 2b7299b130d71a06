// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"math/rand"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/pkg/errors"
)

// Sample is one preprocessed image and its class.
type Sample struct {
	// Image holds ImageNumValues values organized as [NumChannels, ImageSize, ImageSize].
	Image []float32

	// Label is the class id, from 0 to NumClasses-1.
	Label int
}

// OneHotLabels encodes the labels as rows of numClasses values, all 0 except a 1 at the label column.
func OneHotLabels(labels []int, numClasses int) ([][]float32, error) {
	rows := make([][]float32, len(labels))
	for ii, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, errors.Errorf("label #%d is %d, out of range [0, %d)", ii, label, numClasses)
		}
		rows[ii] = make([]float32, numClasses)
		rows[ii][label] = 1
	}
	return rows, nil
}

// Arrays holds the stacked samples ready to be fed to the model.
type Arrays struct {
	// Images shaped [count, NumChannels, ImageSize, ImageSize], dtype Float32.
	Images *tensors.Tensor

	// Labels one-hot encoded, shaped [count, NumClasses], dtype Float32.
	Labels *tensors.Tensor
}

// Count of examples.
func (a *Arrays) Count() int {
	return a.Images.Shape().Dimensions[0]
}

// Assemble stacks the samples into an images tensor and a one-hot labels tensor.
func Assemble(samples []Sample) (*Arrays, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples to assemble")
	}
	count := len(samples)
	flatImages := make([]float32, 0, count*ImageNumValues)
	labels := make([]int, count)
	for ii, sample := range samples {
		if len(sample.Image) != ImageNumValues {
			return nil, errors.Errorf("sample #%d has %d values, expected %d (%dx%dx%d)",
				ii, len(sample.Image), ImageNumValues, NumChannels, ImageSize, ImageSize)
		}
		flatImages = append(flatImages, sample.Image...)
		labels[ii] = sample.Label
	}
	oneHot, err := OneHotLabels(labels, NumClasses)
	if err != nil {
		return nil, err
	}
	flatLabels := make([]float32, 0, count*NumClasses)
	for _, row := range oneHot {
		flatLabels = append(flatLabels, row...)
	}
	return &Arrays{
		Images: tensors.FromFlatDataAndDimensions(flatImages, count, NumChannels, ImageSize, ImageSize),
		Labels: tensors.FromFlatDataAndDimensions(flatLabels, count, NumClasses),
	}, nil
}

// SplitValidation holds out the last fraction of the samples for validation.
// The samples are expected to be already shuffled.
func SplitValidation(samples []Sample, fraction float64) (train, validation []Sample, err error) {
	if fraction < 0 || fraction >= 1 {
		return nil, nil, errors.Errorf("validation fraction must be in [0, 1), got %g", fraction)
	}
	numTrain := int(float64(len(samples)) * (1 - fraction))
	return samples[:numTrain], samples[numTrain:], nil
}

// CreateDatasets for training and evaluation.
//
// The training dataset is shuffled every epoch with rng, and loops over the data once per epoch.
// The validation dataset is nil if there are no validation samples.
func CreateDatasets(backend backends.Backend, trainSamples, validationSamples []Sample,
	batchSize, evalBatchSize int, rng *rand.Rand) (trainDS, validationDS *datasets.InMemoryDataset, err error) {
	if batchSize <= 0 || evalBatchSize <= 0 {
		return nil, nil, errors.Errorf("batch sizes must be > 0, got batch_size=%d and eval_batch_size=%d",
			batchSize, evalBatchSize)
	}
	trainDS, err = NewInMemoryDataset(backend, "Training", trainSamples)
	if err != nil {
		return nil, nil, err
	}
	trainDS = trainDS.BatchSize(batchSize, false).Shuffle().WithRand(rng)
	if len(validationSamples) > 0 {
		validationDS, err = NewInMemoryDataset(backend, "Validation", validationSamples)
		if err != nil {
			return nil, nil, err
		}
		validationDS = validationDS.BatchSize(evalBatchSize, false)
	}
	return
}

// NewInMemoryDataset assembles the samples and uploads them into a datasets.InMemoryDataset that yields
// images and one-hot labels. It is not batched.
func NewInMemoryDataset(backend backends.Backend, name string, samples []Sample) (*datasets.InMemoryDataset, error) {
	arrays, err := Assemble(samples)
	if err != nil {
		return nil, errors.WithMessagef(err, "assembling dataset %q", name)
	}
	mds, err := datasets.InMemoryFromData(backend, name, []any{arrays.Images}, []any{arrays.Labels})
	if err != nil {
		return nil, errors.WithMessagef(err, "creating dataset %q", name)
	}
	return mds, nil
}
