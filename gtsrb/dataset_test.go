// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"io"
	"math/rand"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

// constantSample returns a sample whose pixels are all set to value.
func constantSample(value float32, label int) Sample {
	image := make([]float32, ImageNumValues)
	for ii := range image {
		image[ii] = value
	}
	return Sample{Image: image, Label: label}
}

func TestOneHotLabels(t *testing.T) {
	got, err := OneHotLabels([]int{0, 2}, NumClasses)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for ii, label := range []int{0, 2} {
		require.Len(t, got[ii], NumClasses)
		var sum float32
		for class, value := range got[ii] {
			sum += value
			if class == label {
				require.Equal(t, float32(1), value)
			}
		}
		require.Equal(t, float32(1), sum, "row %d must have a single 1", ii)
	}

	got, err = OneHotLabels([]int{0, 2}, 3)
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0, 0}, {0, 0, 1}}, got)

	_, err = OneHotLabels([]int{0, NumClasses}, NumClasses)
	require.Error(t, err)
	_, err = OneHotLabels([]int{-1}, NumClasses)
	require.Error(t, err)
}

func TestAssemble(t *testing.T) {
	samples := []Sample{constantSample(0.25, 1), constantSample(0.75, 42), constantSample(0, 0)}
	arrays, err := Assemble(samples)
	require.NoError(t, err)
	require.Equal(t, 3, arrays.Count())
	require.Equal(t, dtypes.Float32, arrays.Images.DType())
	require.Equal(t, []int{3, NumChannels, ImageSize, ImageSize}, arrays.Images.Shape().Dimensions)
	require.Equal(t, dtypes.Float32, arrays.Labels.DType())
	require.Equal(t, []int{3, NumClasses}, arrays.Labels.Shape().Dimensions)

	images := tensors.MustCopyFlatData[float32](arrays.Images)
	require.Equal(t, float32(0.25), images[0])
	require.Equal(t, float32(0.75), images[ImageNumValues])
	labels := tensors.MustCopyFlatData[float32](arrays.Labels)
	require.Equal(t, float32(1), labels[1])
	require.Equal(t, float32(1), labels[NumClasses+42])
	require.Equal(t, float32(1), labels[2*NumClasses])
	var sum float32
	for _, v := range labels {
		sum += v
	}
	require.Equal(t, float32(3), sum)

	_, err = Assemble(nil)
	require.Error(t, err)
	_, err = Assemble([]Sample{{Image: make([]float32, 10)}})
	require.Error(t, err)
	_, err = Assemble([]Sample{constantSample(0, NumClasses)})
	require.Error(t, err)
}

func TestSplitValidation(t *testing.T) {
	samples := make([]Sample, 10)
	for ii := range samples {
		samples[ii].Label = ii
	}
	train, validation, err := SplitValidation(samples, 0.2)
	require.NoError(t, err)
	require.Len(t, train, 8)
	require.Len(t, validation, 2)
	// Validation is taken from the end.
	require.Equal(t, 8, validation[0].Label)
	require.Equal(t, 9, validation[1].Label)

	train, validation, err = SplitValidation(samples, 0)
	require.NoError(t, err)
	require.Len(t, train, 10)
	require.Empty(t, validation)

	_, _, err = SplitValidation(samples, 1)
	require.Error(t, err)
	_, _, err = SplitValidation(samples, -0.1)
	require.Error(t, err)
}

func TestCreateDatasets(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	var samples []Sample
	for ii := range 10 {
		samples = append(samples, constantSample(float32(ii)/10, ii))
	}
	trainSamples, validationSamples, err := SplitValidation(samples, 0.2)
	require.NoError(t, err)
	trainDS, validationDS, err := CreateDatasets(backend, trainSamples, validationSamples, 4, 16, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	require.NotNil(t, validationDS)

	// Partial batches are kept: 8 examples in batches of 4.
	numBatches := 0
	for {
		_, inputs, labels, err := trainDS.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, []int{4, NumChannels, ImageSize, ImageSize}, inputs[0].Shape().Dimensions)
		require.Equal(t, []int{4, NumClasses}, labels[0].Shape().Dimensions)
		numBatches++
	}
	require.Equal(t, 2, numBatches)

	_, inputs, _, err := validationDS.Yield()
	require.NoError(t, err)
	require.Equal(t, 2, inputs[0].Shape().Dimensions[0])

	_, validationDS, err = CreateDatasets(backend, trainSamples, nil, 4, 16, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	require.Nil(t, validationDS)

	_, _, err = CreateDatasets(backend, trainSamples, nil, 0, 16, nil)
	require.Error(t, err)
}
