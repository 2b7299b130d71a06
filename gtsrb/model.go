// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

const (
	// ParamConvDropout is the dropout rate after each convolution stage. Default is 0.2.
	ParamConvDropout = "conv_dropout"

	// ParamDenseDropout is the dropout rate before the last dense layer. Default is 0.5.
	ParamDenseDropout = "dense_dropout"
)

// convStagesChannels is the number of channels of each of the convolution stages.
var convStagesChannels = []int{32, 64, 128}

// ModelGraph implements train.ModelFn, and returns the logits for the NumClasses classes, given the
// batch of images shaped [batchSize, NumChannels, ImageSize, ImageSize].
//
// Each convolution stage is a 3x3 convolution with padding, a 3x3 convolution without padding,
// a 2x2 max-pooling and dropout. Dropout is only active during training.
func ModelGraph(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
	_ = spec
	batchedImages := inputs[0]
	g := batchedImages.Graph()
	dtype := batchedImages.DType()
	batchSize := batchedImages.Shape().Dimensions[0]
	batchedImages.AssertDims(batchSize, NumChannels, ImageSize, ImageSize)
	logits := batchedImages

	layerIdx := 0
	nextCtx := func(name string) *context.Context {
		newCtx := ctx.Inf("%03d_%s", layerIdx, name)
		layerIdx++
		return newCtx
	}

	convDropout := graph.Scalar(g, dtype, context.GetParamOr(ctx, ParamConvDropout, 0.2))
	spatial := ImageSize
	for _, channels := range convStagesChannels {
		logits = layers.Convolution(nextCtx("conv"), logits).
			Channels(channels).KernelSize(3).PadSame().ChannelsAxis(images.ChannelsFirst).Done()
		logits = activations.Relu(logits)
		logits = layers.Convolution(nextCtx("conv"), logits).
			Channels(channels).KernelSize(3).NoPadding().ChannelsAxis(images.ChannelsFirst).Done()
		logits = activations.Relu(logits)
		logits = graph.MaxPool(logits).ChannelsAxis(images.ChannelsFirst).Window(2).Done()
		logits = layers.DropoutNormalize(nextCtx("dropout"), logits, convDropout, true)
		spatial = (spatial - 2) / 2
		logits.AssertDims(batchSize, channels, spatial, spatial)
	}

	logits = graph.Reshape(logits, batchSize, -1)
	logits = layers.Dense(nextCtx("dense"), logits, true, 512)
	logits = activations.Relu(logits)
	denseDropout := graph.Scalar(g, dtype, context.GetParamOr(ctx, ParamDenseDropout, 0.5))
	logits = layers.DropoutNormalize(nextCtx("dropout"), logits, denseDropout, true)
	logits = layers.Dense(nextCtx("dense"), logits, true, NumClasses)
	logits.AssertDims(batchSize, NumClasses)
	return []*graph.Node{logits}
}
