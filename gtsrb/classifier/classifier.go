// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package classifier is a GTSRB traffic-sign classifier.
// It either loads a trained model from a checkpoint, or uses the weights of a context just trained,
// and offers Classify to classify any image: it is first preprocessed to the model's input.
package classifier

import (
	"image"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/tsrkit/trafficsigns/gtsrb"
)

// Classifier holds the traffic-sign model compiled.
type Classifier struct {
	backend backends.Backend

	// ctx with the model's weights.
	ctx *context.Context

	// exec returns the classes and the probabilities for a batch of images.
	exec *context.Exec
}

// Load creates a Classifier with the model saved in checkpointDir.
// All hyperparameters are read from the checkpoint as well, so it builds the same model.
func Load(backend backends.Backend, checkpointDir string) (*Classifier, error) {
	ctx := context.New()
	// We don't need to keep the checkpoint handler around, since we are not going to use it to save.
	_, err := checkpoints.Load(ctx).Dir(checkpointDir).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed while loading traffic-sign model from %q", checkpointDir)
	}
	return New(backend, ctx.In("model"))
}

// New creates a Classifier using the model variables in ctx, which should be the scope used for training
// (see gtsrb.TrainModel, it uses the "model" scope).
func New(backend backends.Backend, ctx *context.Context) (*Classifier, error) {
	c := &Classifier{
		backend: backend,
		ctx:     ctx.Reuse(), // It will be an error to create a new variable.
	}
	var err error
	c.exec, err = context.NewExec(c.backend, c.ctx, func(ctx *context.Context, images *graph.Node) (classes, probabilities *graph.Node) {
		logits := gtsrb.ModelGraph(ctx, nil, []*graph.Node{images})[0]
		probabilities = graph.Softmax(logits, -1)
		classes = graph.ArgMax(logits, -1, dtypes.Int32)
		return
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create model executor")
	}
	return c, nil
}

// Predict returns the classes and the probabilities of each class for the batch of images, shaped
// [batchSize, gtsrb.NumChannels, gtsrb.ImageSize, gtsrb.ImageSize].
func (c *Classifier) Predict(images *tensors.Tensor) (classes, probabilities *tensors.Tensor, err error) {
	if e := exceptions.TryCatch[error](func() {
		classes, probabilities, err = c.exec.Exec2(images)
	}); e != nil {
		return nil, nil, e
	}
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "classifying images shaped %s", images.Shape())
	}
	return classes, probabilities, nil
}

// PredictBatch returns the predicted class for each image in the batch. It implements gtsrb.Predictor.
func (c *Classifier) PredictBatch(images *tensors.Tensor) ([]int, error) {
	classes, probabilities, err := c.Predict(images)
	if err != nil {
		return nil, err
	}
	defer func() { _ = probabilities.FinalizeAll() }()
	defer func() { _ = classes.FinalizeAll() }()
	flat := tensors.MustCopyFlatData[int32](classes)
	predictions := make([]int, len(flat))
	for ii, class := range flat {
		predictions[ii] = int(class)
	}
	return predictions, nil
}

// Classify preprocesses the image and returns its class, from 0 to gtsrb.NumClasses-1, and its probability.
func (c *Classifier) Classify(img image.Image) (classID int, probability float32, err error) {
	values, err := gtsrb.Preprocess(img)
	if err != nil {
		return 0, 0, err
	}
	input := tensors.FromFlatDataAndDimensions(values, 1, gtsrb.NumChannels, gtsrb.ImageSize, gtsrb.ImageSize)
	classes, probabilities, err := c.Predict(input)
	if err != nil {
		return 0, 0, err
	}
	classID = int(tensors.MustCopyFlatData[int32](classes)[0])
	probability = tensors.MustCopyFlatData[float32](probabilities)[classID]
	return classID, probability, nil
}
