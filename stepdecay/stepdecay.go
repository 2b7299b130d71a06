// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stepdecay implements a learning rate schedule that drops the learning rate by a constant factor
// every fixed number of epochs:
//
//	learning_rate(epoch) = initial * factor^floor(epoch / epochs_per_drop)
//
// The rate is always computed from the initial value, it doesn't compound across calls.
package stepdecay

import (
	"math"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

var (
	// ParamFactor is the context hyperparameter with the factor applied at every drop. Default is 0.1.
	ParamFactor = "step_decay_factor"

	// ParamEpochsPerDrop is the context hyperparameter with the number of epochs between drops. Default is 10.
	// A value <= 0 disables the schedule.
	ParamEpochsPerDrop = "step_decay_epochs"
)

// Schedule of the learning rate per epoch.
type Schedule struct {
	Initial       float64
	Factor        float64
	EpochsPerDrop int
}

// Default schedule: starts at 0.01 and drops by 10x every 10 epochs.
var Default = Schedule{Initial: 0.01, Factor: 0.1, EpochsPerDrop: 10}

// FromContext creates a schedule from the context hyperparameters, using optimizers.ParamLearningRate
// for the initial learning rate.
func FromContext(ctx *context.Context) Schedule {
	return Schedule{
		Initial:       context.GetParamOr(ctx, optimizers.ParamLearningRate, Default.Initial),
		Factor:        context.GetParamOr(ctx, ParamFactor, Default.Factor),
		EpochsPerDrop: context.GetParamOr(ctx, ParamEpochsPerDrop, Default.EpochsPerDrop),
	}
}

// At returns the learning rate for the given epoch, starting from 0.
func (s Schedule) At(epoch int) float64 {
	if s.EpochsPerDrop <= 0 || epoch < 0 {
		return s.Initial
	}
	return s.Initial * math.Pow(s.Factor, float64(epoch/s.EpochsPerDrop))
}

// Apply sets the optimizer's learning rate variable (see optimizers.LearningRateVar) to the rate of the
// given epoch, and returns it. It should be called before the epoch starts training.
func (s Schedule) Apply(ctx *context.Context, dtype dtypes.DType, epoch int) (float64, error) {
	rate := s.At(epoch)
	lrVar := optimizers.LearningRateVar(ctx, dtype, rate)
	if err := lrVar.SetValue(tensors.FromAnyValue(shapes.CastAsDType(rate, dtype))); err != nil {
		return 0, errors.WithMessagef(err, "setting learning rate for epoch %d", epoch)
	}
	return rate, nil
}
