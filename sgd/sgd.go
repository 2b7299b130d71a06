// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sgd implements stochastic gradient descent with momentum, optional Nesterov acceleration and
// a time-based learning rate decay.
//
// At training step t (starting from 0), with base learning rate lr, momentum μ and decay d:
//
//	lr_t = lr / (1 + d*t)
//	v    = μ*v - lr_t*gradient
//	w    = w + μ*v - lr_t*gradient  // Nesterov
//	w    = w + v                     // Classic momentum
//
// The base learning rate is read from the optimizers.LearningRateVar every step, so it can be changed
// between steps by a learning rate schedule.
//
// It is registered in optimizers.KnownOptimizers as "sgd_momentum", so it can be selected with the
// "optimizer" hyperparameter.
package sgd

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/initializers"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gopjrt/dtypes"
)

const (
	// Name under which the optimizer is registered in optimizers.KnownOptimizers.
	Name = "sgd_momentum"

	// DefaultScope where the velocity variables are stored.
	DefaultScope = "SGDMomentum"

	// DefaultLearningRate used if none is configured.
	DefaultLearningRate = 0.01

	// DefaultMomentum used if none is configured.
	DefaultMomentum = 0.9

	// DefaultDecay used if none is configured.
	DefaultDecay = 1e-6
)

var (
	// ParamMomentum is the context hyperparameter for the momentum. Default is DefaultMomentum.
	ParamMomentum = "sgd_momentum"

	// ParamNesterov is the context hyperparameter to enable Nesterov acceleration. Default is true.
	ParamNesterov = "sgd_nesterov"

	// ParamDecay is the context hyperparameter for the time-based learning rate decay. Default is DefaultDecay.
	ParamDecay = "sgd_decay"
)

func init() {
	optimizers.KnownOptimizers[Name] = func(ctx *context.Context) optimizers.Interface {
		return New().FromContext(ctx).Done()
	}
}

// Config for the optimizer, created with New.
type Config struct {
	learningRate float64
	momentum     float64
	decay        float64
	nesterov     bool
	scopeName    string
}

// New returns a configuration with the default values, which can be further configured.
// Call Done when finished configuring.
func New() *Config {
	return &Config{
		learningRate: -1, // Read from the context.
		momentum:     DefaultMomentum,
		decay:        DefaultDecay,
		nesterov:     true,
		scopeName:    DefaultScope,
	}
}

// FromContext reads the hyperparameters ParamMomentum, ParamNesterov and ParamDecay from the context.
func (c *Config) FromContext(ctx *context.Context) *Config {
	c.momentum = context.GetParamOr(ctx, ParamMomentum, c.momentum)
	c.nesterov = context.GetParamOr(ctx, ParamNesterov, c.nesterov)
	c.decay = context.GetParamOr(ctx, ParamDecay, c.decay)
	return c
}

// LearningRate sets the initial learning rate. If not set, it is read from the context parameter
// optimizers.ParamLearningRate, and defaults to DefaultLearningRate.
func (c *Config) LearningRate(value float64) *Config {
	c.learningRate = value
	return c
}

// Momentum sets the momentum. 0 disables it.
func (c *Config) Momentum(value float64) *Config {
	c.momentum = value
	return c
}

// Nesterov enables or disables Nesterov acceleration.
func (c *Config) Nesterov(enabled bool) *Config {
	c.nesterov = enabled
	return c
}

// Decay sets the time-based learning rate decay. 0 disables it.
func (c *Config) Decay(value float64) *Config {
	c.decay = value
	return c
}

// Scope sets the scope name where the velocity variables are stored.
func (c *Config) Scope(name string) *Config {
	c.scopeName = name
	return c
}

// Done returns the configured optimizer.
func (c *Config) Done() optimizers.Interface {
	if c.momentum < 0 || c.momentum >= 1 {
		exceptions.Panicf("sgd: momentum must be in [0, 1), got %g", c.momentum)
	}
	if c.decay < 0 {
		exceptions.Panicf("sgd: decay must be >= 0, got %g", c.decay)
	}
	return &optimizer{config: *c}
}

type optimizer struct {
	config Config
}

// UpdateGraph implements optimizers.Interface.
func (o *optimizer) UpdateGraph(ctx *context.Context, g *Graph, loss *Node) {
	if !loss.Shape().IsScalar() {
		exceptions.Panicf("optimizer requires a scalar loss to optimize, got loss.shape=%s instead", loss.Shape())
	}
	grads := ctx.BuildTrainableVariablesGradientsGraph(loss)
	if len(grads) == 0 {
		exceptions.Panicf("sgd: context has no trainable variables")
	}
	dtype := loss.DType()

	initialLearningRate := o.config.learningRate
	if initialLearningRate <= 0 {
		initialLearningRate = context.GetParamOr(ctx, optimizers.ParamLearningRate, DefaultLearningRate)
	}
	learningRate := optimizers.LearningRateVar(ctx, dtype, initialLearningRate).ValueGraph(g)

	// The global step returned is already incremented, so the first step is 1.
	globalStep := optimizers.IncrementGlobalStepGraph(ctx, g, dtype)
	if o.config.decay > 0 {
		iteration := AddScalar(globalStep, -1)
		learningRate = Div(learningRate, OnePlus(MulScalar(iteration, o.config.decay)))
	}
	momentum := Scalar(g, dtype, o.config.momentum)

	varIdx := 0
	for v := range ctx.IterVariables() {
		if !v.Trainable || !v.InUseByGraph(g) {
			continue
		}
		if varIdx >= len(grads) {
			varIdx++
			continue
		}
		o.applyGraph(ctx, g, v, dtype, grads[varIdx], learningRate, momentum)
		varIdx++
	}
	if varIdx != len(grads) {
		exceptions.Panicf("Context.BuildTrainableVariablesGradientsGraph returned gradients for %d variables, but "+
			"sgd only sees %d variables -- were new variables created in between ?", len(grads), varIdx)
	}
}

// applyGraph updates the velocity and the variable for one trainable variable.
func (o *optimizer) applyGraph(ctx *context.Context, g *Graph, v *context.Variable, dtype dtypes.DType,
	grad, learningRate, momentum *Node) {
	if grad.DType() != dtype {
		grad = ConvertDType(grad, dtype)
	}
	optimizers.TraceNaNInGradients(ctx, v, grad)
	grad = optimizers.ClipNaNsInGradients(ctx, grad)
	scaledGrad := Mul(learningRate, grad)

	value := v.ValueGraph(g)
	if value.DType() != dtype {
		value = ConvertDType(value, dtype)
	}
	var step *Node
	if o.config.momentum == 0 {
		step = Neg(scaledGrad)
	} else {
		velocityVar := o.velocityVariable(ctx, v, dtype)
		velocity := Sub(Mul(momentum, velocityVar.ValueGraph(g)), scaledGrad)
		velocityVar.SetValueGraph(velocity)
		if o.config.nesterov {
			step = Sub(Mul(momentum, velocity), scaledGrad)
		} else {
			step = velocity
		}
	}
	step = optimizers.ClipStepByValue(ctx, step)

	updated := Add(value, step)
	updated = optimizers.ClipNaNsInUpdates(ctx, value, updated)
	if v.DType() != dtype {
		updated = ConvertDType(updated, v.DType())
	}
	v.SetValueGraph(updated)
}

// velocityVariable returns the velocity variable for the trainable variable, creating it (zero initialized)
// if it doesn't exist yet.
func (o *optimizer) velocityVariable(ctx *context.Context, trainable *context.Variable, dtype dtypes.DType) *context.Variable {
	scopePath := fmt.Sprintf("%s%s%s", context.ScopeSeparator, o.config.scopeName, trainable.Scope())
	shape := trainable.Shape().Clone()
	shape.DType = dtype
	return ctx.Checked(false).
		InAbsPath(scopePath).
		WithInitializer(initializers.Zero).
		VariableWithShape(trainable.Name()+"_velocity", shape).
		SetTrainable(false)
}

// Clear deletes the velocity variables.
// It implements optimizers.Interface.
func (o *optimizer) Clear(ctx *context.Context) error {
	return ctx.InAbsPath(context.ScopeSeparator + o.config.scopeName).DeleteVariablesInScope()
}
