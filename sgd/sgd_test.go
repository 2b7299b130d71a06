// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sgd

import (
	"testing"

	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/stretchr/testify/require"
)

// runSteps minimizes loss=3*w, starting from w=1, and returns w after each step.
// The gradient is constant, so the velocity accumulates predictably.
func runSteps(t *testing.T, ctx *context.Context, opt optimizers.Interface, numSteps int) []float32 {
	backend := graphtest.BuildTestBackend()
	w := ctx.In("linear").VariableWithValue("w", float32(1))
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		loss := MulScalar(w.ValueGraph(g), 3)
		opt.UpdateGraph(ctx, g, loss)
		return loss
	})
	values := make([]float32, numSteps)
	for ii := range values {
		_ = exec.MustExec()
		values[ii] = tensors.ToScalar[float32](w.MustValue())
	}
	return values
}

func TestSGD(t *testing.T) {
	t.Run("Nesterov", func(t *testing.T) {
		opt := New().LearningRate(0.1).Momentum(0.5).Decay(0).Done()
		got := runSteps(t, context.New(), opt, 2)
		require.InDeltaSlice(t, []float32{0.55, 0.025}, got, 1e-5)
	})

	t.Run("ClassicMomentum", func(t *testing.T) {
		opt := New().LearningRate(0.1).Momentum(0.5).Nesterov(false).Decay(0).Done()
		got := runSteps(t, context.New(), opt, 2)
		require.InDeltaSlice(t, []float32{0.7, 0.25}, got, 1e-5)
	})

	t.Run("NoMomentum", func(t *testing.T) {
		ctx := context.New()
		opt := New().LearningRate(0.1).Momentum(0).Decay(0).Done()
		got := runSteps(t, ctx, opt, 2)
		require.InDeltaSlice(t, []float32{0.7, 0.4}, got, 1e-5)
		for v := range ctx.IterVariables() {
			require.NotContains(t, v.Name(), "_velocity")
		}
	})

	t.Run("Decay", func(t *testing.T) {
		// Learning rate at step t is 0.1/(1+t): 0.1 and then 0.05.
		opt := New().LearningRate(0.1).Momentum(0).Decay(1).Done()
		got := runSteps(t, context.New(), opt, 2)
		require.InDeltaSlice(t, []float32{0.7, 0.55}, got, 1e-5)
	})

	t.Run("LearningRateFromContext", func(t *testing.T) {
		ctx := context.New()
		ctx.SetParams(map[string]any{
			optimizers.ParamOptimizer:    Name,
			optimizers.ParamLearningRate: 0.1,
			ParamMomentum:                0.0,
			ParamDecay:                   0.0,
		})
		got := runSteps(t, ctx, optimizers.FromContext(ctx), 1)
		require.InDeltaSlice(t, []float32{0.7}, got, 1e-5)
		require.Equal(t, int64(1), optimizers.GetGlobalStep(ctx))

		// The learning rate variable can be changed between steps.
		ctx = context.New()
		ctx.SetParams(map[string]any{ParamMomentum: 0.0, ParamDecay: 0.0})
		opt := New().FromContext(ctx).Done()
		backend := graphtest.BuildTestBackend()
		w := ctx.In("linear").VariableWithValue("w", float32(1))
		exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
			loss := MulScalar(w.ValueGraph(g), 3)
			opt.UpdateGraph(ctx, g, loss)
			return loss
		})
		_ = exec.MustExec() // lr=0.01 (default): w=0.97
		require.NoError(t, optimizers.LearningRateVar(ctx, w.DType(), DefaultLearningRate).SetValue(tensors.FromScalar(float32(0.1))))
		_ = exec.MustExec() // lr=0.1: w=0.67
		require.InDelta(t, float32(0.67), tensors.ToScalar[float32](w.MustValue()), 1e-5)
	})

	t.Run("Clear", func(t *testing.T) {
		ctx := context.New()
		opt := New().LearningRate(0.1).Done()
		_ = runSteps(t, ctx, opt, 1)
		countVelocities := func() (count int) {
			for v := range ctx.IterVariables() {
				if v.Name() == "w_velocity" {
					count++
				}
			}
			return
		}
		require.Equal(t, 1, countVelocities())
		require.NoError(t, opt.Clear(ctx))
		require.Equal(t, 0, countVelocities())
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		require.Panics(t, func() { New().Momentum(1).Done() })
		require.Panics(t, func() { New().Decay(-1).Done() })
	})
}
