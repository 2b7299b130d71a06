// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/tsrkit/trafficsigns/history"
	"github.com/tsrkit/trafficsigns/sgd"
	"gonum.org/v1/gonum/floats"
)

// ListVariables lists the variables in the scope of ctx, with their shape and, for float variables, the
// MAV (mean absolute value), RMS (root-mean-square) and MaxAV (max absolute value) of their values.
func ListVariables(ctx *context.Context) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Variables in scope %q", ctx.Scope())))
	table := history.NewTable("Scope", "Name", "Shape", "Size", "Bytes", "Scalar/MAV", "RMS", "MaxAV").
		Align(lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	var rows [][]string
	for v := range ctx.IterVariablesInScope() {
		if !v.IsValid() {
			rows = append(rows, []string{v.Scope(), v.Name(), "<invalid>", "", "", "", "", ""})
			continue
		}
		shape := v.Shape()
		var mav, rms, maxAV string
		value := v.MustValue()
		if shape.Size() == 1 {
			mav = fmt.Sprintf("%8v", value.Value())
		} else if values, ok := floatValues(value); ok {
			stats := computeStats(values)
			mav = fmt.Sprintf("%.3g", stats.MAV)
			rms = fmt.Sprintf("%.3g", stats.RMS)
			maxAV = fmt.Sprintf("%.3g", stats.MaxAV)
		}
		rows = append(rows, []string{
			v.Scope(), v.Name(), shape.String(),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(shape.Memory())),
			mav, rms, maxAV,
		})
	}
	slices.SortFunc(rows, func(a, b []string) int {
		return cmp.Or(strings.Compare(a[0], b[0]), strings.Compare(a[1], b[1]))
	})
	for _, row := range rows {
		table.Row(false, row...)
	}
	fmt.Println(table)
}

// floatValues returns the values of a float32 or float64 tensor as float64.
func floatValues(t *tensors.Tensor) ([]float64, bool) {
	switch t.DType() {
	case dtypes.Float64:
		return tensors.MustCopyFlatData[float64](t), true
	case dtypes.Float32:
		flat := tensors.MustCopyFlatData[float32](t)
		values := make([]float64, len(flat))
		for ii, v := range flat {
			values[ii] = float64(v)
		}
		return values, true
	default:
		return nil, false
	}
}

// valueStats of a variable.
type valueStats struct {
	MAV, RMS, MaxAV float64
}

func computeStats(values []float64) valueStats {
	if len(values) == 0 {
		return valueStats{}
	}
	n := float64(len(values))
	return valueStats{
		MAV:   floats.Norm(values, 1) / n,
		RMS:   floats.Norm(values, 2) / math.Sqrt(n),
		MaxAV: floats.Norm(values, math.Inf(1)),
	}
}

// StripOptimizer deletes the optimizer velocities from the checkpoint in dir, and saves it again.
// It returns the number of variables deleted.
func StripOptimizer(dir string) (int, error) {
	ctx := context.New()
	checkpoint, err := checkpoints.Load(ctx).Dir(dir).Keep(1).Immediate().Done()
	if err != nil {
		return 0, errors.WithMessagef(err, "loading model from %q", dir)
	}
	scope := context.ScopeSeparator + sgd.DefaultScope
	scopePrefix := scope + context.ScopeSeparator
	var toDelete []*context.Variable
	for v := range ctx.IterVariables() {
		if v.Scope() == scope || strings.HasPrefix(v.Scope(), scopePrefix) {
			toDelete = append(toDelete, v)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	for _, v := range toDelete {
		if err := ctx.DeleteVariable(v.Scope(), v.Name()); err != nil {
			return 0, err
		}
	}
	if err := checkpoint.Save(); err != nil {
		return 0, errors.WithMessagef(err, "saving model to %q", dir)
	}
	return len(toDelete), nil
}
