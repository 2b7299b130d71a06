// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/tsrkit/trafficsigns/bestcheckpoint"
	"github.com/tsrkit/trafficsigns/history"
)

// Summary prints one column per model: its best validation loss and epoch, the global step and the
// number of variables, parameters and bytes under the scoped context.
func Summary(ctxs, scopedCtxs []*context.Context, names []string) {
	numCheckpoints := len(names)
	fmt.Println(titleStyle.Render("Summary"))
	table := history.NewTable(append([]string{"model"}, names...)...).Align(lipgloss.Right, lipgloss.Left)

	newRow := func(title string) []string {
		row := make([]string, numCheckpoints+1)
		row[0] = title
		return row
	}
	bestLossRow, bestEpochRow, globalStepRow := newRow("best validation loss"), newRow("best epoch"), newRow("global step")
	for ii, ctx := range ctxs {
		if v := ctx.GetVariableByScopeAndName(bestcheckpoint.Scope, bestcheckpoint.LossVariableName); v != nil {
			loss := tensors.ToScalar[float64](v.MustValue())
			if !math.IsInf(loss, 1) {
				bestLossRow[ii+1] = fmt.Sprintf("%.5g", loss)
			}
		}
		if v := ctx.GetVariableByScopeAndName(bestcheckpoint.Scope, bestcheckpoint.EpochVariableName); v != nil {
			if epoch := tensors.ToScalar[int64](v.MustValue()); epoch >= 0 {
				bestEpochRow[ii+1] = humanize.Comma(epoch)
			}
		}
		if v := ctx.GetVariableByScopeAndName(*flagScope, optimizers.GlobalStepVariableName); v != nil {
			globalStepRow[ii+1] = humanize.Comma(tensors.ToScalar[int64](v.MustValue()))
		}
	}
	table.Row(false, bestLossRow...)
	table.Row(false, bestEpochRow...)
	table.Row(false, globalStepRow...)

	variablesRow, parametersRow, memoryRow := newRow("# variables"), newRow("# parameters"), newRow("# bytes")
	for ii, scopedCtx := range scopedCtxs {
		var numVars, totalSize int
		var totalMemory uintptr
		for v := range scopedCtx.IterVariablesInScope() {
			if !v.Trainable {
				continue
			}
			numVars++
			totalSize += v.Shape().Size()
			totalMemory += v.Shape().Memory()
		}
		variablesRow[ii+1] = humanize.Comma(int64(numVars))
		parametersRow[ii+1] = humanize.Comma(int64(totalSize))
		memoryRow[ii+1] = humanize.Bytes(uint64(totalMemory))
	}
	table.Row(false, variablesRow...)
	table.Row(false, parametersRow...)
	table.Row(false, memoryRow...)
	fmt.Println(table)
}
