// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gtsrb_checkpoint inspects the traffic-sign models saved by gtsrb: it reports the best validation loss,
// the model size, the hyperparameters, the variables and the training history.
//
// If more than one model directory is given, they are reported side by side and differing
// hyperparameters are highlighted.
//
// Usage:
//
//	gtsrb_checkpoint [flags] <model_dir> [<model_dir>...]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagScope = flag.String("scope", "/model", "Scope of the model variables considered by --summary and --vars.")

	flagSummary = flag.Bool("summary", true, "Display a summary: best validation loss and epoch, global step and model size.")
	flagParams  = flag.Bool("params", false, "Lists the hyperparameters.")
	flagVars    = flag.Bool("vars", false, "Lists the variables under --scope, with statistics of their values.")
	flagHistory = flag.Bool("history", false, "Display the per-epoch training history.")
	flagPlot    = flag.String("plot", "", "Plot the training curves of the first model to the given PNG file.")
	flagStrip   = flag.Bool("strip", false, "Remove the optimizer state (the SGD velocities) and save a new checkpoint. "+
		"The model can still be evaluated, but resumed training restarts the momentum.")
)

var titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	dirs := flag.Args()
	if len(dirs) == 0 {
		klog.Errorf("Missing model directory to read from. See 'gtsrb_checkpoint -help'")
		os.Exit(1)
	}

	if *flagStrip {
		for _, dir := range dirs {
			numDeleted := must.M1(StripOptimizer(dir))
			fmt.Printf("%s: %d optimizer variables deleted, new checkpoint saved.\n", dir, numDeleted)
		}
	}

	ctxs := make([]*context.Context, len(dirs))
	scopedCtxs := make([]*context.Context, len(dirs))
	names := make([]string, len(dirs))
	for ii, dir := range dirs {
		ctxs[ii] = context.New()
		_ = must.M1(checkpoints.Load(ctxs[ii]).Dir(dir).Immediate().Done())
		scopedCtxs[ii] = ctxs[ii]
		if *flagScope != "" {
			scopedCtxs[ii] = ctxs[ii].InAbsPath(*flagScope)
		}
		names[ii] = filepath.Base(dir)
	}

	if *flagSummary {
		Summary(ctxs, scopedCtxs, names)
	}
	if *flagParams {
		Params(ctxs, names)
	}
	if *flagVars {
		for _, scopedCtx := range scopedCtxs {
			ListVariables(scopedCtx)
		}
	}
	if *flagHistory || *flagPlot != "" {
		for ii, dir := range dirs {
			if *flagHistory {
				ReportHistory(dir, names[ii])
			}
			if ii == 0 && *flagPlot != "" {
				PlotHistory(dir, *flagPlot)
			}
		}
	}
}
