// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path/filepath"

	"github.com/tsrkit/trafficsigns/gtsrb"
	"github.com/tsrkit/trafficsigns/history"
	"k8s.io/klog/v2"
)

func loadHistory(dir string) *history.History {
	path := filepath.Join(dir, gtsrb.HistoryFileName)
	h, err := history.LoadJSON(path)
	if err != nil {
		klog.Errorf("No training history for %q: %v", dir, err)
		return nil
	}
	return h
}

// ReportHistory prints the per-epoch training history saved along the model.
func ReportHistory(dir, name string) {
	h := loadHistory(dir)
	if h == nil {
		return
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Training history of %q", name)))
	fmt.Println(h.Render())
}

// PlotHistory plots the training curves saved along the model.
func PlotHistory(dir, path string) {
	h := loadHistory(dir)
	if h == nil {
		return
	}
	if err := h.SavePlot(path); err != nil {
		klog.Errorf("Failed to plot history of %q: %+v", dir, err)
		return
	}
	fmt.Printf("Training curves of %q plotted to %q\n", dir, path)
}
