// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package history

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

func sampleHistory() *History {
	h := &History{}
	h.Add(Record{Epoch: 0, LearningRate: 0.01, TrainLoss: 2.1, TrainAccuracy: 0.4, ValidationLoss: 1.5, ValidationAccuracy: 0.55, Saved: true})
	h.Add(Record{Epoch: 1, LearningRate: 0.01, TrainLoss: 1.2, TrainAccuracy: 0.7, ValidationLoss: 0.8, ValidationAccuracy: 0.81, Saved: true})
	h.Add(Record{Epoch: 2, LearningRate: 0.001, TrainLoss: 0.9, TrainAccuracy: 0.8, ValidationLoss: 0.95, ValidationAccuracy: 0.8})
	return h
}

func TestBest(t *testing.T) {
	h := &History{}
	_, found := h.Best()
	require.False(t, found)

	h.Add(Record{Epoch: 0, ValidationLoss: math.NaN()})
	_, found = h.Best()
	require.False(t, found)

	h = sampleHistory()
	require.Equal(t, 3, h.Len())
	best, found := h.Best()
	require.True(t, found)
	require.Equal(t, 1, best.Epoch)
}

func TestRender(t *testing.T) {
	table := sampleHistory().Render()
	for _, want := range []string{"Epoch", "Valid Loss", "0.8000", "81.00%", "0.001", "*"} {
		require.Contains(t, table, want)
	}
}

func TestTable(t *testing.T) {
	table := NewTable("Name", "Value").Align(lipgloss.Left, lipgloss.Right)
	table.Row(false, "batch_size", "32").Row(true, "learning_rate", "0.01")
	require.Equal(t, 2, table.Len())
	require.False(t, table.Highlighted(0))
	require.True(t, table.Highlighted(1))
	require.False(t, table.Highlighted(2))
	rendered := table.String()
	for _, want := range []string{"Name", "Value", "batch_size", "learning_rate", "0.01"} {
		require.Contains(t, rendered, want)
	}

	// Without headers only the rows are rendered.
	rendered = NewTable().Row(false, "model", "a").String()
	require.Contains(t, rendered, "model")
	require.NotContains(t, rendered, "Name")
}

func TestJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h := sampleHistory()
	require.NoError(t, h.SaveJSON(path))
	loaded, err := LoadJSON(path)
	require.NoError(t, err)
	require.Equal(t, h, loaded)

	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	_, err = LoadJSON(path)
	require.Error(t, err)
}

func TestSavePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curves.png")
	require.NoError(t, sampleHistory().SavePlot(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	require.Error(t, (&History{}).SavePlot(path))
}
