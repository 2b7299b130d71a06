// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package history records the per-epoch training metrics, and reports them as a table, a plot or a JSON file.
package history

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

// Record of one training epoch.
type Record struct {
	Epoch              int     `json:"epoch"`
	LearningRate       float64 `json:"learning_rate"`
	TrainLoss          float64 `json:"train_loss"`
	TrainAccuracy      float64 `json:"train_accuracy"`
	ValidationLoss     float64 `json:"validation_loss"`
	ValidationAccuracy float64 `json:"validation_accuracy"`
	Saved              bool    `json:"saved"`
}

// History of a training run.
type History struct {
	Records []Record `json:"records"`
}

// Add appends the record of an epoch.
func (h *History) Add(r Record) {
	h.Records = append(h.Records, r)
}

// Len returns the number of epochs recorded.
func (h *History) Len() int {
	return len(h.Records)
}

// Best returns the record with the lowest validation loss, and false if there is none (NaN losses are skipped).
func (h *History) Best() (Record, bool) {
	bestIdx := -1
	for ii, r := range h.Records {
		if math.IsNaN(r.ValidationLoss) {
			continue
		}
		if bestIdx == -1 || r.ValidationLoss < h.Records[bestIdx].ValidationLoss {
			bestIdx = ii
		}
	}
	if bestIdx == -1 {
		return Record{}, false
	}
	return h.Records[bestIdx], true
}

// Render returns the history as a table to be printed on a terminal. Epochs where the model was saved
// are highlighted.
func (h *History) Render() string {
	table := NewTable("Epoch", "Learning Rate", "Train Loss", "Train Acc", "Valid Loss", "Valid Acc", "Saved").
		Align(lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Center)
	for _, r := range h.Records {
		saved := ""
		if r.Saved {
			saved = "*"
		}
		table.Row(r.Saved,
			strconv.Itoa(r.Epoch),
			fmt.Sprintf("%.3g", r.LearningRate),
			fmt.Sprintf("%.4f", r.TrainLoss),
			fmt.Sprintf("%.2f%%", 100*r.TrainAccuracy),
			fmt.Sprintf("%.4f", r.ValidationLoss),
			fmt.Sprintf("%.2f%%", 100*r.ValidationAccuracy),
			saved,
		)
	}
	return table.String()
}

// SaveJSON writes the history to path.
func (h *History) SaveJSON(path string) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding history")
	}
	if err = os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing history to %q", path)
	}
	return nil
}

// LoadJSON reads a history saved with SaveJSON.
func LoadJSON(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading history")
	}
	h := &History{}
	if err = json.Unmarshal(data, h); err != nil {
		return nil, errors.Wrapf(err, "decoding history from %q", path)
	}
	return h, nil
}
