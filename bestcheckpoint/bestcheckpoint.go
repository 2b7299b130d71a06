// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package bestcheckpoint saves a model checkpoint only when the monitored validation loss improves.
//
// Only the best checkpoint is kept in the directory. The best loss seen so far and its epoch are stored
// as variables in the context, so they are saved along the checkpoint and restored when resuming.
package bestcheckpoint

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// Scope where the monitor variables are stored.
	Scope = "/best_checkpoint"

	// LossVariableName is the name of the variable with the best validation loss so far.
	LossVariableName = "validation_loss"

	// EpochVariableName is the name of the variable with the epoch of the best validation loss, or -1.
	EpochVariableName = "epoch"

	// checkpointPrefix of the files saved by checkpoints.Handler.
	checkpointPrefix = "checkpoint-"
)

// Monitor keeps track of the best validation loss and saves the checkpoint whenever it improves.
type Monitor struct {
	ctx      *context.Context
	handler  *checkpoints.Handler
	lossVar  *context.Variable
	epochVar *context.Variable
}

// New creates a Monitor saving checkpoints of ctx to dir.
//
// If resume is false any previous checkpoint in dir is removed first (see RemoveCheckpoints), so the
// saved model always comes from the current run. If resume is true, the previous checkpoint is loaded into ctx
// (variables are loaded as they are used) and the previous best loss is restored.
//
// excludeParams are hyperparameters not saved in the checkpoint (see checkpoints.Config.ExcludeParams).
func New(ctx *context.Context, dir string, resume bool, excludeParams ...string) (*Monitor, error) {
	if dir == "" {
		return nil, errors.New("checkpoint directory not given")
	}
	if !resume {
		removed, err := RemoveCheckpoints(dir)
		if err != nil {
			return nil, err
		}
		if removed > 0 {
			klog.Warningf("Removed %d files of a previous checkpoint in %q", removed, dir)
		}
	}
	handler, err := checkpoints.Build(ctx).
		Dir(dir).
		Keep(1).
		ExcludeParams(excludeParams...).
		Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "creating checkpoint handler for %q", dir)
	}
	ctxMonitor := ctx.InAbsPath(Scope).Checked(false)
	m := &Monitor{
		ctx:      ctx,
		handler:  handler,
		lossVar:  ctxMonitor.VariableWithValue(LossVariableName, math.Inf(1)).SetTrainable(false),
		epochVar: ctxMonitor.VariableWithValue(EpochVariableName, int64(-1)).SetTrainable(false),
	}
	return m, nil
}

// Dir where the checkpoint is saved.
func (m *Monitor) Dir() string {
	return m.handler.Dir()
}

// Best returns the best validation loss so far, +Inf if none was recorded.
func (m *Monitor) Best() float64 {
	return tensors.ToScalar[float64](m.lossVar.MustValue())
}

// BestEpoch returns the epoch of the best validation loss, or -1 if none was recorded.
func (m *Monitor) BestEpoch() int {
	return int(tensors.ToScalar[int64](m.epochVar.MustValue()))
}

// Improves returns whether loss is strictly better than the best so far. NaN never improves.
func (m *Monitor) Improves(loss float64) bool {
	return !math.IsNaN(loss) && loss < m.Best()
}

// Update records the validation loss of the epoch, and saves the checkpoint if it improved.
// It returns whether the checkpoint was saved.
func (m *Monitor) Update(epoch int, validationLoss float64) (saved bool, err error) {
	if !m.Improves(validationLoss) {
		klog.V(1).Infof("Epoch %d: validation loss %.5g did not improve from %.5g", epoch, validationLoss, m.Best())
		return false, nil
	}
	if err = m.lossVar.SetValue(tensors.FromScalar(validationLoss)); err != nil {
		return false, err
	}
	if err = m.epochVar.SetValue(tensors.FromScalar(int64(epoch))); err != nil {
		return false, err
	}
	if err = m.handler.Save(); err != nil {
		return false, errors.WithMessagef(err, "saving best checkpoint of epoch %d", epoch)
	}
	klog.Infof("Epoch %d: validation loss improved to %.5g, saved model to %q", epoch, validationLoss, m.Dir())
	return true, nil
}

// RemoveCheckpoints deletes the checkpoint files saved in dir, and returns how many files were removed.
// Other files in dir are left untouched. A missing dir is not an error.
func RemoveCheckpoints(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "listing previous checkpoints in %q", dir)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isCheckpointFile(entry.Name()) {
			continue
		}
		if err = os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, errors.Wrapf(err, "removing previous checkpoint file %q", entry.Name())
		}
		removed++
	}
	return removed, nil
}

// isCheckpointFile matches the file names written by checkpoints.Handler.Save.
func isCheckpointFile(name string) bool {
	return strings.HasPrefix(name, checkpointPrefix) &&
		(strings.HasSuffix(name, checkpoints.JsonNameSuffix) || strings.HasSuffix(name, checkpoints.BinDataSuffix))
}
