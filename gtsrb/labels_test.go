// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClassFromPath(t *testing.T) {
	for path, want := range map[string]int{
		"data/GTSRB/Final_Training/Images/00007/00001_00029.ppm": 7,
		"/tmp/0/a.ppm": 0,
		"42/x.png":     42,
		filepath.Join("Images", "00013", "00000_00000.ppm"): 13,
	} {
		got, err := ClassFromPath(path)
		require.NoError(t, err, "path %q", path)
		require.Equal(t, want, got, "path %q", path)
	}

	for _, path := range []string{
		"image.ppm",
		"data/stop/00001.ppm",
		"data/43/00001.ppm",
		"data/-1/00001.ppm",
	} {
		_, err := ClassFromPath(path)
		require.Error(t, err, "path %q", path)
		require.True(t, errors.Is(err, ErrInvalidClassPath), "path %q: %v", path, err)
	}
}
