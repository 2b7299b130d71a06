// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidClassPath is returned (wrapped) by ClassFromPath when the class id can't be derived from the path.
var ErrInvalidClassPath = errors.New("cannot derive class id from image path")

// ClassFromPath returns the class id encoded in the image path: the name of the directory holding the image.
// E.g.: "/data/GTSRB/Final_Training/Images/00007/00001_00002.ppm" is class 7.
//
// The id must be an integer in the range [0, NumClasses).
func ClassFromPath(path string) (int, error) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	if len(parts) < 2 {
		return 0, errors.Wrapf(ErrInvalidClassPath, "path %q has no parent directory", path)
	}
	dir := parts[len(parts)-2]
	classID, err := strconv.Atoi(dir)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidClassPath, "directory %q of path %q is not an integer", dir, path)
	}
	if classID < 0 || classID >= NumClasses {
		return 0, errors.Wrapf(ErrInvalidClassPath, "class id %d of path %q is out of range [0, %d)",
			classID, path, NumClasses)
	}
	return classID, nil
}
