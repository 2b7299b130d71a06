// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

const (
	// AnnotationsFileColumn is the column of the annotations CSV with the image file name.
	AnnotationsFileColumn = "Filename"

	// AnnotationsClassColumn is the column of the annotations CSV with the class id.
	AnnotationsClassColumn = "ClassId"
)

// Labeler returns the class id of the image in path.
type Labeler func(path string) (int, error)

// Annotations maps image file names (without directory) to their class id.
//
// The official GTSRB test set is distributed as a flat directory of images, labeled by a
// "GT-final_test.csv" file, separated by ";", with the columns "Filename" and "ClassId" (among others).
type Annotations map[string]int

// LoadAnnotations reads a GTSRB annotations CSV file.
func LoadAnnotations(path string) (Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open annotations")
	}
	defer func() { _ = f.Close() }()
	df := dataframe.ReadCSV(f,
		dataframe.WithDelimiter(';'),
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			AnnotationsFileColumn:  series.String,
			AnnotationsClassColumn: series.Int,
		}))
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse annotations %q", path)
	}
	files := df.Col(AnnotationsFileColumn)
	if files.Err != nil {
		return nil, errors.Wrapf(files.Err, "annotations %q", path)
	}
	classes := df.Col(AnnotationsClassColumn)
	if classes.Err != nil {
		return nil, errors.Wrapf(classes.Err, "annotations %q", path)
	}
	classIDs, err := classes.Int()
	if err != nil {
		return nil, errors.Wrapf(err, "annotations %q: invalid %s", path, AnnotationsClassColumn)
	}
	annotations := make(Annotations, df.Nrow())
	for ii, name := range files.Records() {
		classID := classIDs[ii]
		if classID < 0 || classID >= NumClasses {
			return nil, errors.Errorf("annotations %q: %s=%d for %q is out of range [0, %d)",
				path, AnnotationsClassColumn, classID, name, NumClasses)
		}
		annotations[name] = classID
	}
	return annotations, nil
}

// Labeler returns a Labeler that looks up the class id by the image file name.
func (a Annotations) Labeler() Labeler {
	return func(path string) (int, error) {
		classID, found := a[filepath.Base(path)]
		if !found {
			return 0, errors.Wrapf(ErrInvalidClassPath, "image %q not found in the annotations", path)
		}
		return classID, nil
	}
}
