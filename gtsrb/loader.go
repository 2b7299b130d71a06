// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	_ "github.com/spakin/netpbm"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// DefaultPattern matches the GTSRB layout: one sub-directory per class, holding the ".ppm" images.
const DefaultPattern = "*/*.ppm"

// ErrNoImages is returned (wrapped) by ListImagePaths when nothing matches.
var ErrNoImages = errors.New("no images found")

// ListImagePaths returns the sorted list of files matching pattern (see filepath.Match) under rootDir.
// If pattern is empty, DefaultPattern is used.
func ListImagePaths(rootDir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := os.Stat(rootDir); err != nil {
		return nil, errors.Wrapf(err, "image directory %q", rootDir)
	}
	glob := filepath.Join(rootDir, pattern)
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", glob)
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(ErrNoImages, "no file matches %q", glob)
	}
	slices.Sort(paths)
	return paths, nil
}

// ShufflePaths shuffles the paths in place.
func ShufflePaths(paths []string, rng *rand.Rand) {
	rng.Shuffle(len(paths), func(i, j int) {
		paths[i], paths[j] = paths[j], paths[i]
	})
}

// DecodeImage reads the image file in any of the registered formats:
// PPM/PGM/PBM/PAM, PNG, JPEG, BMP, TIFF and WebP.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image")
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", path)
	}
	return img, nil
}

// LoadOptions configures LoadSamples.
type LoadOptions struct {
	// NumWorkers decoding images in parallel. If <= 0 it uses the number of CPUs.
	NumWorkers int

	// ShowProgress displays a progress bar on the terminal.
	ShowProgress bool

	// Name used in the progress bar and logs.
	Name string

	// Labeler returns the class of each image. Defaults to ClassFromPath.
	Labeler Labeler
}

// LoadSamples reads, preprocesses and labels all the images in paths.
// The returned samples are in the same order as paths. Loading stops at the first error.
func LoadSamples(paths []string, opts LoadOptions) ([]Sample, error) {
	numWorkers := opts.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	labeler := opts.Labeler
	if labeler == nil {
		labeler = ClassFromPath
	}
	name := opts.Name
	if name == "" {
		name = "images"
	}
	var pBar *progressbar.ProgressBar
	if opts.ShowProgress {
		pBar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription(fmt.Sprintf("Loading %s", name)),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}

	if pBar != nil {
		defer func() {
			_ = pBar.Close()
			fmt.Println()
		}()
	}

	// The first error cancels loadCtx: the images not started yet are skipped.
	samples := make([]Sample, len(paths))
	eg, loadCtx := errgroup.WithContext(context.Background())
	eg.SetLimit(numWorkers)
	for ii, path := range paths {
		if loadCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := loadCtx.Err(); err != nil {
				return err
			}
			sample, err := LoadSample(path, labeler)
			if err != nil {
				return err
			}
			samples[ii] = sample
			if pBar != nil {
				_ = pBar.Add(1)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	klog.Infof("Loaded %s %s: %s", humanize.Comma(int64(len(samples))), name,
		humanize.Bytes(uint64(len(samples)*ImageNumValues*4)))
	return samples, nil
}

// LoadSample reads the image in path, preprocesses it, and labels it with labeler.
func LoadSample(path string, labeler Labeler) (Sample, error) {
	label, err := labeler(path)
	if err != nil {
		return Sample{}, err
	}
	img, err := DecodeImage(path)
	if err != nil {
		return Sample{}, err
	}
	values, err := Preprocess(img)
	if err != nil {
		return Sample{}, errors.WithMessagef(err, "preprocessing %q", path)
	}
	return Sample{Image: values, Label: label}, nil
}

// LoadDir lists the images in rootDir matching pattern (see ListImagePaths), and loads them
// in sorted order with LoadSamples.
func LoadDir(rootDir, pattern string, opts LoadOptions) ([]Sample, error) {
	paths, err := ListImagePaths(rootDir, pattern)
	if err != nil {
		return nil, err
	}
	return LoadSamples(paths, opts)
}
