// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gtsrb trains and evaluates a convolutional classifier for the German Traffic Sign Recognition
// Benchmark (GTSRB), 43 classes of traffic signs.
// Information about the dataset in https://benchmark.ini.rub.de/gtsrb_dataset.html
//
// Images are loaded fully in memory, preprocessed (brightness equalization, center crop and resize to
// 48x48) and labeled by the name of their class directory, or by an annotations file for the test set.
package gtsrb

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

const (
	// ImageSize is the height and width of the images fed to the model.
	ImageSize = 48

	// NumChannels of the images fed to the model (RGB).
	NumChannels = 3

	// NumClasses of traffic signs in GTSRB.
	NumClasses = 43

	// ImageNumValues is the number of float32 values of one preprocessed image.
	ImageNumValues = NumChannels * ImageSize * ImageSize
)

// Preprocess converts an image of any size to the model input: a flat slice of ImageNumValues float32 values,
// in [0, 1], organized as [NumChannels, ImageSize, ImageSize] (channels first).
//
// The steps are: histogram equalization of the HSV value channel, largest centered square crop, and
// resize to ImageSize x ImageSize.
func Preprocess(img image.Image) ([]float32, error) {
	size := img.Bounds().Size()
	if min(size.X, size.Y) < 2 {
		return nil, errors.Errorf("image of size %dx%d is too small to be cropped", size.X, size.Y)
	}
	img = EqualizeBrightness(img)
	img = CropCenter(img)
	img = imaging.Resize(img, ImageSize, ImageSize, imaging.Linear)
	return ToChannelsFirst(img), nil
}

// EqualizeBrightness converts the image to HSV, equalizes the histogram of the V (value) channel and
// converts it back to RGB. Alpha is dropped.
func EqualizeBrightness(img image.Image) *image.NRGBA64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	numPixels := width * height
	hues, saturations, values := make([]float64, numPixels), make([]float64, numPixels), make([]float64, numPixels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			c := colorful.Color{R: float64(r) / 0xFFFF, G: float64(g) / 0xFFFF, B: float64(b) / 0xFFFF}
			idx := y*width + x
			hues[idx], saturations[idx], values[idx] = c.Hsv()
		}
	}
	values = EqualizeHist(values, DefaultHistogramBins)

	out := image.NewNRGBA64(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			c := colorful.Hsv(hues[idx], saturations[idx], values[idx]).Clamped()
			out.SetNRGBA64(x, y, color.NRGBA64{
				R: uint16(c.R*0xFFFF + 0.5),
				G: uint16(c.G*0xFFFF + 0.5),
				B: uint16(c.B*0xFFFF + 0.5),
				A: 0xFFFF,
			})
		}
	}
	return out
}

// CropCenter returns the largest square centered on the image.
//
// For odd sizes the square is one pixel smaller than the smallest side: its half side is rounded
// down on both sides of the center.
func CropCenter(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	half := min(bounds.Dx(), bounds.Dy()) / 2
	centerX, centerY := bounds.Min.X+bounds.Dx()/2, bounds.Min.Y+bounds.Dy()/2
	return imaging.Crop(img, image.Rect(centerX-half, centerY-half, centerX+half, centerY+half))
}

// ToChannelsFirst converts the image to a flat slice of float32 values in [0, 1], organized
// as [NumChannels, height, width].
func ToChannelsFirst(img image.Image) []float32 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	planeSize := width * height
	flat := make([]float32, NumChannels*planeSize)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*width + x
			flat[idx] = float32(r) / 0xFFFF
			flat[planeSize+idx] = float32(g) / 0xFFFF
			flat[2*planeSize+idx] = float32(b) / 0xFFFF
		}
	}
	return flat
}
