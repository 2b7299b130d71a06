// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gtsrb

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultHistogramBins used by Preprocess to equalize the brightness of the images.
const DefaultHistogramBins = 256

// EqualizeHist returns the histogram-equalized values of one image channel, all in the range [0, 1].
//
// The histogram has nbins bins evenly spaced from the smallest to the largest value, and each value
// is mapped to the normalized cumulative histogram, linearly interpolated between the bins centers.
// A constant channel (min == max) uses the range [v-0.5, v+0.5].
//
// The output is monotone non-decreasing on the input values.
func EqualizeHist(values []float64, nbins int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if nbins <= 0 {
		nbins = DefaultHistogramBins
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	// Bin edges: the last one is nudged up so the maximum value falls in the last bin.
	dividers := make([]float64, nbins+1)
	floats.Span(dividers, lo, hi)
	dividers[nbins] = math.Nextafter(hi, math.Inf(1))
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	hist := stat.Histogram(nil, dividers, sorted, nil)

	cdf := floats.CumSum(make([]float64, nbins), hist)
	floats.Scale(1/cdf[nbins-1], cdf)

	binWidth := (hi - lo) / float64(nbins)
	firstCenter := lo + binWidth/2
	lastCenter := firstCenter + float64(nbins-1)*binWidth
	out := make([]float64, len(values))
	for ii, v := range values {
		switch {
		case v <= firstCenter:
			out[ii] = cdf[0]
		case v >= lastCenter:
			out[ii] = cdf[nbins-1]
		default:
			pos := (v - firstCenter) / binWidth
			bin := int(pos)
			if bin >= nbins-1 {
				bin = nbins - 2
			}
			frac := pos - float64(bin)
			out[ii] = cdf[bin] + frac*(cdf[bin+1]-cdf[bin])
		}
	}
	return out
}
