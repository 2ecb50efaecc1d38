package photoenhance

import (
	"math"

	"github.com/samuelfneumann/spiral/utils/floatutils"
	"github.com/samuelfneumann/spiral/utils/imageutils"
)

// Edit is a global photo edit applied to a flattened RGB canvas with a
// strength in [-1, 1]. A strength of 0 leaves the canvas unchanged.
type Edit func(canvas []float64, strength float64)

// Parameter ranges of each edit at strength ±1
const (
	ExposureStops   = 0.5
	ContrastRange   = 0.5
	SaturationRange = 0.5
	ColourShift     = 0.1
)

// Edits lists the edits of the environment in the order that their
// strengths appear in an action vector.
var Edits = []Edit{
	Exposure,
	Contrast,
	Saturation,
	Temperature,
	Tint,
}

// EditNames names the entries of Edits
var EditNames = []string{
	"exposure",
	"contrast",
	"saturation",
	"temperature",
	"tint",
}

// Exposure scales every channel by 2^(strength*ExposureStops)
func Exposure(canvas []float64, strength float64) {
	factor := math.Pow(2, strength*ExposureStops)
	for i := range canvas {
		canvas[i] *= factor
	}
	clip(canvas)
}

// Contrast moves every channel away from (or towards) the mean
// intensity of the canvas
func Contrast(canvas []float64, strength float64) {
	if len(canvas) == 0 {
		return
	}
	var mean float64
	for _, v := range canvas {
		mean += v
	}
	mean /= float64(len(canvas))

	factor := 1 + strength*ContrastRange
	for i := range canvas {
		canvas[i] = (canvas[i]-mean)*factor + mean
	}
	clip(canvas)
}

// Saturation moves each pixel away from (or towards) its luminance
func Saturation(canvas []float64, strength float64) {
	factor := 1 + strength*SaturationRange
	for i := 0; i+2 < len(canvas); i += imageutils.Channels {
		lum := luminance(canvas[i], canvas[i+1], canvas[i+2])
		for c := 0; c < imageutils.Channels; c++ {
			canvas[i+c] = lum + (canvas[i+c]-lum)*factor
		}
	}
	clip(canvas)
}

// Temperature warms (positive strength) or cools the canvas by
// shifting red against blue
func Temperature(canvas []float64, strength float64) {
	shift := strength * ColourShift
	for i := 0; i+2 < len(canvas); i += imageutils.Channels {
		canvas[i] += shift
		canvas[i+2] -= shift
	}
	clip(canvas)
}

// Tint shifts the canvas towards magenta (positive strength) or green
func Tint(canvas []float64, strength float64) {
	shift := strength * ColourShift
	for i := 0; i+2 < len(canvas); i += imageutils.Channels {
		canvas[i] += shift / 2
		canvas[i+1] -= shift
		canvas[i+2] += shift / 2
	}
	clip(canvas)
}

func luminance(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

func clip(canvas []float64) {
	floatutils.ClipSlice(canvas, 0, 1)
}
