// Package imageutils converts between images and the flattened RGB
// vectors that environments and networks consume.
//
// A flattened image of size s holds s*s*3 values in [0, 1], stored row
// major with interleaved channels: index (y*s + x)*3 + c.
package imageutils

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// Channels is the number of colour channels in a flattened image
const Channels = 3

// Len returns the length of a flattened square image of the given size
func Len(size int) int {
	return size * size * Channels
}

// Load loads the image at path and resizes it to a size x size square
func Load(path string, size int) (image.Image, error) {
	img, err := gg.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("load: could not load image %v: %w", path,
			err)
	}
	return Resize(img, size), nil
}

// Resize scales img so that it fills a size x size square
func Resize(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == size && bounds.Dy() == size {
		return img
	}

	dc := gg.NewContext(size, size)
	dc.Scale(float64(size)/float64(bounds.Dx()),
		float64(size)/float64(bounds.Dy()))
	dc.DrawImage(img, -bounds.Min.X, -bounds.Min.Y)
	return dc.Image()
}

// ToVector flattens a square image into RGB values in [0, 1]
func ToVector(img image.Image) []float64 {
	bounds := img.Bounds()
	size := bounds.Dx()
	data := make([]float64, 0, Len(size))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data = append(data,
				float64(c.R)/255.0,
				float64(c.G)/255.0,
				float64(c.B)/255.0,
			)
		}
	}
	return data
}

// FromVector converts a flattened image back into an image. Values
// outside [0, 1] are clamped.
func FromVector(data []float64, size int) (*image.NRGBA, error) {
	if len(data) != Len(size) {
		return nil, fmt.Errorf("fromVector: invalid data length \n\twant(%v)"+
			"\n\thave(%v)", Len(size), len(data))
	}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * Channels
			img.SetNRGBA(x, y, color.NRGBA{
				R: toByte(data[i]),
				G: toByte(data[i+1]),
				B: toByte(data[i+2]),
				A: 255,
			})
		}
	}
	return img, nil
}

// SavePNG writes a flattened image to path as a PNG
func SavePNG(path string, data []float64, size int) error {
	img, err := FromVector(data, size)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("savePNG: could not save %v: %w", path, err)
	}
	return nil
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255.0 + 0.5)
	}
}
