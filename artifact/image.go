// Package artifact loads training images and writes
// generated images to disk.
package artifact

import (
	"fmt"
	"image"
	"image/color"

	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anyvec"
)

// ImageToTensor converts an image to a depth-minor tensor
// with values between -1 and 1.
//
// A depth of 1 yields luminance values, and a depth of 3
// yields RGB values.
func ImageToTensor(c anyvec.Creator, img image.Image, depth int) (anyvec.Vector, error) {
	if depth != 1 && depth != 3 {
		return nil, fmt.Errorf("%w: unsupported depth %d", singan.ErrConfiguration, depth)
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	minX := img.Bounds().Min.X
	minY := img.Bounds().Min.Y

	res := make([]float64, 0, w*h*depth)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.At(minX+x, minY+y)
			if depth == 1 {
				gray := color.Gray16Model.Convert(px).(color.Gray16)
				res = append(res, unitToSigned(float64(gray.Y)/0xffff))
				continue
			}
			r, g, b, _ := px.RGBA()
			for _, comp := range []uint32{r, g, b} {
				res = append(res, unitToSigned(float64(comp)/0xffff))
			}
		}
	}
	return c.MakeVectorData(c.MakeNumericList(res)), nil
}

// TensorToImage converts a square tensor with values
// between -1 and 1 into an image.
// Values outside of this range are clipped.
func TensorToImage(size, depth int, v anyvec.Vector) (image.Image, error) {
	data := singan.VectorFloats(v)
	if len(data) != size*size*depth {
		return nil, fmt.Errorf("%w: tensor has length %d, expected %d",
			singan.ErrShapeMismatch, len(data), size*size*depth)
	}
	switch depth {
	case 1:
		res := image.NewGray(image.Rect(0, 0, size, size))
		for i, x := range data {
			res.SetGray(i%size, i/size, color.Gray{Y: signedToByte(x)})
		}
		return res, nil
	case 3:
		res := image.NewRGBA(image.Rect(0, 0, size, size))
		for i := 0; i < size*size; i++ {
			res.SetRGBA(i%size, i/size, color.RGBA{
				R: signedToByte(data[i*3]),
				G: signedToByte(data[i*3+1]),
				B: signedToByte(data[i*3+2]),
				A: 0xff,
			})
		}
		return res, nil
	default:
		return nil, fmt.Errorf("%w: unsupported depth %d", singan.ErrConfiguration, depth)
	}
}

// BatchItem returns the i-th tensor in a packed batch.
func BatchItem(v anyvec.Vector, i, batch int) anyvec.Vector {
	n := v.Len() / batch
	return v.Slice(i*n, (i+1)*n)
}

// Tile repeats a tensor to form a packed batch.
func Tile(v anyvec.Vector, batch int) anyvec.Vector {
	if batch == 1 {
		return v
	}
	parts := make([]anyvec.Vector, batch)
	for i := range parts {
		parts[i] = v
	}
	return v.Creator().Concat(parts...)
}

func unitToSigned(x float64) float64 {
	return x*2 - 1
}

func signedToByte(x float64) uint8 {
	x = (x + 1) / 2
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	return uint8(x*0xff + 0.5)
}
