package imgio

import (
	"fmt"
	"image"
	"math"
)

// samples is the common view of PixelBuffer and Tensor data.
type samples struct {
	shape []int
	u8    []uint8
	f32   []float32
}

func (b *PixelBuffer) samples() (samples, error) {
	switch b.DType {
	case Uint8:
		return samples{shape: b.Shape, u8: b.Uint8}, nil
	case Float32:
		return samples{shape: b.Shape, f32: b.Float32}, nil
	}
	return samples{}, fmt.Errorf("%w: unknown dtype %d", ErrUnsupportedInput, b.DType)
}

func (t *Tensor) samples() samples {
	return samples{shape: t.Shape, f32: t.Data}
}

func (s samples) len() int {
	if s.u8 != nil {
		return len(s.u8)
	}
	return len(s.f32)
}

// dims returns batch, height, width and channels.
func (s samples) dims() (n, h, w, c int, err error) {
	switch len(s.shape) {
	case 3:
		n, h, w, c = 1, s.shape[0], s.shape[1], s.shape[2]
	case 4:
		n, h, w, c = s.shape[0], s.shape[1], s.shape[2], s.shape[3]
	default:
		return 0, 0, 0, 0, fmt.Errorf("%w: rank %d, want 3 or 4", ErrShape, len(s.shape))
	}
	if n < 1 || h < 1 || w < 1 {
		return 0, 0, 0, 0, fmt.Errorf("%w: %v", ErrShape, s.shape)
	}
	if c != 1 && c != 3 && c != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%w: %d channels, want 1, 3 or 4", ErrShape, c)
	}
	if n*h*w*c != s.len() {
		return 0, 0, 0, 0, fmt.Errorf("%w: shape %v needs %d samples, have %d", ErrShape, s.shape, n*h*w*c, s.len())
	}
	return n, h, w, c, nil
}

// bytes applies the value policy in order: samples all within [0,1] are
// scaled by 255 whatever their dtype, then uint8 data passes through, and
// anything else is taken as 0-255 and clamped.
func (s samples) bytes() []uint8 {
	if s.u8 != nil {
		for _, v := range s.u8 {
			if v > 1 {
				return s.u8
			}
		}
		out := make([]uint8, len(s.u8))
		for i, v := range s.u8 {
			out[i] = v * 255
		}
		return out
	}

	unit := true
	for _, v := range s.f32 {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			unit = false
			break
		}
	}

	out := make([]uint8, len(s.f32))
	for i, v := range s.f32 {
		if unit {
			v *= 255
		}
		out[i] = clampByte(v)
	}
	return out
}

func clampByte(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(float64(v)))
}

// rasters slices the buffer into one raw image per batch element.
func (s samples) rasters() ([]image.Image, error) {
	n, h, w, c, err := s.dims()
	if err != nil {
		return nil, err
	}
	data := s.bytes()
	frame := h * w * c

	out := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		px := data[i*frame : (i+1)*frame]
		rect := image.Rect(0, 0, w, h)
		switch c {
		case 1:
			g := image.NewGray(rect)
			copy(g.Pix, px)
			out = append(out, g)
		case 3:
			img := image.NewNRGBA(rect)
			for j, k := 0, 0; j < len(px); j, k = j+3, k+4 {
				img.Pix[k], img.Pix[k+1], img.Pix[k+2], img.Pix[k+3] = px[j], px[j+1], px[j+2], 0xff
			}
			out = append(out, &opaque{img})
		case 4:
			img := image.NewNRGBA(rect)
			copy(img.Pix, px)
			out = append(out, img)
		}
	}
	return out, nil
}

// opaque marks a three channel raster so normalisation skips compositing.
type opaque struct {
	*image.NRGBA
}

// ImageToTensor lays img out as a (1,H,W,C) float32 tensor in [0,1].
func ImageToTensor(img *Image) *Tensor {
	w, h, c := img.Width(), img.Height(), img.Channels()
	data := make([]float32, 0, w*h*c)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+4]
			for k := 0; k < c; k++ {
				data = append(data, float32(p[k])/255)
			}
		}
	}
	return NewTensor([]int{1, h, w, c}, data)
}

// ImagesToTensor stacks same-sized images into one (B,H,W,C) tensor.
func ImagesToTensor(imgs []*Image) (*Tensor, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("%w: no images", ErrShape)
	}
	first := ImageToTensor(imgs[0])
	if len(imgs) == 1 {
		return first, nil
	}
	shape := append([]int(nil), first.Shape...)
	data := append([]float32(nil), first.Data...)
	for _, img := range imgs[1:] {
		t := ImageToTensor(img)
		if t.Shape[1] != shape[1] || t.Shape[2] != shape[2] || t.Shape[3] != shape[3] {
			return nil, fmt.Errorf("%w: batch mixes %v and %v", ErrShape, shape[1:], t.Shape[1:])
		}
		data = append(data, t.Data...)
	}
	shape[0] = len(imgs)
	return NewTensor(shape, data), nil
}
