package imgio

import (
	"context"
	"fmt"
	"image"
)

// Kind is the classification tag of an input value.
type Kind int

const (
	KindImage Kind = iota + 1
	KindPixelBuffer
	KindTensor
	KindPath
	KindBase64
	KindGzipBase64
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPixelBuffer:
		return "pixel-buffer"
	case KindTensor:
		return "tensor"
	case KindPath:
		return "path"
	case KindBase64:
		return "base64"
	case KindGzipBase64:
		return "gzip-base64"
	case KindURL:
		return "url"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Mode is the channel layout of a canonical image.
type Mode string

const (
	ModeRGB  Mode = "RGB"
	ModeRGBA Mode = "RGBA"
)

// Image is the canonical in-memory raster every conversion goes through.
// In ModeRGB every alpha sample is 255.
type Image struct {
	*image.NRGBA
	Mode Mode
}

func (i *Image) Width() int {
	return i.Bounds().Dx()
}

func (i *Image) Height() int {
	return i.Bounds().Dy()
}

// Channels is 3 for RGB images and 4 for RGBA images.
func (i *Image) Channels() int {
	if i.Mode == ModeRGBA {
		return 4
	}
	return 3
}

// DType is the sample type of a PixelBuffer.
type DType int

const (
	Uint8 DType = iota
	Float32
)

func (d DType) String() string {
	if d == Uint8 {
		return "uint8"
	}
	return "float32"
}

// PixelBuffer is a numeric array of shape (B,H,W,C) or (H,W,C). Exactly one of
// Uint8 or Float32 holds the samples, selected by DType.
type PixelBuffer struct {
	Shape   []int
	DType   DType
	Uint8   []uint8
	Float32 []float32
}

// Tensor is a float32 array of shape (B,H,W,C) or (H,W,C), the layout the host
// uses for IMAGE values.
type Tensor struct {
	Shape []int
	Data  []float32
}

func NewTensor(shape []int, data []float32) *Tensor {
	return &Tensor{Shape: shape, Data: data}
}

// Batch returns the leading dimension of a rank 4 tensor, or 1.
func (t *Tensor) Batch() int {
	if len(t.Shape) == 4 {
		return t.Shape[0]
	}
	return 1
}

// Input is the closed set of supported representations. The unexported method
// seals it to the variants below.
type Input interface {
	Kind() Kind
	isInput()
}

type (
	ImageInput struct {
		Image image.Image
	}

	PixelBufferInput struct {
		Buffer *PixelBuffer
	}

	TensorInput struct {
		Tensor *Tensor
	}

	PathInput struct {
		Path string
	}

	// Base64Input is plain base64 or a data:image/ URI.
	Base64Input struct {
		Data string
	}

	GzipBase64Input struct {
		Data string
	}

	URLInput struct {
		URL string
	}
)

func (ImageInput) Kind() Kind       { return KindImage }
func (PixelBufferInput) Kind() Kind { return KindPixelBuffer }
func (TensorInput) Kind() Kind      { return KindTensor }
func (PathInput) Kind() Kind        { return KindPath }
func (Base64Input) Kind() Kind      { return KindBase64 }
func (GzipBase64Input) Kind() Kind  { return KindGzipBase64 }
func (URLInput) Kind() Kind         { return KindURL }

func (ImageInput) isInput()       {}
func (PixelBufferInput) isInput() {}
func (TensorInput) isInput()      {}
func (PathInput) isInput()        {}
func (Base64Input) isInput()      {}
func (GzipBase64Input) isInput()  {}
func (URLInput) isInput()         {}

// Fetcher retrieves the bytes of a remote image.
type Fetcher interface {
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
}
