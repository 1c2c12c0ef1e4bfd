package imgio

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"comfynodes/fileio"
	"comfynodes/logger"
)

// Options controls canonical conversion.
type Options struct {
	// KeepAlpha yields RGBA images instead of compositing over white.
	KeepAlpha bool
}

// EncodeOptions controls the raster and transport encoding of an image.
type EncodeOptions struct {
	Format    Format
	Quality   int
	Gzip      bool
	KeepAlpha bool
}

// Converter turns any supported input into canonical images and back out into
// the representations nodes hand to the host.
type Converter struct {
	fetcher Fetcher
}

// NewConverter returns a Converter. fetcher may be nil, in which case URL
// inputs fail with ErrNoFetcher.
func NewConverter(fetcher Fetcher) *Converter {
	return &Converter{fetcher: fetcher}
}

// ToImages converts v into canonical images. Buffers with a batch dimension
// yield one image per element; every other input yields exactly one.
func (c *Converter) ToImages(ctx context.Context, v any, opts Options) ([]*Image, error) {
	in, err := Parse(v)
	if err != nil {
		return nil, err
	}

	var rasters []image.Image
	switch in := in.(type) {
	case ImageInput:
		rasters = []image.Image{in.Image}
	case PixelBufferInput:
		s, err := in.Buffer.samples()
		if err != nil {
			return nil, err
		}
		if rasters, err = s.rasters(); err != nil {
			return nil, err
		}
	case TensorInput:
		if rasters, err = in.Tensor.samples().rasters(); err != nil {
			return nil, err
		}
	case PathInput, Base64Input, GzipBase64Input, URLInput:
		data, err := c.Bytes(ctx, in)
		if err != nil {
			return nil, err
		}
		img, err := Decode(data)
		if err != nil {
			return nil, err
		}
		rasters = []image.Image{img}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedInput, in)
	}

	out := make([]*Image, len(rasters))
	for i, r := range rasters {
		out[i] = Normalize(r, opts.KeepAlpha)
	}
	return out, nil
}

// ToImage is ToImages for callers that need exactly one image.
func (c *Converter) ToImage(ctx context.Context, v any, opts Options) (*Image, error) {
	imgs, err := c.ToImages(ctx, v, opts)
	if err != nil {
		return nil, err
	}
	if len(imgs) != 1 {
		return nil, fmt.Errorf("%w: want a single image, got a batch of %d", ErrShape, len(imgs))
	}
	return imgs[0], nil
}

// Bytes returns the encoded payload behind a path, base64, gzip-base64 or URL
// input, with any gzip transport layer removed.
func (c *Converter) Bytes(ctx context.Context, in Input) ([]byte, error) {
	switch in := in.(type) {
	case PathInput:
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", in.Path, err)
		}
		return data, nil
	case Base64Input:
		raw, err := decodeBase64(dataURIPayload(in.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64: %v", ErrUnsupportedInput, err)
		}
		return maybeDecompress(raw)
	case GzipBase64Input:
		raw, err := decodeBase64(in.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64: %v", ErrUnsupportedInput, err)
		}
		data, err := decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip payload: %v", ErrUnsupportedInput, err)
		}
		return data, nil
	case URLInput:
		if c.fetcher == nil {
			return nil, ErrNoFetcher
		}
		return c.fetcher.FetchImage(ctx, in.URL)
	}
	return nil, fmt.Errorf("%w: %s input carries no encoded bytes", ErrUnsupportedInput, in.Kind())
}

// ToTensor converts v into a (1,H,W,C) float32 tensor in [0,1]. C is 4 when
// wantAlpha is set and 3 otherwise.
func (c *Converter) ToTensor(ctx context.Context, v any, wantAlpha bool) (*Tensor, error) {
	img, err := c.ToImage(ctx, v, Options{KeepAlpha: wantAlpha})
	if err != nil {
		return nil, err
	}
	t := ImageToTensor(img)
	if len(t.Shape) != 4 || t.Shape[0] != 1 {
		return nil, fmt.Errorf("%w: tensor shape %v, want (1,H,W,C)", ErrShape, t.Shape)
	}
	return t, nil
}

// ToBase64 encodes v in opts.Format, optionally gzips it, and base64 encodes
// the result.
func (c *Converter) ToBase64(ctx context.Context, v any, opts EncodeOptions) (string, error) {
	data, err := c.encode(ctx, v, opts)
	if err != nil {
		return "", err
	}
	if opts.Gzip {
		if data, err = compress(data); err != nil {
			return "", fmt.Errorf("failed to gzip image: %w", err)
		}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ToDataURI renders v as a data:image/... URI. Gzip is not applied.
func (c *Converter) ToDataURI(ctx context.Context, v any, opts EncodeOptions) (string, error) {
	opts.Gzip = false
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	data, err := c.encode(ctx, v, opts)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", opts.Format.MIMEType(), base64.StdEncoding.EncodeToString(data)), nil
}

// ToFile encodes v and writes it to path under an advisory lock. An empty
// opts.Format is taken from the file extension.
func (c *Converter) ToFile(ctx context.Context, v any, path string, opts EncodeOptions) error {
	if opts.Format == "" {
		format, err := ParseFormat(filepath.Ext(path))
		if err != nil {
			return err
		}
		opts.Format = format
	}
	img, err := c.ToImage(ctx, v, Options{KeepAlpha: opts.KeepAlpha})
	if err != nil {
		return err
	}
	err = fileio.WriteLocked(path, func(w io.Writer) error {
		return Encode(w, img, opts.Format, opts.Quality)
	})
	if err != nil {
		return err
	}
	logger.Debug("Wrote image", "path", path, "format", opts.Format, "width", img.Width(), "height", img.Height())
	return nil
}

func (c *Converter) encode(ctx context.Context, v any, opts EncodeOptions) ([]byte, error) {
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	img, err := c.ToImage(ctx, v, Options{KeepAlpha: opts.KeepAlpha})
	if err != nil {
		return nil, err
	}
	data, err := EncodeBytes(img, opts.Format, opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", opts.Format, err)
	}
	return data, nil
}

// StringToBase64 base64 encodes text, gzipping it first when gz is set.
func StringToBase64(text string, gz bool) (string, error) {
	data := []byte(text)
	if gz {
		var err error
		if data, err = compress(data); err != nil {
			return "", fmt.Errorf("failed to gzip text: %w", err)
		}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ReadMaybeGzipBase64 reverses StringToBase64, detecting the gzip layer from
// its magic number.
func ReadMaybeGzipBase64(s string) (string, error) {
	raw, err := decodeBase64(s)
	if err != nil {
		return "", fmt.Errorf("%w: bad base64: %v", ErrUnsupportedInput, err)
	}
	data, err := maybeDecompress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: bad gzip payload: %v", ErrUnsupportedInput, err)
	}
	return string(data), nil
}
