package imgio

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format is a raster encoding understood by Encode.
type Format string

const (
	FormatPNG  Format = "PNG"
	FormatJPEG Format = "JPEG"
	FormatWEBP Format = "WEBP"
	FormatGIF  Format = "GIF"
	FormatBMP  Format = "BMP"
	FormatTIFF Format = "TIFF"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 95

// maxInflated bounds gzip payloads so a small base64 string cannot expand
// into an unbounded allocation.
const maxInflated = 256 << 20

var formatAliases = map[string]Format{
	"PNG":  FormatPNG,
	"JPEG": FormatJPEG,
	"JPG":  FormatJPEG,
	"WEBP": FormatWEBP,
	"GIF":  FormatGIF,
	"BMP":  FormatBMP,
	"TIFF": FormatTIFF,
	"TIF":  FormatTIFF,
}

// ParseFormat maps a name or file extension such as "png" or ".jpg" to a Format.
func ParseFormat(name string) (Format, error) {
	f, ok := formatAliases[strings.ToUpper(strings.TrimPrefix(name, "."))]
	if !ok {
		return "", fmt.Errorf("%w: image format %q", ErrUnsupportedInput, name)
	}
	return f, nil
}

// MIMEType is the content type of the encoded format.
func (f Format) MIMEType() string {
	return "image/" + strings.ToLower(string(f))
}

// Extension is the conventional file extension, with the leading dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + strings.ToLower(string(f))
}

// Decode sniffs data and decodes it as a raster image. Payloads that are not
// images are rejected before any decoder runs.
func Decode(data []byte) (image.Image, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: payload is %s, not an image", ErrUnsupportedInput, mtype.String())
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedInput, mtype.String(), err)
	}
	return img, nil
}

// Encode writes img in format. quality only applies to JPEG; WEBP is lossless.
func Encode(w io.Writer, img *Image, format Format, quality int) error {
	var src image.Image = img.NRGBA
	switch format {
	case FormatPNG, "":
		return png.Encode(w, src)
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultQuality
		}
		return jpeg.Encode(w, src, &jpeg.Options{Quality: quality})
	case FormatWEBP:
		return nativewebp.Encode(w, src, nil)
	case FormatGIF:
		return gif.Encode(w, src, nil)
	case FormatBMP:
		return bmp.Encode(w, src)
	case FormatTIFF:
		return tiff.Encode(w, src, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%w: image format %q", ErrUnsupportedInput, format)
}

// EncodeBytes is Encode into memory.
func EncodeBytes(img *Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNGEncoder returns a png.Encoder for the given zlib level 0-9.
func PNGEncoder(level int) *png.Encoder {
	switch {
	case level <= 0:
		return &png.Encoder{CompressionLevel: png.NoCompression}
	case level < 4:
		return &png.Encoder{CompressionLevel: png.BestSpeed}
	case level < 8:
		return &png.Encoder{CompressionLevel: png.DefaultCompression}
	}
	return &png.Encoder{CompressionLevel: png.BestCompression}
}

func compress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	gz, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	out, err := io.ReadAll(io.LimitReader(gz, maxInflated+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflated {
		return nil, fmt.Errorf("gzip payload inflates past %d bytes", maxInflated)
	}
	return out, nil
}

// maybeDecompress unwraps gzip payloads and returns anything else as is.
func maybeDecompress(data []byte) ([]byte, error) {
	if !isGzip(data) {
		return data, nil
	}
	return decompress(data)
}
