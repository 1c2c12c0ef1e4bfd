package imgio

import (
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"reflect"
	"strings"
)

const dataURIPrefix = "data:image/"

var gzipMagic = []byte{0x1f, 0x8b}

// Classify reports which representation v is. Strings are sniffed in a fixed
// order: existing file, data:image/ prefix, http(s) scheme, then base64 with a
// gzip check on the decoded bytes. The first match wins.
func Classify(v any) (Kind, error) {
	in, err := Parse(v)
	if err != nil {
		return 0, err
	}
	return in.Kind(), nil
}

// Parse classifies v and wraps it in the matching Input variant.
func Parse(v any) (Input, error) {
	switch val := v.(type) {
	case Input:
		return val, nil
	case *Image:
		if val == nil || val.NRGBA == nil {
			return nil, fmt.Errorf("%w: nil image", ErrUnsupportedInput)
		}
		return ImageInput{Image: val}, nil
	case image.Image:
		if isNilImage(val) {
			return nil, fmt.Errorf("%w: nil image", ErrUnsupportedInput)
		}
		return ImageInput{Image: val}, nil
	case *PixelBuffer:
		if val == nil {
			return nil, fmt.Errorf("%w: nil pixel buffer", ErrUnsupportedInput)
		}
		return PixelBufferInput{Buffer: val}, nil
	case *Tensor:
		if val == nil {
			return nil, fmt.Errorf("%w: nil tensor", ErrUnsupportedInput)
		}
		return TensorInput{Tensor: val}, nil
	case string:
		return parseString(val)
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedInput)
	}
	return nil, fmt.Errorf("%w: type %T", ErrUnsupportedInput, v)
}

func parseString(s string) (Input, error) {
	if isRegularFile(s) {
		return PathInput{Path: s}, nil
	}
	if strings.HasPrefix(s, dataURIPrefix) {
		return Base64Input{Data: s}, nil
	}
	if hasHTTPScheme(s) {
		return URLInput{URL: s}, nil
	}

	raw, err := decodeBase64(s)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: string is not a path, data URI, URL or base64", ErrUnsupportedInput)
	}
	if isGzip(raw) {
		return GzipBase64Input{Data: s}, nil
	}
	return Base64Input{Data: s}, nil
}

func isRegularFile(s string) bool {
	if s == "" || strings.ContainsRune(s, 0) {
		return false
	}
	info, err := os.Stat(s)
	return err == nil && info.Mode().IsRegular()
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == gzipMagic[0] && b[1] == gzipMagic[1]
}

// decodeBase64 accepts padded and unpadded standard base64, ignoring
// surrounding whitespace and line breaks.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// dataURIPayload returns the base64 part of a data URI, or s unchanged.
func dataURIPayload(s string) string {
	if !strings.HasPrefix(s, dataURIPrefix) {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// isNilImage catches typed nil pointers such as (*image.RGBA)(nil).
func isNilImage(img image.Image) bool {
	if img == nil {
		return true
	}
	v := reflect.ValueOf(img)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
