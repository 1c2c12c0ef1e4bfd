package imgio

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"strings"
)

// Signatures of generation parameters hidden in the least significant bits
// of an image: "png" variants use the alpha channel, "rgb" variants the
// colour channels, and "comp" variants carry gzip data.
const (
	stealthAlphaText = "stealth_pnginfo"
	stealthAlphaGzip = "stealth_pngcomp"
	stealthRGBText   = "stealth_rgbinfo"
	stealthRGBGzip   = "stealth_rgbcomp"
)

// bitStream reads the low bits of pixels in column-major order.
type bitStream struct {
	bits []byte
	pos  int
}

func (b *bitStream) next(n int) ([]byte, bool) {
	if b.pos+n > len(b.bits) {
		return nil, false
	}
	out := b.bits[b.pos : b.pos+n]
	b.pos += n
	return out, true
}

func packBits(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		for _, bit := range bits[i*8 : i*8+8] {
			out[i] = out[i]<<1 | bit
		}
	}
	return out
}

// lowBits collects the alpha and the RGB bit planes of img.
func lowBits(img *Image) (alpha, rgb []byte) {
	w, h := img.Width(), img.Height()
	rgb = make([]byte, 0, w*h*3)
	if img.Mode == ModeRGBA {
		alpha = make([]byte, 0, w*h)
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			c := img.NRGBAAt(x, y)
			if alpha != nil {
				alpha = append(alpha, c.A&1)
			}
			rgb = append(rgb, c.R&1, c.G&1, c.B&1)
		}
	}
	return alpha, rgb
}

// readStealth decodes a payload from one bit plane.
func readStealth(bits []byte, plain, compressed string) (string, bool) {
	s := &bitStream{bits: bits}
	sig, ok := s.next(len(plain) * 8)
	if !ok {
		return "", false
	}
	gz := false
	switch string(packBits(sig)) {
	case plain:
	case compressed:
		gz = true
	default:
		return "", false
	}

	lenBits, ok := s.next(32)
	if !ok {
		return "", false
	}
	n := int(binary.BigEndian.Uint32(packBits(lenBits)))
	payload, ok := s.next(n)
	if !ok || n == 0 {
		return "", false
	}
	data := packBits(payload)

	if gz {
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return "", false
		}
		defer r.Close()
		if data, err = io.ReadAll(io.LimitReader(r, maxInflated)); err != nil {
			return "", false
		}
	}
	return strings.ToValidUTF8(string(data), ""), true
}

// ReadStealthInfo extracts generation parameters hidden in the low bits of
// img and reports whether any were found. The RGB planes are checked before
// the alpha plane.
func ReadStealthInfo(img *Image) (string, bool) {
	alpha, rgb := lowBits(img)
	if info, ok := readStealth(rgb, stealthRGBText, stealthRGBGzip); ok {
		return info, true
	}
	if alpha != nil {
		return readStealth(alpha, stealthAlphaText, stealthAlphaGzip)
	}
	return "", false
}
