package imgio

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"image"
	"testing"
)

// hideInfo writes a stealth payload into the chosen low bit plane of a copy
// of img, column by column.
func hideInfo(t *testing.T, img *Image, sig string, info []byte, inRGB bool) *Image {
	t.Helper()
	payload := append([]byte(sig), binary.BigEndian.AppendUint32(nil, uint32(len(info)*8))...)
	payload = append(payload, info...)

	out := Normalize(img, true)
	var bits []byte
	for _, b := range payload {
		for i := 7; i >= 0; i-- {
			bits = append(bits, b>>i&1)
		}
	}
	per := 1
	if inRGB {
		per = 3
	}
	if len(bits) > out.Width()*out.Height()*per {
		t.Fatalf("%d bits do not fit", len(bits))
	}
	set := func(v uint8) uint8 {
		if len(bits) == 0 {
			return v
		}
		v = v&^1 | bits[0]
		bits = bits[1:]
		return v
	}
	for x := 0; x < out.Width(); x++ {
		for y := 0; y < out.Height(); y++ {
			c := out.NRGBAAt(x, y)
			if inRGB {
				c.R, c.G, c.B = set(c.R), set(c.G), set(c.B)
			} else {
				c.A = set(c.A)
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func opaqueCanvas(w, h int) *Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return Normalize(img, true)
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadStealthInfo(t *testing.T) {
	const params = "a heron at dawn\nSteps: 20, Sampler: Euler a, Seed: 42"
	canvas := opaqueCanvas(32, 32)

	tests := []struct {
		name  string
		sig   string
		info  []byte
		inRGB bool
	}{
		{"alpha", stealthAlphaText, []byte(params), false},
		{"alpha-gzip", stealthAlphaGzip, gzipped(t, params), false},
		{"rgb", stealthRGBText, []byte(params), true},
		{"rgb-gzip", stealthRGBGzip, gzipped(t, params), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReadStealthInfo(hideInfo(t, canvas, tt.sig, tt.info, tt.inRGB))
			if !ok || got != params {
				t.Fatalf("ReadStealthInfo() = %q, %v", got, ok)
			}
		})
	}
}

func TestReadStealthInfoAbsent(t *testing.T) {
	if got, ok := ReadStealthInfo(opaqueCanvas(32, 32)); ok {
		t.Fatalf("plain image yielded %q", got)
	}

	empty := hideInfo(t, opaqueCanvas(16, 16), stealthAlphaText, nil, false)
	if got, ok := ReadStealthInfo(empty); ok {
		t.Fatalf("empty payload yielded %q", got)
	}

	// set every length bit so the declared payload runs past the image
	truncated := hideInfo(t, opaqueCanvas(16, 16), stealthAlphaText, []byte("x"), false)
	for n := 120; n < 152; n++ {
		x, y := n/16, n%16
		px := truncated.NRGBAAt(x, y)
		px.A |= 1
		truncated.SetNRGBA(x, y, px)
	}
	if got, ok := ReadStealthInfo(truncated); ok {
		t.Fatalf("truncated payload yielded %q", got)
	}

	rgbOnly := Normalize(hideInfo(t, opaqueCanvas(32, 32), stealthAlphaText, []byte("x"), false), false)
	if got, ok := ReadStealthInfo(rgbOnly); ok {
		t.Fatalf("alpha payload read from an RGB image: %q", got)
	}
}
