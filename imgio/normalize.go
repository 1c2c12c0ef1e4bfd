package imgio

import (
	"image"
	"image/color"
)

// Normalize turns any decoded raster into a canonical Image. With keepAlpha the
// result is RGBA. Otherwise alpha-bearing sources are composited over opaque
// white and every other colour model is converted straight to RGB.
func Normalize(src image.Image, keepAlpha bool) *Image {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch {
	case keepAlpha:
		copyPixels(dst, src, func(c color.NRGBA) color.NRGBA { return c })
		return &Image{NRGBA: dst, Mode: ModeRGBA}
	case hasAlpha(src):
		copyPixels(dst, src, overWhite)
	default:
		copyPixels(dst, src, func(c color.NRGBA) color.NRGBA {
			c.A = 0xff
			return c
		})
	}
	return &Image{NRGBA: dst, Mode: ModeRGB}
}

func overWhite(c color.NRGBA) color.NRGBA {
	if c.A == 0xff {
		return c
	}
	a := uint32(c.A)
	blend := func(v uint8) uint8 {
		return uint8((uint32(v)*a + 255*(255-a) + 127) / 255)
	}
	return color.NRGBA{R: blend(c.R), G: blend(c.G), B: blend(c.B), A: 0xff}
}

// hasAlpha reports whether the colour model of src carries an alpha channel.
// Palettes are treated as opaque and lose their transparency.
func hasAlpha(src image.Image) bool {
	switch img := src.(type) {
	case *Image:
		return img.Mode == ModeRGBA
	case *opaque:
		return false
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64,
		*image.Alpha, *image.Alpha16, *image.NYCbCrA:
		return true
	case *image.Paletted, *image.Gray, *image.Gray16, *image.CMYK, *image.YCbCr:
		return false
	}
	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model, color.CMYKModel, color.YCbCrModel:
		return false
	}
	return true
}

func copyPixels(dst *image.NRGBA, src image.Image, fn func(color.NRGBA) color.NRGBA) {
	b := src.Bounds()
	switch img := src.(type) {
	case *Image:
		src = img.NRGBA
	case *opaque:
		src = img.NRGBA
	}

	if nrgba, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
			di := dst.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				c := fn(color.NRGBA{R: nrgba.Pix[si], G: nrgba.Pix[si+1], B: nrgba.Pix[si+2], A: nrgba.Pix[si+3]})
				dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3] = c.R, c.G, c.B, c.A
				si += 4
				di += 4
			}
		}
		return
	}

	pal, _ := src.(*image.Paletted)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var c color.NRGBA
			if pal != nil {
				c = paletteColor(pal.Palette[pal.ColorIndexAt(b.Min.X+x, b.Min.Y+y)])
			} else {
				c = color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			}
			dst.SetNRGBA(x, y, fn(c))
		}
	}
}

// paletteColor keeps the RGB of transparent palette entries, which a
// premultiplied conversion would zero out.
func paletteColor(c color.Color) color.NRGBA {
	if n, ok := c.(color.NRGBA); ok {
		return n
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}
