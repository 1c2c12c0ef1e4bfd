package nodes

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"comfynodes/imgio"

	"github.com/disintegration/imaging"
)

const categoryImage = "image"

var resampleFilters = map[string]imaging.ResampleFilter{
	"NEAREST": imaging.NearestNeighbor,
	"LANCZOS": imaging.Lanczos,
	"BICUBIC": imaging.CatmullRom,
}

var methodInput = InputSpec{Name: "method", Type: TypeCombo, Options: []string{"NEAREST", "LANCZOS", "BICUBIC"}, Default: "NEAREST"}

var imageInput = InputSpec{Name: "image", Type: TypeImage}

// transform applies fn to every image of the batch in args["image"] and
// returns the batch as a tensor.
func transform(fn func(img *imgio.Image, args Args) (image.Image, error)) RunFunc {
	return func(ctx context.Context, env *Env, args Args) (Output, error) {
		imgs, err := env.images(ctx, args.Any("image"))
		if err != nil {
			return Output{}, err
		}
		results := make([]*imgio.Image, len(imgs))
		for i, img := range imgs {
			res, err := fn(img, args)
			if err != nil {
				return Output{}, err
			}
			results[i] = imgio.Normalize(res, false)
		}
		tensor, err := imgio.ImagesToTensor(results)
		if err != nil {
			return Output{}, err
		}
		return out(tensor), nil
	}
}

func resize(img image.Image, width, height int, method string) (image.Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: target size %dx%d", ErrInvalidInput, width, height)
	}
	return imaging.Resize(img, width, height, resampleFilters[method]), nil
}

// blend extrapolates between degenerate and img the way PIL's ImageEnhance
// does: factor 0 yields degenerate, 1 yields img.
func blend(degenerate, img *image.NRGBA, factor float64) *image.NRGBA {
	dst := image.NewNRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := float64(degenerate.Pix[i+c])
			v := d + (float64(img.Pix[i+c])-d)*factor
			dst.Pix[i+c] = uint8(math.Round(math.Min(255, math.Max(0, v))))
		}
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst
}

func luma(c color.NRGBA) uint8 {
	return uint8((299*int(c.R) + 587*int(c.G) + 114*int(c.B) + 500) / 1000)
}

func greyscale(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		l := luma(c)
		return color.NRGBA{R: l, G: l, B: l, A: c.A}
	})
}

func brightness(img *imgio.Image, factor float64) image.Image {
	black := imaging.New(img.Width(), img.Height(), color.NRGBA{A: 255})
	return blend(black, img.NRGBA, factor)
}

func contrast(img *imgio.Image, factor float64) image.Image {
	var sum int
	for i := 0; i < len(img.Pix); i += 4 {
		sum += int(luma(color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2]}))
	}
	mean := uint8(math.Round(float64(sum) / float64(max(1, len(img.Pix)/4))))
	grey := imaging.New(img.Width(), img.Height(), color.NRGBA{R: mean, G: mean, B: mean, A: 255})
	return blend(grey, img.NRGBA, factor)
}

func saturation(img *imgio.Image, factor float64) image.Image {
	return blend(greyscale(img), img.NRGBA, factor)
}

func sharpness(img *imgio.Image, factor float64) image.Image {
	smooth := imaging.Convolve3x3(img, [9]float64{1, 1, 1, 1, 5, 1, 1, 1, 1}, &imaging.ConvolveOptions{Normalize: true})
	return blend(smooth, img.NRGBA, factor)
}

func threshold(img *imgio.Image, level int64) image.Image {
	cut := func(v uint8) uint8 {
		if int64(v) > level {
			return 255
		}
		return 0
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: cut(c.R), G: cut(c.G), B: cut(c.B), A: c.A}
	})
}

func enhanceNode(name, displayName string, fn func(*imgio.Image, float64) image.Image) Definition {
	return Definition{
		Name:        name,
		DisplayName: displayName,
		Function:    "enhance",
		Category:    categoryImage,
		Inputs: Inputs{Required: []InputSpec{
			imageInput,
			{Name: "factor", Type: TypeFloat, Default: 1.0, Min: bound(0), Step: bound(0.01)},
		}},
		ReturnTypes: []string{TypeImage},
		Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
			return fn(img, args.Float("factor")), nil
		}),
	}
}

func ImageNodes() []Definition {
	return []Definition{
		{
			Name:        "ResizeImageNode",
			DisplayName: "Resize Image",
			Function:    "resize_image",
			Category:    categoryImage,
			Inputs: Inputs{Required: []InputSpec{
				imageInput,
				{Name: "width", Type: TypeInt, Default: 512, Min: bound(1)},
				{Name: "height", Type: TypeInt, Default: 512, Min: bound(1)},
				methodInput,
			}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
				return resize(img, int(args.Int("width")), int(args.Int("height")), args.String("method"))
			}),
		},
		{
			Name:        "ResizeImageResolution",
			DisplayName: "Resize Image With Resolution",
			Function:    "resize_image_resolution",
			Category:    categoryImage,
			Description: "Scales the image so its pixel count is close to resolution squared, keeping the aspect ratio.",
			Inputs: Inputs{Required: []InputSpec{
				imageInput,
				{Name: "resolution", Type: TypeInt, Default: 512, Min: bound(256)},
				methodInput,
			}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
				total := float64(img.Width() * img.Height())
				target := float64(args.Int("resolution") * args.Int("resolution"))
				scale := math.Sqrt(target / total)
				return resize(img, int(float64(img.Width())*scale), int(float64(img.Height())*scale), args.String("method"))
			}),
		},
		{
			Name:        "ResizeScaleImageNode",
			DisplayName: "Resize Scale Image",
			Function:    "resize_scale_image",
			Category:    categoryImage,
			Inputs: Inputs{Required: []InputSpec{
				imageInput,
				{Name: "scale", Type: TypeFloat, Default: 1.0, Min: bound(0), Step: bound(0.01)},
				methodInput,
			}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
				scale := args.Float("scale")
				return resize(img, int(float64(img.Width())*scale), int(float64(img.Height())*scale), args.String("method"))
			}),
		},
		{
			Name:        "ResizeShortestToNode",
			DisplayName: "Resize Shortest To",
			Function:    "resize_shortest_to",
			Category:    categoryImage,
			Inputs: Inputs{Required: []InputSpec{
				imageInput,
				{Name: "size", Type: TypeInt, Default: 512, Min: bound(1)},
				methodInput,
			}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
				size := int(args.Int("size"))
				w, h := img.Width(), img.Height()
				if w < h {
					return resize(img, size, h*size/w, args.String("method"))
				}
				return resize(img, w*size/h, size, args.String("method"))
			}),
		},
		{
			Name:        "ResizeLongestToNode",
			DisplayName: "Resize Longest To",
			Function:    "resize_longest_to",
			Category:    categoryImage,
			Inputs: Inputs{Required: []InputSpec{
				imageInput,
				{Name: "size", Type: TypeInt, Default: 512, Min: bound(1)},
				methodInput,
			}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
				size := int(args.Int("size"))
				w, h := img.Width(), img.Height()
				if w > h {
					return resize(img, size, h*size/w, args.String("method"))
				}
				return resize(img, w*size/h, size, args.String("method"))
			}),
		},
		{
			Name:        "RotateImageNode",
			DisplayName: "Rotate Image",
			Function:    "rotate_image",
			Category:    categoryImage,
			Description: "Rotates counter-clockwise by angle degrees, keeping the original size and filling with black.",
			Inputs: Inputs{Required: []InputSpec{
				imageInput,
				{Name: "angle", Type: TypeInt, Default: 0},
			}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
				rotated := imaging.Rotate(img, float64(args.Int("angle")), color.Black)
				return imaging.CropCenter(rotated, img.Width(), img.Height()), nil
			}),
		},
		{
			Name:        "ConvertGreyscaleNode",
			DisplayName: "Convert Greyscale",
			Function:    "convert_greyscale",
			Category:    categoryImage,
			Inputs:      Inputs{Required: []InputSpec{imageInput}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, _ Args) (image.Image, error) {
				return greyscale(img), nil
			}),
		},
		{
			Name:        "ConvertRGBNode",
			DisplayName: "Convert RGB",
			Function:    "convert_rgb",
			Category:    categoryImage,
			Inputs:      Inputs{Required: []InputSpec{imageInput}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, _ Args) (image.Image, error) {
				return img, nil
			}),
		},
		enhanceNode("BrightnessNode", "Brightness", brightness),
		enhanceNode("ContrastNode", "Contrast", contrast),
		enhanceNode("SharpnessNode", "Sharpness", sharpness),
		enhanceNode("ColorNode", "Color", saturation),
		{
			Name:        "ThresholdNode",
			DisplayName: "Threshold image with value",
			Function:    "threshold",
			Category:    categoryImage,
			Inputs: Inputs{Required: []InputSpec{
				imageInput,
				{Name: "threshold", Type: TypeInt, Default: 128, Min: bound(0), Max: bound(255)},
			}},
			ReturnTypes: []string{TypeImage},
			Run: transform(func(img *imgio.Image, args Args) (image.Image, error) {
				return threshold(img, args.Int("threshold")), nil
			}),
		},
	}
}
