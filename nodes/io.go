package nodes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"comfynodes/fileio"
	"comfynodes/imgio"
	"comfynodes/logger"

	"github.com/gabriel-vasile/mimetype"
)

const (
	categoryMisc = "Misc"
	categoryText = "text"
)

// outputTarget resolves the directory and bare prefix for a save node. prefix
// may carry its own sub directories, as the host allows.
func outputTarget(env *Env, subfolder, prefix string) (string, string, error) {
	dir := env.Config.Output.Directory
	if subfolder != "" {
		if err := fileio.CheckRelative(subfolder); err != nil {
			return "", "", err
		}
		dir = filepath.Join(dir, subfolder)
	}
	if err := fileio.CheckRelative(prefix); err != nil {
		return "", "", err
	}
	return filepath.Join(dir, filepath.Dir(prefix)), filepath.Base(prefix), nil
}

func uiFile(env *Env, path string) map[string]any {
	rel, err := filepath.Rel(env.Config.Output.Directory, filepath.Dir(path))
	if err != nil || rel == "." {
		rel = ""
	}
	return map[string]any{"filename": filepath.Base(path), "subfolder": rel, "type": "output"}
}

// saveImages writes every image of v as <prefix>_NNNNN_<ext> and returns the
// written paths.
func saveImages(ctx context.Context, env *Env, v any, subfolder, prefix string, ext string, write func(io.Writer, *imgio.Image) error) ([]string, error) {
	imgs, err := env.images(ctx, v)
	if err != nil {
		return nil, err
	}
	dir, base, err := outputTarget(env, subfolder, prefix)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(imgs))
	for _, img := range imgs {
		name, err := fileio.NextName(dir, base, ext)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		err = fileio.WriteLocked(path, func(w io.Writer) error {
			return write(w, img)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	logger.Info("Saved images", "count", len(paths), "dir", dir)
	return paths, nil
}

func savedOutput(env *Env, paths []string) Output {
	files := make([]map[string]any, len(paths))
	for i, p := range paths {
		files[i] = uiFile(env, p)
	}
	return Output{Values: []any{paths[len(paths)-1]}, UI: map[string]any{"images": files}}
}

func sleep(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func commaRejoin(text string) string {
	parts := strings.Split(text, ",")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// listImages returns the image files under dir in lexical order. Files must
// carry one of exts and sniff as an image.
func listImages(dir string, recursive bool, exts []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(mtype.String(), "image/") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func parseExtensions(list string) []string {
	var exts []string
	for _, e := range strings.Split(list, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

func IONodes() []Definition {
	return []Definition{
		{
			Name:        "SaveImageCustomNode",
			DisplayName: "Save Image Custom Node",
			Function:    "save_images",
			Category:    categoryImage,
			Inputs: Inputs{
				Required: []InputSpec{
					{Name: "images", Type: TypeImage},
					{Name: "filename_prefix", Type: TypeString, Default: "ComfyUI"},
					{Name: "subfolder_dir", Type: TypeString, Default: ""},
				},
				Optional: []InputSpec{
					{Name: "compress_level", Type: TypeInt, Min: bound(0), Max: bound(9)},
				},
			},
			ReturnTypes: []string{TypeString},
			ReturnNames: []string{"filename"},
			OutputNode:  true,
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				level := env.Config.Output.CompressLevel
				if _, ok := args["compress_level"].(int64); ok {
					level = int(args.Int("compress_level"))
				}
				encoder := imgio.PNGEncoder(level)
				paths, err := saveImages(ctx, env, args.Any("images"), args.String("subfolder_dir"), args.String("filename_prefix"), ".png",
					func(w io.Writer, img *imgio.Image) error {
						return encoder.Encode(w, img.NRGBA)
					})
				if err != nil {
					return Output{}, err
				}
				return savedOutput(env, paths), nil
			},
		},
		{
			Name:        "SaveImageWebpCustomNode",
			DisplayName: "Save Image Webp Node",
			Function:    "save_images",
			Category:    categoryImage,
			Description: "Saves lossless WebP files.",
			Inputs: Inputs{Required: []InputSpec{
				{Name: "images", Type: TypeImage},
				{Name: "filename_prefix", Type: TypeString, Default: "ComfyUI"},
				{Name: "subfolder_dir", Type: TypeString, Default: ""},
			}},
			ReturnTypes: []string{TypeString},
			ReturnNames: []string{"filename"},
			OutputNode:  true,
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				paths, err := saveImages(ctx, env, args.Any("images"), args.String("subfolder_dir"), args.String("filename_prefix"), ".webp",
					func(w io.Writer, img *imgio.Image) error {
						return imgio.Encode(w, img, imgio.FormatWEBP, 0)
					})
				if err != nil {
					return Output{}, err
				}
				return savedOutput(env, paths), nil
			},
		},
		{
			Name:        "SaveTextCustomNode",
			DisplayName: "Save Text Custom Node",
			Function:    "save_text",
			Category:    categoryText,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "text", Type: TypeAny},
				{Name: "filename_prefix", Type: TypeString, Default: "ComfyUI"},
				{Name: "subfolder_dir", Type: TypeString, Default: ""},
				{Name: "filename", Type: TypeString, Default: ""},
			}},
			ReturnTypes: []string{TypeString},
			ReturnNames: []string{"filename"},
			OutputNode:  true,
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				text := fmt.Sprint(args.Any("text"))
				filename := args.String("filename")
				if text == "" || filename == "" {
					return Output{}, fmt.Errorf("%w: text and filename must be non-empty", ErrInvalidInput)
				}
				dir, base, err := outputTarget(env, args.String("subfolder_dir"), args.String("filename_prefix")+filename)
				if err != nil {
					return Output{}, err
				}
				path := filepath.Join(dir, base+".txt")
				if err := fileio.WriteFileLocked(path, []byte(text)); err != nil {
					return Output{}, err
				}
				return Output{Values: []any{path}, UI: map[string]any{"texts": []map[string]any{uiFile(env, path)}}}, nil
			},
		},
		{
			Name:        "CommaRejoinNode",
			DisplayName: "Comma Rejoin",
			Function:    "comma_rejoin",
			Category:    categoryText,
			Description: "Normalises a comma separated list: trims every entry, drops empty ones and joins with \", \".",
			Inputs: Inputs{Required: []InputSpec{
				{Name: "text", Type: TypeString, Default: "", Multiline: true},
			}},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				return out(commaRejoin(args.String("text"))), nil
			},
		},
		{
			Name:        "RandomImageFromFolderNode",
			DisplayName: "Random Image From Folder",
			Function:    "random_image",
			Category:    categoryImage,
			Inputs: Inputs{
				Required: []InputSpec{
					{Name: "folder", Type: TypeString, Default: ""},
					{Name: "seed", Type: TypeInt, Default: 0, Min: bound(0)},
				},
				Optional: []InputSpec{
					{Name: "recursive", Type: TypeBool, Default: false},
					{Name: "extensions", Type: TypeString, Default: ".png,.jpg,.jpeg,.webp"},
				},
			},
			ReturnTypes: []string{TypeImage, TypeString},
			ReturnNames: []string{"image", "path"},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				folder := args.String("folder")
				files, err := listImages(folder, args.Bool("recursive"), parseExtensions(args.String("extensions")))
				if err != nil {
					return Output{}, err
				}
				if len(files) == 0 {
					return Output{}, fmt.Errorf("%w: no images in %s", ErrInvalidInput, folder)
				}
				rng := rand.New(rand.NewPCG(uint64(args.Int("seed")), 0))
				path := files[rng.IntN(len(files))]
				tensor, err := env.Converter.ToTensor(ctx, path, false)
				if err != nil {
					return Output{}, err
				}
				return out(tensor, path), nil
			},
		},
		{
			Name:        "SleepNodeAny",
			DisplayName: "SleepNode",
			Function:    "sleep",
			Category:    categoryMisc,
			Inputs: Inputs{
				Required: []InputSpec{{Name: "interval", Type: TypeFloat, Default: 0.0, Min: bound(0)}},
				Optional: []InputSpec{{Name: "inputs", Type: TypeAny, Default: 0.0}},
			},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				if err := sleep(ctx, args.Float("interval")); err != nil {
					return Output{}, err
				}
				return out(args.Any("inputs")), nil
			},
		},
		{
			Name:        "SleepNodeImage",
			DisplayName: "Sleep (Image tunnel)",
			Function:    "sleep",
			Category:    categoryMisc,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "interval", Type: TypeFloat, Default: 0.0, Min: bound(0)},
				{Name: "image", Type: TypeAny},
			}},
			ReturnTypes: []string{TypeAny},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				if err := sleep(ctx, args.Float("interval")); err != nil {
					return Output{}, err
				}
				return out(args.Any("image")), nil
			},
		},
		{
			Name:        "ErrorNode",
			DisplayName: "ErrorNode",
			Function:    "raise_error",
			Category:    categoryMisc,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "error_msg", Type: TypeString, Default: "Error"},
			}},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				return Output{}, errors.New("Error: " + args.String("error_msg"))
			},
		},
		{
			Name:        "DebugComboInputNode",
			DisplayName: "Debug Combo Input",
			Function:    "debug_combo_input",
			Category:    categoryMisc,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "input1", Type: TypeCombo, Options: []string{"0", "1", "2"}, Default: "0"},
			}},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				logger.Node("DebugComboInputNode").Info("Combo input", "value", args.String("input1"))
				return out(args.String("input1")), nil
			},
		},
		{
			Name:        "TextPreviewNode",
			DisplayName: "Text Preview",
			Function:    "text_preview",
			Category:    categoryMisc,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "text", Type: TypeAny, Default: "text"},
			}},
			ReturnTypes: []string{},
			OutputNode:  true,
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				text := fmt.Sprint(args.Any("text"))
				logger.Node("TextPreviewNode").Info("Preview", "text", text)
				return Output{UI: map[string]any{"text": []string{text}}}, nil
			},
		},
		{
			Name:        "ParseExifNode",
			DisplayName: "Parse Exif",
			Function:    "parse_exif",
			Category:    categoryMisc,
			Description: "Reads generation parameters hidden in the low bits of the first image, or an empty string.",
			Inputs:      Inputs{Required: []InputSpec{{Name: "image", Type: TypeImage}}},
			ReturnTypes: []string{TypeString},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				imgs, err := env.Converter.ToImages(ctx, args.Any("image"), imgio.Options{KeepAlpha: true})
				if err != nil {
					return Output{}, err
				}
				if len(imgs) == 0 {
					return Output{}, fmt.Errorf("%w: empty image batch", imgio.ErrShape)
				}
				info, _ := imgio.ReadStealthInfo(imgs[0])
				return out(info), nil
			},
		},
	}
}
