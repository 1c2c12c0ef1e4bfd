package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"comfynodes/imgio"
	"comfynodes/logger"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func (a *app) runClassify(cmd *cobra.Command, args []string) error {
	for _, in := range args {
		kind, err := imgio.Classify(in)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", shorten(in), err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", shorten(in), kind)
	}
	return nil
}

// shorten keeps long base64 payloads readable in tabular output.
func shorten(s string) string {
	if len(s) <= 48 {
		return s
	}
	return s[:45] + "..."
}

// outputName derives the file name for the i-th input. Paths keep their stem,
// everything else is numbered.
func outputName(in string, i int, format imgio.Format) string {
	kind, err := imgio.Classify(in)
	if err == nil && kind == imgio.KindPath {
		base := filepath.Base(in)
		return strings.TrimSuffix(base, filepath.Ext(base)) + format.Extension()
	}
	return fmt.Sprintf("image_%03d%s", i+1, format.Extension())
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out-dir")
	quality, _ := cmd.Flags().GetInt("quality")
	keepAlpha, _ := cmd.Flags().GetBool("alpha")

	format, err := imgio.ParseFormat(formatName)
	if err != nil {
		return err
	}
	opts := imgio.EncodeOptions{Format: format, Quality: quality, KeepAlpha: keepAlpha}

	bar := progressbar.Default(int64(len(args)), "converting")
	var errs []error
	for i, in := range args {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		path := filepath.Join(outDir, outputName(in, i, format))
		if err := a.converter.ToFile(cmd.Context(), in, path, opts); err != nil {
			logger.Warn("Conversion failed", "input", shorten(in), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", shorten(in), err))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	logger.Info("Converted images", "ok", len(args)-len(errs), "failed", len(errs), "dir", outDir)
	return errors.Join(errs...)
}
