package nodes

import (
	"context"

	"comfynodes/imgio"
	"comfynodes/webui"
)

const categoryWebUI = "WebUI API"

func txt2imgInputs() Inputs {
	d := webui.DefaultParams("")
	return Inputs{
		Required: []InputSpec{
			{Name: "prompt", Type: TypeString, Default: "", Multiline: true},
			{Name: "api_endpoint", Type: TypeString, Default: ""},
		},
		Optional: []InputSpec{
			{Name: "auth", Type: TypeString, Default: ""},
			{Name: "seed", Type: TypeInt, Default: d.Seed},
			{Name: "negative_prompt", Type: TypeString, Default: "", Multiline: true},
			{Name: "steps", Type: TypeInt, Default: d.Steps, Min: bound(1)},
			{Name: "width", Type: TypeInt, Default: d.Width, Min: bound(8)},
			{Name: "height", Type: TypeInt, Default: d.Height, Min: bound(8)},
			{Name: "hr_scale", Type: TypeFloat, Default: d.HrScale},
			{Name: "hr_upscale", Type: TypeString, Default: d.HrUpscaler},
			{Name: "enable_hr", Type: TypeBool, Default: d.EnableHr},
			{Name: "cfg_scale", Type: TypeInt, Default: d.CfgScale},
		},
	}
}

func txt2imgParams(args Args) webui.Params {
	return webui.Params{
		Prompt:         args.String("prompt"),
		NegativePrompt: args.String("negative_prompt"),
		Seed:           args.Int("seed"),
		Steps:          int(args.Int("steps")),
		Width:          int(args.Int("width")),
		Height:         int(args.Int("height")),
		HrScale:        args.Float("hr_scale"),
		HrUpscaler:     args.String("hr_upscale"),
		EnableHr:       args.Bool("enable_hr"),
		CfgScale:       int(args.Int("cfg_scale")),
	}
}

func WebUINodes() []Definition {
	return []Definition{
		{
			Name:        "SDWebuiAPINode",
			DisplayName: "Get Image From Prompt",
			Function:    "get_image_from_prompt",
			Category:    categoryWebUI,
			Inputs:      txt2imgInputs(),
			ReturnTypes: []string{TypeImage},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				client := env.WebUI.With(args.String("api_endpoint"), args.String("auth"))
				images, err := client.Txt2Img(ctx, txt2imgParams(args))
				if err != nil {
					return Output{}, err
				}
				return out(imgio.ImageToTensor(images[0])), nil
			},
		},
		{
			Name:        "SDWebuiAPIFallbackNode",
			DisplayName: "Get Image From Prompt (Fallback)",
			Function:    "get_image_from_prompt_fallback",
			Category:    categoryWebUI,
			Description: "Like Get Image From Prompt, but yields a white image instead of failing.",
			Inputs:      txt2imgInputs(),
			ReturnTypes: []string{TypeImage},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				client := env.WebUI.With(args.String("api_endpoint"), args.String("auth"))
				images := client.Txt2ImgOrBlank(ctx, txt2imgParams(args))
				return out(imgio.ImageToTensor(images[0])), nil
			},
		},
	}
}
