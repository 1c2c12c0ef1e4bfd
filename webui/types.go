package webui

type (
	// Params is the txt2img request body.
	Params struct {
		Prompt         string  `json:"prompt"`
		NegativePrompt string  `json:"negative_prompt"`
		Seed           int64   `json:"seed"`
		Steps          int     `json:"steps" validate:"gte=1,lte=500"`
		Width          int     `json:"width" validate:"gte=8,lte=16384"`
		Height         int     `json:"height" validate:"gte=8,lte=16384"`
		HrScale        float64 `json:"hr_scale" validate:"gt=0,lte=8"`
		HrUpscaler     string  `json:"hr_upscale"`
		EnableHr       bool    `json:"enable_hr"`
		CfgScale       int     `json:"cfg_scale" validate:"gte=0,lte=100"`
	}

	Response struct {
		Images []string `json:"images"`
		Image  string   `json:"image"`
	}
)
