package webui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"comfynodes/http/request"
	"comfynodes/imgio"
	"comfynodes/logger"
	"comfynodes/settings"

	"github.com/go-playground/validator/v10"
)

const txt2imgPath = "/sdapi/v1/txt2img"

var ErrNoImages = errors.New("webui: no image data in response")

// DefaultParams mirrors the defaults of the generation nodes.
func DefaultParams(prompt string) Params {
	return Params{
		Prompt:     prompt,
		Seed:       -1,
		Steps:      28,
		Width:      1024,
		Height:     1024,
		HrScale:    1.5,
		HrUpscaler: "Latent",
		CfgScale:   7,
	}
}

func (p *Params) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(p)
}

// Client talks to a stable-diffusion-webui compatible txt2img API.
type Client struct {
	Endpoint string
	// Auth is "user:pass" for basic auth, or empty.
	Auth    string
	Timeout time.Duration
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

func NewClient(config settings.WebUIConfig) *Client {
	return &Client{
		Endpoint: config.Endpoint,
		Auth:     config.Auth,
		Timeout:  config.Timeout(),
	}
}

// With returns a copy of c using endpoint and auth where they are not empty.
func (c *Client) With(endpoint, auth string) *Client {
	clone := *c
	if endpoint != "" {
		clone.Endpoint = endpoint
	}
	if auth != "" {
		clone.Auth = auth
	}
	return &clone
}

// Txt2Img generates images for p. The response may carry them under
// "images" or a single "image" key.
func (c *Client) Txt2Img(ctx context.Context, p Params) ([]*imgio.Image, error) {
	if c.Endpoint == "" {
		return nil, errors.New("webui: no api endpoint configured")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("webui: invalid parameters: %w", err)
	}

	log := logger.Service("webui")
	start := time.Now()

	req := &request.Request{
		Url:     strings.TrimRight(c.Endpoint, "/") + txt2imgPath,
		Method:  http.MethodPost,
		Payload: p,
		Timeout: c.Timeout,
		Client:  c.HTTPClient,
	}
	req.SetBasicAuth(c.Auth)

	var resp Response
	if err := req.Call(ctx, &resp); err != nil {
		return nil, fmt.Errorf("webui: txt2img: %w", err)
	}

	encoded := resp.Images
	if len(encoded) == 0 && resp.Image != "" {
		encoded = []string{resp.Image}
	}
	if len(encoded) == 0 {
		return nil, ErrNoImages
	}

	conv := imgio.NewConverter(nil)
	images := make([]*imgio.Image, 0, len(encoded))
	for i, s := range encoded {
		img, err := conv.ToImage(ctx, s, imgio.Options{})
		if err != nil {
			return nil, fmt.Errorf("webui: image %d: %w", i, err)
		}
		images = append(images, img)
	}

	log.Info("Generated images", "count", len(images), "width", p.Width, "height", p.Height, "took", logger.Elapsed(start))
	return images, nil
}

// Txt2ImgOrBlank is Txt2Img that logs failures and returns a single white
// image of the requested size instead.
func (c *Client) Txt2ImgOrBlank(ctx context.Context, p Params) []*imgio.Image {
	images, err := c.Txt2Img(ctx, p)
	if err != nil {
		logger.Service("webui").Warn("txt2img failed, using blank image", "error", err)
		return []*imgio.Image{Blank(p.Width, p.Height)}
	}
	return images
}

// Blank returns an opaque white RGB image.
func Blank(width, height int) *imgio.Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return &imgio.Image{NRGBA: img, Mode: imgio.ModeRGB}
}
