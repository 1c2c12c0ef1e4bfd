package nodes

import (
	"context"
	"errors"
	"fmt"

	"comfynodes/http/request"
	"comfynodes/imgio"
	"comfynodes/settings"
	"comfynodes/store"
	"comfynodes/webui"
)

var (
	ErrTaggerUnavailable = errors.New("tagger not available")
	ErrNoArchive         = errors.New("nodes: no archive configured")
)

// Tags is the result of running an image tagging model.
type Tags struct {
	Rating     string
	General    []string
	Characters []string
}

// Tagger is the pluggable tagging model backend.
type Tagger interface {
	Tag(ctx context.Context, img *imgio.Image, threshold float64, replace bool) (*Tags, error)
}

// Env is the state shared by node invocations. Store and State are not
// synchronised; hosts running nodes concurrently must serialise access.
type Env struct {
	Config *settings.Config
	// Store backs the Global Var nodes. State holds the per instance memory
	// of stateful nodes such as counters, keyed by stateKey.
	Store     *store.Store
	State     *store.Store
	Converter *imgio.Converter
	WebUI     *webui.Client
	// Archive and Tagger are optional.
	Archive *store.Archive
	Tagger  Tagger
}

// NewEnv wires a fresh environment from config. The archive is opened
// separately since it holds a file lock for its lifetime.
func NewEnv(config *settings.Config) *Env {
	return &Env{
		Config:    config,
		Store:     store.New(),
		State:     store.New(),
		Converter: imgio.NewConverter(request.NewFetcher(config.Fetch)),
		WebUI:     webui.NewClient(config.WebUI),
	}
}

func (e *Env) images(ctx context.Context, v any) ([]*imgio.Image, error) {
	imgs, err := e.Converter.ToImages(ctx, v, imgio.Options{})
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("%w: empty image batch", imgio.ErrShape)
	}
	return imgs, nil
}

func (e *Env) image(ctx context.Context, v any) (*imgio.Image, error) {
	imgs, err := e.images(ctx, v)
	if err != nil {
		return nil, err
	}
	return imgs[0], nil
}

func (e *Env) tagger() (Tagger, error) {
	if e.Tagger == nil {
		return nil, ErrTaggerUnavailable
	}
	return e.Tagger, nil
}

func (e *Env) archive() (*store.Archive, error) {
	if e.Archive == nil {
		return nil, ErrNoArchive
	}
	return e.Archive, nil
}
