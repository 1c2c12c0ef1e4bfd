package imgio

import "errors"

var (
	// ErrUnsupportedInput is returned when a value cannot be classified as any
	// supported image representation.
	ErrUnsupportedInput = errors.New("imgio: unsupported input")

	// ErrShape is returned when a pixel or tensor buffer has an unusable shape,
	// or when a single image was required and a batch was given.
	ErrShape = errors.New("imgio: invalid shape")

	// ErrNoFetcher is returned for remote URL inputs when the converter was
	// built without a fetcher.
	ErrNoFetcher = errors.New("imgio: remote fetch not configured")
)
