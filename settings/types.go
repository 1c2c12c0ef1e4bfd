package settings

import (
	"comfynodes/logger"
)

type (
	Config struct {
		Output  OutputConfig  `toml:"output" validate:"required"`
		Fetch   FetchConfig   `toml:"fetch" validate:"required"`
		WebUI   WebUIConfig   `toml:"webui"`
		Store   StoreConfig   `toml:"store" validate:"required"`
		Logging logger.Config `toml:"logging" validate:"required"`
	}

	OutputConfig struct {
		Directory string `toml:"directory" validate:"required"`
		// CompressLevel is the png compression level used by Save Image (0-9, 4 by default).
		CompressLevel int `toml:"compressLevel" validate:"gte=0,lte=9"`
	}

	FetchConfig struct {
		MaxBytes       int64  `toml:"maxBytes" validate:"gt=0"`
		TimeoutSeconds int    `toml:"timeoutSeconds" validate:"gt=0"`
		UserAgent      string `toml:"userAgent"`
	}

	WebUIConfig struct {
		Endpoint       string `toml:"endpoint" validate:"omitempty,url"`
		Auth           string `toml:"auth"`
		TimeoutSeconds int    `toml:"timeoutSeconds" validate:"gt=0"`
	}

	StoreConfig struct {
		ArchivePath  string `toml:"archivePath" validate:"required"`
		MaxValueSize int    `toml:"maxValueSize" validate:"gt=0"`
	}
)
