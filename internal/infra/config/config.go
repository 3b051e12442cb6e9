package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	FrameFormat string `env:"FRAME_FORMAT" envDefault:"png"`

	// Empty means the OS temp dir.
	TempDir string `env:"TEMP_DIR" envDefault:""`

	SceneSensitivity float64 `env:"SCENE_SENSITIVITY" envDefault:"0.30"`
	DupStrictness    float64 `env:"DUP_STRICTNESS"    envDefault:"0.92"`

	// 0 disables the metrics endpoint.
	MetricsPort  int    `env:"METRICS_PORT"  envDefault:"0"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:""`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
