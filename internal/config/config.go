package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/joho/godotenv"
)

type Config struct {
	Backend BackendConfig
	Server  ServerConfig
	Log     LogConfig
	Render  RenderConfig
}

type BackendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
	File  string
}

type RenderConfig struct {
	ExcerptLength  int
	ScorePrecision int
	Placeholder    string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
		},
		Server: ServerConfig{
			Port: 3000,
		},
		Log: LogConfig{
			Level: "info",
			File:  defaultLogFile(),
		},
		Render: RenderConfig{
			ExcerptLength:  200,
			ScorePrecision: 3,
			Placeholder:    "Unknown",
		},
	}
}

// Load reads configuration from the JSON file backend, a .env file in the
// working directory, and environment variables.
//
// The file lives at $XDG_CONFIG_HOME/docchat/config.json. Variables from
// .env never replace ones already set in the process environment, and
// environment variables (DOCCHAT_*) override file values.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), ".env")
}

func loadWith(b ConfigBackend, envFiles ...string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend.base_url %q: %w", cfg.Backend.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q: want an absolute http(s) URL", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if cfg.Render.ExcerptLength < 0 {
		return fmt.Errorf("invalid render.excerpt_length %d", cfg.Render.ExcerptLength)
	}
	if cfg.Render.ScorePrecision < 0 || cfg.Render.ScorePrecision > 10 {
		return fmt.Errorf("invalid render.score_precision %d", cfg.Render.ScorePrecision)
	}
	return nil
}
