package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/kalambet/docchat/internal/api"
	"github.com/kalambet/docchat/internal/backend"
	"github.com/kalambet/docchat/internal/config"
	"github.com/kalambet/docchat/internal/logging"
	"github.com/kalambet/docchat/internal/render"
	"github.com/kalambet/docchat/internal/session"
)

// app is one process-lifetime session: a backend client and the two
// controllers every surface drives.
type app struct {
	cfg     config.Config
	client  *backend.Client
	uploads *session.UploadController
	queries *session.QueryController

	logCloser io.Closer
	prevLog   *slog.Logger
}

type appOptions struct {
	backendURL string
	// mirror also receives log records; nil keeps them in the file only.
	mirror io.Writer
}

var newApp = func(opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return buildApp(cfg, opts)
}

func buildApp(cfg config.Config, opts appOptions) (*app, error) {
	if opts.backendURL != "" {
		cfg.Backend.BaseURL = opts.backendURL
	}

	prev := slog.Default()
	closer, err := logging.Setup(cfg.Log, opts.mirror)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	client := backend.NewClient(cfg.Backend.BaseURL)
	slog.Debug("session started", "backend", client.BaseURL())

	return &app{
		cfg:       cfg,
		client:    client,
		uploads:   session.NewUploadController(client),
		queries:   session.NewQueryController(client),
		logCloser: closer,
		prevLog:   prev,
	}, nil
}

func (a *app) renderOptions() render.Options {
	return render.Options{
		Placeholder:    a.cfg.Render.Placeholder,
		ExcerptLength:  a.cfg.Render.ExcerptLength,
		ScorePrecision: a.cfg.Render.ScorePrecision,
	}
}

func (a *app) deps() api.Deps {
	return api.Deps{
		Uploads: a.uploads,
		Queries: a.queries,
		Render:  a.renderOptions(),
		Backend: a.client.BaseURL(),
	}
}

func (a *app) Close() error {
	slog.SetDefault(a.prevLog)
	return a.logCloser.Close()
}
