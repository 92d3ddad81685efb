package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/metrics"
	"github.com/funvibe/resolvekit/internal/session"
	"github.com/funvibe/resolvekit/internal/utils"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath  string
	workers     int
	verbose     bool
	spans       bool
	metricsFile string
}

// env is what a command needs to run a session.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	provider *sdktrace.TracerProvider
	opts     *globalOptions
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return config.Default(), nil
		}
		path = found
	}
	return config.LoadConfig(path)
}

// setup loads the configuration and builds the logger, metrics recorder
// and tracer provider. The returned env must be closed.
func (o *globalOptions) setup(stderr io.Writer) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Level()
	if o.verbose {
		level = slog.LevelDebug
	}
	e := &env{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		opts:   o,
	}
	if o.metricsFile != "" {
		e.metrics = metrics.NewRecorder()
	}
	if o.spans {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating span exporter: %w", err)
		}
		e.provider = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	}
	return e, nil
}

func (e *env) newSession() (*session.Session, error) {
	opts := session.Options{
		Config:  e.cfg,
		Logger:  e.logger,
		Metrics: e.metrics,
		Workers: e.opts.workers,
	}
	if e.provider != nil {
		opts.Tracing = e.provider
	}
	return session.New(opts)
}

// close flushes spans and writes the metrics file.
func (e *env) close(ctx context.Context) error {
	if e.provider != nil {
		if err := e.provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("flushing spans: %w", err)
		}
	}
	if e.metrics != nil {
		if err := e.metrics.WriteFile(e.opts.metricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		e.logger.Debug("metrics written", "path", e.opts.metricsFile)
	}
	return nil
}

// readSources expands paths into tree files and reads them.
func readSources(paths []string) ([]session.Source, error) {
	files, err := utils.CollectTreeFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no tree files in %v", paths)
	}
	sources := make([]session.Source, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		sources = append(sources, session.Source{Path: path, Data: data})
	}
	return sources, nil
}
