package pipeline

import (
	"context"
	"log/slog"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/imports"
	"github.com/funvibe/resolvekit/internal/modules"
	"github.com/funvibe/resolvekit/internal/resolve"
)

// PipelineContext carries one compilation unit through the stages. Each
// stage fills the fields the next one reads.
type PipelineContext struct {
	Ctx      context.Context
	Config   *config.Config
	Logger   *slog.Logger
	FilePath string
	Source   []byte // YAML tree; ignored when File is already set

	File *ast.File
	Unit *modules.Unit

	// Snapshot is set between the declaration and the resolution stages.
	Snapshot *modules.Snapshot
	Resolver *resolve.Resolver
	Imports  *imports.Table
	Result   *resolve.Map

	Sink *diagnostics.Sink
	// Err is an internal failure, never a user diagnostic.
	Err error
}

// NewContext prepares a unit for the declaration stages.
func NewContext(ctx context.Context, cfg *config.Config, path string, source []byte) *PipelineContext {
	return &PipelineContext{
		Ctx:      ctx,
		Config:   cfg,
		Logger:   slog.Default(),
		FilePath: path,
		Source:   source,
		Sink:     diagnostics.NewSink(path),
	}
}

// FromFile prepares an already decoded tree.
func FromFile(ctx context.Context, cfg *config.Config, file *ast.File) *PipelineContext {
	pc := NewContext(ctx, cfg, file.Path, nil)
	pc.File = file
	return pc
}
