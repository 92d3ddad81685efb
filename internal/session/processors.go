package session

import (
	"fmt"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/imports"
	"github.com/funvibe/resolvekit/internal/modules"
	"github.com/funvibe/resolvekit/internal/pipeline"
	"github.com/funvibe/resolvekit/internal/scopes"
)

// DecodeProcessor turns the YAML source of a unit into a tree. A tree
// handed over as a Go value only gets its missing node identities.
type DecodeProcessor struct{}

func (DecodeProcessor) Name() string { return "decode" }

func (DecodeProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.File != nil {
		ast.Number(ctx.File)
		return ctx
	}
	file, err := ast.DecodeFile(ctx.Source, ctx.FilePath)
	if err != nil {
		ctx.Err = err
		return ctx
	}
	ctx.File = file
	return ctx
}

// ScopeProcessor builds the scope graph and the unit to publish.
type ScopeProcessor struct{}

func (ScopeProcessor) Name() string { return "scopes" }

func (ScopeProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.File == nil {
		return ctx
	}
	table, diags, err := scopes.Build(ctx.File)
	if err != nil {
		ctx.Err = fmt.Errorf("%s: %w", ctx.FilePath, err)
		return ctx
	}
	for _, d := range diags {
		ctx.Sink.Add(d)
	}
	ctx.Unit = &modules.Unit{File: ctx.File, Table: table}
	return ctx
}

// ImportProcessor builds the import table against the published snapshot.
type ImportProcessor struct{}

func (ImportProcessor) Name() string { return "imports" }

func (ImportProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Unit == nil || ctx.Snapshot == nil {
		ctx.Err = fmt.Errorf("%s: import stage before publication", ctx.FilePath)
		return ctx
	}
	ctx.Imports = imports.Build(ctx.Unit.File, ctx.Unit.Table, ctx.Snapshot, ctx.Config, ctx.Sink)
	return ctx
}

// ResolveProcessor resolves every reference site of the unit.
type ResolveProcessor struct{}

func (ResolveProcessor) Name() string { return "resolve" }

func (ResolveProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Resolver == nil || ctx.Imports == nil {
		ctx.Err = fmt.Errorf("%s: resolve stage without imports", ctx.FilePath)
		return ctx
	}
	m, err := ctx.Resolver.ResolveUnit(ctx.Context(), ctx.Unit, ctx.Imports, ctx.Sink)
	if err != nil {
		ctx.Err = err
		return ctx
	}
	ctx.Result = m
	return ctx
}

var (
	declarePipeline = pipeline.New(DecodeProcessor{}, ScopeProcessor{})
	resolvePipeline = pipeline.New(ImportProcessor{}, ResolveProcessor{})
)
