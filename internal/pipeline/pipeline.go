package pipeline

import (
	"context"
	"fmt"
)

// Processor is one stage of the unit pipeline.
type Processor interface {
	Name() string
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. Stages keep running after diagnostics so that
// every stage reports its own; a fatal Err or a canceled context stops the
// remaining stages.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		if ctx.Err != nil {
			break
		}
		if err := ctx.Context().Err(); err != nil {
			ctx.Err = fmt.Errorf("%s: before %s: %w", ctx.FilePath, processor.Name(), err)
			break
		}
		ctx = processor.Process(ctx)
	}
	return ctx
}

// Context returns the cancellation context of the unit.
func (c *PipelineContext) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}
