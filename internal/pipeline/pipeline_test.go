package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/funvibe/resolvekit/internal/config"
)

type stage struct {
	name string
	log  *[]string
	err  error
}

func (s stage) Name() string { return s.name }

func (s stage) Process(ctx *PipelineContext) *PipelineContext {
	*s.log = append(*s.log, s.name)
	if s.err != nil {
		ctx.Err = s.err
	}
	return ctx
}

func TestRun_AllStages(t *testing.T) {
	var log []string
	p := New(stage{name: "a", log: &log}, stage{name: "b", log: &log})
	pc := p.Run(NewContext(context.Background(), config.Default(), "x.yaml", nil))
	if pc.Err != nil {
		t.Fatal(pc.Err)
	}
	if len(log) != 2 || log[0] != "a" || log[1] != "b" {
		t.Errorf("stages ran as %v", log)
	}
}

func TestRun_StopsOnErr(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	p := New(stage{name: "a", log: &log, err: boom}, stage{name: "b", log: &log})
	pc := p.Run(NewContext(context.Background(), config.Default(), "x.yaml", nil))
	if !errors.Is(pc.Err, boom) {
		t.Errorf("got %v", pc.Err)
	}
	if len(log) != 1 {
		t.Errorf("stages ran as %v", log)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(stage{name: "a", log: &log})
	pc := p.Run(NewContext(ctx, config.Default(), "x.yaml", nil))
	if !errors.Is(pc.Err, context.Canceled) {
		t.Errorf("got %v", pc.Err)
	}
	if pc.Err.Error() != "x.yaml: before a: context canceled" {
		t.Errorf("unexpected message %q", pc.Err)
	}
	if len(log) != 0 {
		t.Errorf("stages ran as %v", log)
	}
}

func TestContext_DefaultsToBackground(t *testing.T) {
	pc := &PipelineContext{}
	if pc.Context() == nil || pc.Context().Err() != nil {
		t.Error("expected a live background context")
	}
}
