// Package session resolves a set of compilation units together.
//
// A run has three phases. Scope graphs of all units are built concurrently,
// their exports are published as one immutable modules.Snapshot, then every
// unit is resolved concurrently against that snapshot. Publication is the
// only synchronization point; resolution of one unit never observes another
// unit's in-progress state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/diagnostics"
	"github.com/funvibe/resolvekit/internal/metrics"
	"github.com/funvibe/resolvekit/internal/modules"
	"github.com/funvibe/resolvekit/internal/pipeline"
	"github.com/funvibe/resolvekit/internal/resolve"
	"github.com/funvibe/resolvekit/internal/types"
)

const tracerName = "resolvekit.session"

// ErrUnknownUnit is returned when a unit path is not part of the snapshot.
var ErrUnknownUnit = errors.New("unknown unit")

// Options configure a session. Zero values select the defaults.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Oracle answers subtype queries; nil uses the snapshot hierarchy.
	Oracle  types.Oracle
	Metrics *metrics.Recorder
	// Tracing defaults to the global OpenTelemetry provider.
	Tracing trace.TracerProvider
	// Workers overrides Config.Workers when positive.
	Workers int
}

// Source is one unit to resolve: a YAML tree, or an already decoded File.
type Source struct {
	Path string
	Data []byte
	File *ast.File
}

// UnitResult is the outcome of one unit.
type UnitResult struct {
	Path        string
	Unit        *modules.Unit
	Map         *resolve.Map
	Diagnostics []*diagnostics.DiagnosticError
	// Abandoned units carry no results: whatever was computed before the
	// cancellation is discarded.
	Abandoned bool
}

// Result is the outcome of a run, units in path order.
type Result struct {
	SessionID string
	Snapshot  *modules.Snapshot
	Units     []*UnitResult
}

// Unit returns the result of the unit at path, or nil.
func (r *Result) Unit(path string) *UnitResult {
	for _, u := range r.Units {
		if u.Path == path {
			return u
		}
	}
	return nil
}

// Diagnostics returns the diagnostics of all units, unit by unit.
func (r *Result) Diagnostics() []*diagnostics.DiagnosticError {
	var out []*diagnostics.DiagnosticError
	for _, u := range r.Units {
		out = append(out, u.Diagnostics...)
	}
	return out
}

// HasErrors reports whether any unit has a diagnostic that is not a
// warning.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics() {
		if !d.Code.IsWarning() {
			return true
		}
	}
	return false
}

// declared is a unit whose scope graph is built, with the builder's
// diagnostics replayed into every later resolution of the unit.
type declared struct {
	unit  *modules.Unit
	diags []*diagnostics.DiagnosticError
}

// Session resolves units and keeps the last published snapshot for
// incremental re-resolution. All methods are safe for concurrent use.
type Session struct {
	id      uuid.UUID
	cfg     *config.Config
	log     *slog.Logger
	oracle  types.Oracle
	metrics *metrics.Recorder
	tracer  trace.Tracer
	workers int

	builtins *modules.Unit

	mu        sync.Mutex
	snapshot  *modules.Snapshot
	units     map[string]*declared
	cancels   map[string]context.CancelFunc
	abandoned map[string]bool
}

// New creates a session.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	builtins, err := modules.Builtins(cfg)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	provider := opts.Tracing
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	workers := cfg.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	return &Session{
		id:        id,
		cfg:       cfg,
		log:       logger.With("session", id.String()),
		oracle:    opts.Oracle,
		metrics:   opts.Metrics,
		tracer:    provider.Tracer(tracerName),
		workers:   workers,
		builtins:  builtins,
		units:     make(map[string]*declared),
		cancels:   make(map[string]context.CancelFunc),
		abandoned: make(map[string]bool),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id.String() }

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Snapshot returns the last published snapshot, or nil before the first
// publication.
func (s *Session) Snapshot() *modules.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Run declares, publishes and resolves sources. Diagnostics never fail a
// run; an error means an internal failure or cancellation of ctx.
func (s *Session) Run(ctx context.Context, sources []Source) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "session.Run", trace.WithAttributes(
		attribute.String("session", s.ID()),
		attribute.Int("units", len(sources)),
	))
	defer span.End()

	res, err := s.run(ctx, sources)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (s *Session) run(ctx context.Context, sources []Source) (*Result, error) {
	decls := make([]*pipeline.PipelineContext, len(sources))
	g, gctx := s.group(ctx)
	for i, src := range sources {
		g.Go(func() error {
			pc, err := s.declare(gctx, src)
			decls[i] = pc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap, err := s.publish(ctx, decls)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, pc := range decls {
		paths = append(paths, pc.FilePath)
	}
	sort.Strings(paths)

	results := make([]*UnitResult, len(paths))
	g, gctx = s.group(ctx)
	for i, path := range paths {
		g.Go(func() error {
			r, err := s.resolve(gctx, snap, path)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{SessionID: s.ID(), Snapshot: snap, Units: results}, nil
}

// Publish declares src and replaces its unit in the current snapshot. The
// other units are not re-resolved; call ResolveUnit for those that depend
// on the change.
func (s *Session) Publish(ctx context.Context, src Source) (*modules.Snapshot, error) {
	s.mu.Lock()
	delete(s.abandoned, sourcePath(src))
	s.mu.Unlock()

	pc, err := s.declare(ctx, src)
	if err != nil {
		return nil, err
	}
	if pc.Unit == nil {
		return nil, fmt.Errorf("publishing %s: %w", pc.FilePath, context.Canceled)
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap *modules.Snapshot
	if s.snapshot == nil {
		snap, err = modules.Publish([]*modules.Unit{s.builtins, pc.Unit})
	} else {
		snap, err = s.snapshot.Replace(pc.Unit)
	}
	if err != nil {
		return nil, err
	}
	s.snapshot = snap
	s.units[pc.FilePath] = &declared{unit: pc.Unit, diags: pc.Sink.Diagnostics()}
	s.metrics.ObservePhase(metrics.PhasePublish, time.Since(start))
	s.log.Debug("unit republished", "unit", pc.FilePath, "generation", snap.Generation)
	return snap, nil
}

// ResolveUnit re-resolves one unit against the current snapshot.
func (s *Session) ResolveUnit(ctx context.Context, path string) (*UnitResult, error) {
	s.mu.Lock()
	snap := s.snapshot
	delete(s.abandoned, path)
	s.mu.Unlock()
	if snap == nil || snap.Unit(path) == nil {
		return nil, fmt.Errorf("resolving %s: %w", path, ErrUnknownUnit)
	}
	return s.resolve(ctx, snap, path)
}

// Abandon cancels the unit at path. A running unit stops at its next
// checkpoint and reports Abandoned; a unit that has not started yet is
// skipped. Other units are unaffected.
func (s *Session) Abandon(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned[path] = true
	if cancel, ok := s.cancels[path]; ok {
		cancel()
	}
}

func (s *Session) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if s.workers > 0 {
		g.SetLimit(s.workers)
	}
	return g, gctx
}

// track derives the cancellable context of one unit.
func (s *Session) track(ctx context.Context, path string) (context.Context, func()) {
	uctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned[path] {
		cancel()
		return uctx, func() {}
	}
	s.cancels[path] = cancel
	return uctx, func() {
		s.mu.Lock()
		delete(s.cancels, path)
		s.mu.Unlock()
		cancel()
	}
}

func (s *Session) isAbandoned(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned[path]
}

func sourcePath(src Source) string {
	if src.Path == "" && src.File != nil {
		return src.File.Path
	}
	return src.Path
}

// declare runs the declaration stages of one unit. An abandoned unit
// returns a context without Unit and no error.
func (s *Session) declare(ctx context.Context, src Source) (*pipeline.PipelineContext, error) {
	path := sourcePath(src)
	uctx, done := s.track(ctx, path)
	defer done()
	uctx, span := s.tracer.Start(uctx, "session.declare", trace.WithAttributes(attribute.String("unit", path)))
	defer span.End()

	start := time.Now()
	pc := pipeline.NewContext(uctx, s.cfg, path, src.Data)
	pc.File = src.File
	pc.Logger = s.log.With("unit", path)
	pc = declarePipeline.Run(pc)
	s.metrics.ObservePhase(metrics.PhaseDeclare, time.Since(start))

	if pc.Err != nil {
		if s.isAbandoned(path) && errors.Is(pc.Err, context.Canceled) {
			pc.Logger.Warn("unit abandoned while declaring")
			pc.Unit = nil
			return pc, nil
		}
		span.RecordError(pc.Err)
		span.SetStatus(codes.Error, pc.Err.Error())
		return nil, fmt.Errorf("declaring %s: %w", path, pc.Err)
	}
	// the tree's own path names the unit
	pc.FilePath = pc.Unit.Path()
	pc.Logger.Debug("unit declared", "duration", time.Since(start), "diagnostics", pc.Sink.Len())
	return pc, nil
}

// publish freezes the declared units into the session snapshot.
func (s *Session) publish(ctx context.Context, decls []*pipeline.PipelineContext) (*modules.Snapshot, error) {
	_, span := s.tracer.Start(ctx, "session.publish")
	defer span.End()

	start := time.Now()
	units := []*modules.Unit{s.builtins}
	fresh := make(map[string]*declared, len(decls))
	for _, pc := range decls {
		if pc.Unit == nil {
			continue
		}
		units = append(units, pc.Unit)
		fresh[pc.FilePath] = &declared{unit: pc.Unit, diags: pc.Sink.Diagnostics()}
	}
	snap, err := modules.Publish(units)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = snap
	s.units = fresh
	s.mu.Unlock()
	s.metrics.ObservePhase(metrics.PhasePublish, time.Since(start))
	s.log.Debug("snapshot published", "units", len(units)-1, "generation", snap.Generation)
	return snap, nil
}

// resolve runs the resolution stages of one unit against snap.
func (s *Session) resolve(ctx context.Context, snap *modules.Snapshot, path string) (*UnitResult, error) {
	s.mu.Lock()
	decl := s.units[path]
	s.mu.Unlock()
	if decl == nil || snap.Unit(path) != decl.unit {
		if s.isAbandoned(path) {
			s.metrics.RecordUnit(metrics.OutcomeAbandoned)
			return &UnitResult{Path: path, Abandoned: true}, nil
		}
		return nil, fmt.Errorf("resolving %s: %w", path, ErrUnknownUnit)
	}

	uctx, done := s.track(ctx, path)
	defer done()
	uctx, span := s.tracer.Start(uctx, "session.resolve", trace.WithAttributes(
		attribute.String("unit", path),
		attribute.Int("generation", snap.Generation),
	))
	defer span.End()

	start := time.Now()
	pc := &pipeline.PipelineContext{
		Ctx:      uctx,
		Config:   s.cfg,
		Logger:   s.log.With("unit", path),
		FilePath: path,
		File:     decl.unit.File,
		Unit:     decl.unit,
		Snapshot: snap,
		Resolver: resolve.New(snap, s.cfg, s.oracle),
		Sink:     diagnostics.NewSink(path),
	}
	for _, d := range decl.diags {
		pc.Sink.Add(d)
	}
	pc = resolvePipeline.Run(pc)
	s.metrics.ObservePhase(metrics.PhaseResolve, time.Since(start))

	if pc.Err != nil {
		if s.isAbandoned(path) && errors.Is(pc.Err, context.Canceled) {
			pc.Logger.Warn("unit abandoned while resolving")
			s.metrics.RecordUnit(metrics.OutcomeAbandoned)
			return &UnitResult{Path: path, Abandoned: true}, nil
		}
		s.metrics.RecordUnit(metrics.OutcomeFailed)
		span.RecordError(pc.Err)
		span.SetStatus(codes.Error, pc.Err.Error())
		return nil, fmt.Errorf("resolving %s: %w", path, pc.Err)
	}

	res := &UnitResult{
		Path:        path,
		Unit:        decl.unit,
		Map:         pc.Result,
		Diagnostics: pc.Sink.Diagnostics(),
	}
	s.record(res)
	span.SetAttributes(
		attribute.Int("sites", res.Map.Len()),
		attribute.Int("diagnostics", len(res.Diagnostics)),
	)
	pc.Logger.Debug("unit resolved", "duration", time.Since(start), "sites", res.Map.Len(), "diagnostics", len(res.Diagnostics))
	return res, nil
}

func (s *Session) record(res *UnitResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordUnit(metrics.OutcomeResolved)
	for _, r := range res.Map.Sorted() {
		s.metrics.RecordSite(r.Role.String(), r.Status.String())
	}
	for _, d := range res.Diagnostics {
		s.metrics.RecordDiagnostic(string(d.Code))
	}
}
