package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

const (
	defaultTickInterval        = time.Millisecond
	defaultIdleInitialInterval = 5 * time.Millisecond
	defaultIdleMaxInterval     = 250 * time.Millisecond
)

// GeneratorConfig configures the driving loop of a generator or monitor.
type GeneratorConfig struct {
	ProcessorConfig

	// TickInterval is the pause between two ticks. Zero selects 1ms, a
	// negative value ticks back to back.
	TickInterval time.Duration
	// IdleInitialInterval and IdleMaxInterval bound the exponential backoff
	// used while suspended. Resume, Stop and Abort cut the wait short.
	IdleInitialInterval time.Duration
	IdleMaxInterval     time.Duration
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.TickInterval == 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.IdleInitialInterval <= 0 {
		c.IdleInitialInterval = defaultIdleInitialInterval
	}
	if c.IdleMaxInterval <= 0 {
		c.IdleMaxInterval = defaultIdleMaxInterval
	}
	if c.IdleMaxInterval < c.IdleInitialInterval {
		c.IdleMaxInterval = c.IdleInitialInterval
	}
	return c
}

// Generator is a processor with its own driving goroutine that originates
// documents by calling OnTick repeatedly. It stops itself by calling Stop from
// inside OnTick.
type Generator struct {
	*Processor

	conf  GeneratorConfig
	hooks GeneratorHooks

	total atomic.Int64
	count atomic.Int64
}

// NewGenerator creates an idle generator.
func NewGenerator(conf GeneratorConfig, hooks GeneratorHooks, opts ...Option) *Generator {
	return newGenerator(kindGenerator, conf, hooks, opts...)
}

// NewMonitor creates a generator meant to run until stopped or aborted from
// outside, typically one that polls or listens to an external source.
func NewMonitor(conf GeneratorConfig, hooks GeneratorHooks, opts ...Option) *Generator {
	return newGenerator(kindMonitor, conf, hooks, opts...)
}

func newGenerator(kind string, conf GeneratorConfig, hooks GeneratorHooks, opts ...Option) *Generator {
	conf = conf.withDefaults()
	g := &Generator{
		Processor: newProcessor(kind, conf.ProcessorConfig, opts...),
		conf:      conf,
		hooks:     hooks,
	}
	g.drive = g.run
	g.resetRun = g.resetProgress
	return g
}

// Config returns the effective configuration.
func (g *Generator) Config() GeneratorConfig { return g.conf }

// SetTotal records how many documents the generator expects to produce.
func (g *Generator) SetTotal(n int64) { g.total.Store(n) }
func (g *Generator) Total() int64     { return g.total.Load() }

// Add advances the produced-documents counter.
func (g *Generator) Add(n int64) int64 { return g.count.Add(n) }
func (g *Generator) Count() int64      { return g.count.Load() }

// Progress is Count/Total, or 0 while the total is unknown.
func (g *Generator) Progress() float64 {
	total := g.total.Load()
	if total <= 0 {
		return 0
	}
	return float64(g.count.Load()) / float64(total)
}

func (g *Generator) resetProgress() {
	g.total.Store(0)
	g.count.Store(0)
}

type drivePhase int

const (
	phaseTick drivePhase = iota
	phaseIdle
	phaseShutdown
	phaseExit
)

func (g *Generator) phase(ctx context.Context) drivePhase {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.state == StateAborting || ctx.Err() != nil:
		return phaseExit
	case g.state == StateStopping || g.restarting:
		return phaseShutdown
	case g.suspended:
		return phaseIdle
	}
	return phaseTick
}

func (g *Generator) run(ctx context.Context) {
	defer g.workerFinished()

	g.mu.Lock()
	wake := g.wake
	g.mu.Unlock()

	if g.hooks.OnStartup != nil {
		err := g.guard("startup", func() error { return g.hooks.OnStartup(ctx, g) })
		if err != nil {
			g.proclog.Error("generator startup failed", err, nil)
			_ = g.Abort()
			return
		}
	}

	idle := g.newIdleBackoff()
	for {
		switch g.phase(ctx) {
		case phaseExit:
			return
		case phaseShutdown:
			if g.hooks.OnShutdown != nil {
				if err := g.guard("shutdown", func() error {
					g.hooks.OnShutdown(ctx, g)
					return nil
				}); err != nil {
					g.proclog.Error("generator shutdown hook panicked", err, nil)
				}
			}
			return
		case phaseIdle:
			g.pause(ctx, wake, idle.NextBackOff())
			continue
		}

		idle.Reset()
		g.tick(ctx)
		if g.conf.TickInterval > 0 {
			g.pause(ctx, wake, g.conf.TickInterval)
		}
	}
}

func (g *Generator) tick(ctx context.Context) {
	if g.hooks.OnTick == nil {
		return
	}
	g.engineMetrics().tick(g.name)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "docflow.tick",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("docflow.processor", g.name),
			attribute.String("docflow.kind", g.kind),
		),
	)
	defer span.End()

	err := g.guard("tick", func() error { return g.hooks.OnTick(ctx, g) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.doclog.Error("generator tick failed", err, loggingpkg.LogFields{"kind": g.kind})
	}
}

func (g *Generator) pause(ctx context.Context, wake <-chan struct{}, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := g.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-wake:
	case <-ctx.Done():
	}
}

func (g *Generator) newIdleBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.conf.IdleInitialInterval
	b.MaxInterval = g.conf.IdleMaxInterval
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Clock = g.clock
	b.Reset()
	return b
}
