package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGenerator emits the integers 1..n and stops itself.
func countingGenerator(name string, n int64, events *[]string, mu *sync.Mutex) *Generator {
	note := func(e string) {
		if events == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, e)
	}
	gen := NewGenerator(GeneratorConfig{ProcessorConfig: ProcessorConfig{Name: name}}, GeneratorHooks{
		OnStartup: func(_ context.Context, g *Generator) error {
			note("startup")
			g.SetTotal(n)
			return nil
		},
		OnTick: func(_ context.Context, g *Generator) error {
			next := g.Add(1)
			if err := g.Send(next, ""); err != nil {
				return err
			}
			if next >= g.Total() {
				return g.Stop()
			}
			return nil
		},
		OnShutdown: func(context.Context, *Generator) { note("shutdown") },
	})
	gen.MustCreateSocket("", NewProtocol("number"))
	return gen
}

func TestGeneratorProducesAndStopsItself(t *testing.T) {
	var mu sync.Mutex
	var events []string
	gen := countingGenerator("counter", 5, &events, &mu)

	var got collector
	sink := newSink(t, "sink", NewProtocol("number"), &got)
	require.NoError(t, sink.Subscribe(gen, "", ""))

	require.NoError(t, sink.Start(context.Background()))
	require.NoError(t, gen.Start(context.Background()))
	waitDone(t, gen)

	assert.Equal(t, StateStopped, gen.State())
	assert.Equal(t, StateStopped, sink.State())
	assert.Equal(t, []Document{int64(1), int64(2), int64(3), int64(4), int64(5)}, got.Docs())
	assert.Equal(t, int64(5), gen.Count())
	assert.InDelta(t, 1.0, gen.Progress(), 1e-9)
	assert.Equal(t, "generator", gen.Kind())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"startup", "shutdown"}, events)
}

func TestGeneratorRestartResetsProgress(t *testing.T) {
	gen := countingGenerator("counter", 3, nil, nil)
	require.NoError(t, gen.Start(context.Background()))
	waitDone(t, gen)
	assert.Equal(t, int64(3), gen.Count())

	require.NoError(t, gen.Start(context.Background()))
	waitDone(t, gen)
	assert.Equal(t, int64(3), gen.Count())
	assert.Equal(t, int64(3), gen.Total())
}

func TestGeneratorStartupFailureAborts(t *testing.T) {
	log := newRecordingLogger()
	var ticks atomic.Int32
	gen := NewGenerator(GeneratorConfig{ProcessorConfig: ProcessorConfig{Name: "broken"}}, GeneratorHooks{
		OnStartup: func(context.Context, *Generator) error { return errors.New("no source") },
		OnTick: func(context.Context, *Generator) error {
			ticks.Add(1)
			return nil
		},
	}, WithLogger(log))

	require.NoError(t, gen.Start(context.Background()))
	waitDone(t, gen)
	assert.Equal(t, StateAborted, gen.State())
	assert.Zero(t, ticks.Load())
	require.NotEmpty(t, log.Errors())
	assert.Equal(t, "generator startup failed", log.Errors()[0].msg)
}

func TestGeneratorAbortSkipsShutdown(t *testing.T) {
	var shutdown atomic.Bool
	var ticks atomic.Int32
	gen := NewMonitor(GeneratorConfig{ProcessorConfig: ProcessorConfig{Name: "watch"}}, GeneratorHooks{
		OnTick: func(context.Context, *Generator) error {
			ticks.Add(1)
			return nil
		},
		OnShutdown: func(context.Context, *Generator) { shutdown.Store(true) },
	})
	assert.Equal(t, "monitor", gen.Kind())

	require.NoError(t, gen.Start(context.Background()))
	require.Eventually(t, func() bool { return ticks.Load() > 2 }, waitTimeout, time.Millisecond)
	require.NoError(t, gen.Abort())
	waitDone(t, gen)

	assert.Equal(t, StateAborted, gen.State())
	assert.False(t, shutdown.Load())
}

func TestGeneratorSuspendStopsTicking(t *testing.T) {
	var ticks atomic.Int32
	gen := NewMonitor(GeneratorConfig{
		ProcessorConfig:     ProcessorConfig{Name: "watch"},
		IdleInitialInterval: time.Hour,
		IdleMaxInterval:     time.Hour,
	}, GeneratorHooks{
		OnTick: func(context.Context, *Generator) error {
			ticks.Add(1)
			return nil
		},
	})

	require.NoError(t, gen.Start(context.Background()))
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, waitTimeout, time.Millisecond)

	require.NoError(t, gen.Suspend())
	time.Sleep(20 * time.Millisecond)
	frozen := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, ticks.Load())

	// Resume wakes the loop even though the idle backoff is an hour long.
	require.NoError(t, gen.Resume())
	require.Eventually(t, func() bool { return ticks.Load() > frozen }, waitTimeout, time.Millisecond)

	require.NoError(t, gen.Suspend())
	require.NoError(t, gen.Stop())
	waitDone(t, gen)
	assert.Equal(t, StateStopped, gen.State())
}

func TestGeneratorTickErrorsAreLogged(t *testing.T) {
	doclog := newRecordingLogger()
	var ticks atomic.Int32
	gen := NewGenerator(GeneratorConfig{ProcessorConfig: ProcessorConfig{Name: "flaky"}}, GeneratorHooks{
		OnTick: func(_ context.Context, g *Generator) error {
			switch ticks.Add(1) {
			case 1:
				return errors.New("transient")
			case 2:
				panic("tick exploded")
			}
			return g.Stop()
		},
	}, WithDocumentLogger(doclog))

	require.NoError(t, gen.Start(context.Background()))
	waitDone(t, gen)

	errs := doclog.Errors()
	require.Len(t, errs, 2)
	assert.ErrorContains(t, errs[0].err, "transient")
	var pe *PanicError
	assert.ErrorAs(t, errs[1].err, &pe)
	assert.True(t, strings.HasPrefix(errs[1].err.Error(), "tick hook"))
}

func TestGeneratorUsesInjectedClock(t *testing.T) {
	mock := clock.NewMock()
	var ticks atomic.Int32
	gen := NewMonitor(GeneratorConfig{
		ProcessorConfig: ProcessorConfig{Name: "slow"},
		TickInterval:    time.Minute,
	}, GeneratorHooks{
		OnTick: func(context.Context, *Generator) error {
			ticks.Add(1)
			return nil
		},
	}, WithClock(mock))

	require.NoError(t, gen.Start(context.Background()))
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, waitTimeout, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())

	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		return ticks.Load() >= 3
	}, waitTimeout, time.Millisecond)

	require.NoError(t, gen.Stop())
	waitDone(t, gen)
}

func TestGeneratorConfigDefaults(t *testing.T) {
	conf := GeneratorConfig{}.withDefaults()
	assert.Equal(t, defaultTickInterval, conf.TickInterval)
	assert.Equal(t, defaultIdleInitialInterval, conf.IdleInitialInterval)
	assert.Equal(t, defaultIdleMaxInterval, conf.IdleMaxInterval)

	conf = GeneratorConfig{TickInterval: -1, IdleInitialInterval: time.Second, IdleMaxInterval: time.Millisecond}.withDefaults()
	assert.Equal(t, time.Duration(-1), conf.TickInterval)
	assert.Equal(t, time.Second, conf.IdleMaxInterval)
}

func TestGeneratorRestartInPlace(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	note := func(e string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}
	noted := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), events...)
	}

	gen := NewMonitor(GeneratorConfig{
		ProcessorConfig:     ProcessorConfig{Name: "watch"},
		IdleInitialInterval: time.Hour,
		IdleMaxInterval:     time.Hour,
	}, GeneratorHooks{
		OnStartup:  func(context.Context, *Generator) error { note("startup"); return nil },
		OnTick:     func(context.Context, *Generator) error { return nil },
		OnShutdown: func(context.Context, *Generator) { note("shutdown") },
	})

	ctx := context.Background()
	require.NoError(t, gen.Start(ctx))
	require.NoError(t, gen.Suspend())
	run := gen.RunID()

	require.NoError(t, gen.Restart(ctx))
	require.Eventually(t, func() bool { return len(noted()) == 3 }, waitTimeout, time.Millisecond)
	assert.Equal(t, []string{"startup", "shutdown", "startup"}, noted())
	assert.Equal(t, StateRunning, gen.State())
	assert.False(t, gen.Suspended())
	assert.Equal(t, run, gen.RunID())

	require.NoError(t, gen.Stop())
	waitDone(t, gen)
	assert.Equal(t, []string{"startup", "shutdown", "startup", "shutdown"}, noted())
	assert.Equal(t, StateStopped, gen.State())
}
