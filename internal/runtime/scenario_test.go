package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// negator reverses the sign of every integer it receives.
type negator struct {
	*Processor
}

func newNegator(name string) *negator {
	n := &negator{Processor: NewProcessor(ProcessorConfig{Name: name})}
	n.MustCreateConnector("in", NewProtocol("number.int"), n.handle)
	n.MustCreateSocket("out", NewProtocol("number.int"))
	return n
}

func (n *negator) handle(_ context.Context, doc Document) error {
	return n.Send(-doc.(int), "out")
}

func TestEndToEndGeneratorToNegator(t *testing.T) {
	a := NewGenerator(GeneratorConfig{ProcessorConfig: ProcessorConfig{Name: "A"}}, GeneratorHooks{
		OnTick: func(_ context.Context, g *Generator) error {
			next := g.Add(1)
			if err := g.Send(int(next), "out"); err != nil {
				return err
			}
			if next == 3 {
				return g.Stop()
			}
			return nil
		},
	})
	a.MustCreateSocket("out", NewProtocol("number.int"))

	b := newNegator("B")
	require.NoError(t, b.Subscribe(a, "out", "in"))

	var mu sync.Mutex
	var collected []int
	require.NoError(t, b.AddCallback(func(doc Document) {
		mu.Lock()
		defer mu.Unlock()
		collected = append(collected, doc.(int))
	}, "out"))

	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, a.Start(context.Background()))
	a.Wait()

	assert.Equal(t, StateStopped, a.State())
	assert.Equal(t, StateStopped, b.State())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{-1, -2, -3}, collected)
}

func TestConnectorPreservesFIFO(t *testing.T) {
	var got collector
	p := newSink(t, "fifo", Any, &got)
	require.NoError(t, p.Start(context.Background()))

	want := make([]Document, 0, 1000)
	for i := range 1000 {
		want = append(want, i)
		require.NoError(t, p.Put(i, ""))
	}
	require.NoError(t, p.Stop())
	waitDone(t, p)
	assert.Equal(t, want, got.Docs())
}

func TestFanOutSharesReference(t *testing.T) {
	type record struct {
		mu   sync.Mutex
		seen []string
	}
	producer := newProducer("producer", Any)

	firstDone := make(chan struct{})
	var second *record
	left := NewProcessor(ProcessorConfig{Name: "left"})
	left.MustCreateConnector("", Any, func(_ context.Context, doc Document) error {
		r := doc.(*record)
		r.mu.Lock()
		r.seen = append(r.seen, "left")
		r.mu.Unlock()
		close(firstDone)
		return nil
	})
	right := NewProcessor(ProcessorConfig{Name: "right"})
	right.MustCreateConnector("", Any, func(_ context.Context, doc Document) error {
		<-firstDone
		r := doc.(*record)
		r.mu.Lock()
		r.seen = append(r.seen, "right")
		r.mu.Unlock()
		second = r
		return nil
	})
	require.NoError(t, left.Subscribe(producer, "", ""))
	require.NoError(t, right.Subscribe(producer, "", ""))
	require.NoError(t, left.Start(context.Background()))
	require.NoError(t, right.Start(context.Background()))

	doc := &record{}
	require.NoError(t, producer.Send(doc, ""))
	require.NoError(t, left.Stop())
	require.NoError(t, right.Stop())
	waitDone(t, left)
	waitDone(t, right)

	assert.Same(t, doc, second)
	assert.Equal(t, []string{"left", "right"}, doc.seen)
}

func TestCascadingStopRespectsKeepalive(t *testing.T) {
	a := NewProcessor(ProcessorConfig{Name: "a"})
	a.MustCreateConnector("", Any, noopHandler)
	a.MustCreateSocket("", Any)

	var got collector
	cascaded := newSink(t, "cascaded", Any, &got)
	kept := newSink(t, "kept", Any, &got)
	kept.SetKeepalive(true)
	require.NoError(t, cascaded.Subscribe(a, "", ""))
	require.NoError(t, kept.Subscribe(a, "", ""))

	for _, p := range []*Processor{cascaded, kept, a} {
		require.NoError(t, p.Start(context.Background()))
	}
	require.NoError(t, a.Stop())
	a.Wait()

	assert.Equal(t, StateStopped, cascaded.State())
	assert.Equal(t, StateRunning, kept.State())

	require.NoError(t, kept.Stop())
	waitDone(t, kept)
	assert.Equal(t, StateStopped, kept.State())
}

func TestAbortCascades(t *testing.T) {
	a := newProducer("a", Any)
	a.MustCreateConnector("", Any, noopHandler)
	var got collector
	b := newSink(t, "b", Any, &got)
	require.NoError(t, b.Subscribe(a, "", ""))

	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Abort())
	a.Wait()
	assert.Equal(t, StateAborted, b.State())
}

func TestFanInStopsOnFirstProducer(t *testing.T) {
	first := newProducer("first", Any)
	first.MustCreateConnector("", Any, noopHandler)
	second := newProducer("second", Any)
	second.MustCreateConnector("", Any, noopHandler)

	var got collector
	sink := newSink(t, "sink", Any, &got)
	require.NoError(t, sink.Subscribe(first, "", ""))
	require.NoError(t, sink.Subscribe(second, "", ""))

	for _, p := range []*Processor{sink, first, second} {
		require.NoError(t, p.Start(context.Background()))
	}
	require.NoError(t, first.Stop())
	first.Wait()

	assert.Equal(t, StateStopped, sink.State())
	assert.Equal(t, StateRunning, second.State())
	require.NoError(t, second.Send("late", ""))
	assert.Zero(t, got.Len())

	require.NoError(t, second.Stop())
	waitDone(t, second)
}

func TestDrainVersusAbort(t *testing.T) {
	run := func(t *testing.T, shutdown func(*Processor) error) int {
		gate := make(chan struct{})
		var got collector
		p := NewProcessor(ProcessorConfig{Name: "p"})
		p.MustCreateConnector("", Any, func(ctx context.Context, doc Document) error {
			<-gate
			return got.handle(ctx, doc)
		})
		require.NoError(t, p.Start(context.Background()))
		for i := range 10 {
			require.NoError(t, p.Put(i, ""))
		}
		require.NoError(t, shutdown(p))
		close(gate)
		waitDone(t, p)
		return got.Len()
	}

	t.Run("stop drains", func(t *testing.T) {
		assert.Equal(t, 10, run(t, (*Processor).Stop))
	})
	t.Run("abort discards queued documents", func(t *testing.T) {
		assert.LessOrEqual(t, run(t, (*Processor).Abort), 1)
	})
}

func TestPutRejectedOutsideRun(t *testing.T) {
	var got collector
	p := newSink(t, "p", Any, &got)
	assert.Error(t, p.Put(1, ""))

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Put(1, ""))
	require.NoError(t, p.Stop())
	assert.Error(t, p.Put(2, ""))
	waitDone(t, p)
	assert.Error(t, p.Put(3, ""))
	assert.Equal(t, []Document{1}, got.Docs())
}

func TestCycleStopsWithoutDeadlock(t *testing.T) {
	a := newProducer("a", Any)
	a.MustCreateConnector("", Any, noopHandler)
	b := newProducer("b", Any)
	b.MustCreateConnector("", Any, noopHandler)
	require.NoError(t, b.Subscribe(a, "", ""))
	require.NoError(t, a.Subscribe(b, "", ""))

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, a.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, a.WaitContext(ctx))
	require.NoError(t, b.WaitContext(ctx))
	assert.Equal(t, StateStopped, a.State())
	assert.Equal(t, StateStopped, b.State())
}

func TestRestartProducesSameOutput(t *testing.T) {
	b := newNegator("B")
	var mu sync.Mutex
	var collected []int
	require.NoError(t, b.AddCallback(func(doc Document) {
		mu.Lock()
		defer mu.Unlock()
		collected = append(collected, doc.(int))
	}, "out"))

	for range 2 {
		require.NoError(t, b.Start(context.Background()))
		for _, v := range []int{4, 5} {
			require.NoError(t, b.Put(v, "in"))
		}
		require.NoError(t, b.Abort())
		waitDone(t, b)
		require.NoError(t, b.Start(context.Background()))
		for _, v := range []int{1, 2} {
			require.NoError(t, b.Put(v, "in"))
		}
		require.NoError(t, b.Stop())
		waitDone(t, b)

		mu.Lock()
		assert.Equal(t, []int{-1, -2}, collected[len(collected)-2:])
		mu.Unlock()
	}
	assert.Equal(t, StateStopped, b.State())
}
