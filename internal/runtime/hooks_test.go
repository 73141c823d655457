package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHookedConnector(t *testing.T) *Connector {
	t.Helper()
	p := NewProcessor(ProcessorConfig{Name: "hooked"})
	c, err := p.CreateConnector("in", NewProtocol("text"), noopHandler)
	require.NoError(t, err)
	return c
}

func TestDocumentHooks_OnDocumentStart(t *testing.T) {
	var called bool
	var captured DocumentContext

	c := newHookedConnector(t)
	mw := documentHooksMiddleware(c, DocumentHooks{
		OnDocumentStart: func(ctx DocumentContext) {
			called = true
			captured = ctx
		},
	})
	handler := mw(func(context.Context, Document) error { return nil })

	require.NoError(t, handler(context.Background(), "payload"))
	assert.True(t, called)
	assert.Equal(t, "hooked", captured.Processor)
	assert.Equal(t, "in", captured.Connector)
	assert.Equal(t, "text", captured.Protocol.String())
	assert.Equal(t, "payload", captured.Document)
	assert.False(t, captured.StartedAt.IsZero())
	assert.Zero(t, captured.Duration)
}

func TestDocumentHooks_OnDocumentDone(t *testing.T) {
	var captured DocumentContext

	c := newHookedConnector(t)
	mw := documentHooksMiddleware(c, DocumentHooks{
		OnDocumentDone: func(ctx DocumentContext) { captured = ctx },
		OnDocumentError: func(DocumentContext, error) {
			t.Fatal("error hook must not run on success")
		},
	})
	handler := mw(func(context.Context, Document) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	require.NoError(t, handler(context.Background(), 1))
	assert.GreaterOrEqual(t, captured.Duration, 10*time.Millisecond)
}

func TestDocumentHooks_OnDocumentError(t *testing.T) {
	expected := errors.New("handler error")
	var captured error
	var doneCalled bool

	c := newHookedConnector(t)
	mw := documentHooksMiddleware(c, DocumentHooks{
		OnDocumentDone:  func(DocumentContext) { doneCalled = true },
		OnDocumentError: func(_ DocumentContext, err error) { captured = err },
	})
	handler := mw(func(context.Context, Document) error { return expected })

	err := handler(context.Background(), 1)
	require.ErrorIs(t, err, expected)
	assert.ErrorIs(t, captured, expected)
	assert.False(t, doneCalled)
}

func TestDocumentHooks_NilHooks(t *testing.T) {
	c := newHookedConnector(t)
	handler := documentHooksMiddleware(c, DocumentHooks{})(noopHandler)
	assert.NoError(t, handler(context.Background(), nil))
}

func TestDocumentHooks_Merge(t *testing.T) {
	var order []string
	first := DocumentHooks{
		OnDocumentStart: func(DocumentContext) { order = append(order, "first-start") },
		OnDocumentError: func(DocumentContext, error) { order = append(order, "first-error") },
	}
	second := DocumentHooks{
		OnDocumentStart: func(DocumentContext) { order = append(order, "second-start") },
		OnDocumentDone:  func(DocumentContext) { order = append(order, "second-done") },
		OnDocumentError: func(DocumentContext, error) { order = append(order, "second-error") },
	}
	merged := first.Merge(second)

	merged.OnDocumentStart(DocumentContext{})
	merged.OnDocumentDone(DocumentContext{})
	merged.OnDocumentError(DocumentContext{}, errors.New("x"))

	assert.Equal(t, []string{"first-start", "second-start", "second-done", "first-error", "second-error"}, order)
}

func TestLoggingHooks(t *testing.T) {
	log := newRecordingLogger()
	hooks := LoggingHooks(log)

	dc := DocumentContext{Processor: "p", Connector: "c", Protocol: NewProtocol("text"), RunID: "run", Duration: 5 * time.Millisecond}
	hooks.OnDocumentStart(dc)
	hooks.OnDocumentDone(dc)
	hooks.OnDocumentError(dc, errors.New("boom"))

	records := log.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "debug", records[0].level)
	assert.Equal(t, "Document completed", records[1].msg)
	assert.Equal(t, int64(5), records[1].fields["duration_ms"])
	assert.Equal(t, "error", records[2].level)
	assert.Equal(t, "run", records[2].fields["run_id"])
}

func TestMetricsHooks(t *testing.T) {
	var mu sync.Mutex
	counts := map[string]int{}
	count := func(kind string) func(processor, connector string) {
		return func(processor, connector string) {
			mu.Lock()
			defer mu.Unlock()
			counts[kind+":"+processor+"."+connector]++
		}
	}
	hooks := MetricsHooks(count("start"), count("done"), count("error"))

	dc := DocumentContext{Processor: "p", Connector: "c"}
	hooks.OnDocumentStart(dc)
	hooks.OnDocumentDone(dc)
	hooks.OnDocumentError(dc, errors.New("x"))

	assert.Equal(t, map[string]int{"start:p.c": 1, "done:p.c": 1, "error:p.c": 1}, counts)
	assert.NotPanics(t, func() {
		MetricsHooks(nil, nil, nil).OnDocumentError(dc, errors.New("x"))
	})
}

func TestAlertingHooks(t *testing.T) {
	var alerted error
	hooks := AlertingHooks(func(_ DocumentContext, err error) { alerted = err })
	assert.Nil(t, hooks.OnDocumentStart)
	assert.Nil(t, hooks.OnDocumentDone)

	boom := errors.New("boom")
	hooks.OnDocumentError(DocumentContext{}, boom)
	assert.Equal(t, boom, alerted)
}

func TestWithDocumentHooksRunsOnWorker(t *testing.T) {
	var mu sync.Mutex
	var runIDs []string
	p := NewProcessor(ProcessorConfig{Name: "hooks"}, WithDocumentHooks(DocumentHooks{
		OnDocumentDone: func(ctx DocumentContext) {
			mu.Lock()
			defer mu.Unlock()
			runIDs = append(runIDs, ctx.RunID)
		},
	}))
	_, err := p.CreateConnector("", Any, noopHandler)
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Put("a", ""))
	require.NoError(t, p.Put("b", ""))
	require.NoError(t, p.Stop())
	waitDone(t, p)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, runIDs, 2)
	assert.Equal(t, p.RunID(), runIDs[0])
}
