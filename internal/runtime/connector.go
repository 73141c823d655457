package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

// Document is the opaque value exchanged between processors. Documents are
// passed by reference and never copied by the engine; a document fanned out
// to several connectors is the same instance in every handler.
type Document = any

// HandlerFunc processes one document taken from a connector queue. A returned
// error is logged to the owning processor's document log and the worker moves
// on to the next document.
type HandlerFunc func(ctx context.Context, doc Document) error

// Connector is a queued inbound endpoint. Each connector owns an unbounded FIFO
// queue drained by one worker goroutine while its processor is running.
type Connector struct {
	owner       *Processor
	name        string
	protocol    Protocol
	description string
	handler     HandlerFunc

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Document
	accepting bool
	aborted   bool
	paused    bool
	inflight  bool
	sources   map[*Socket]struct{}
	run       HandlerFunc

	stats *ConnectorStats
}

func newConnector(owner *Processor, name string, protocol Protocol, handler HandlerFunc, settings terminalSettings) *Connector {
	c := &Connector{
		owner:       owner,
		name:        name,
		protocol:    protocol,
		description: settings.description,
		handler:     handler,
		sources:     make(map[*Socket]struct{}),
		stats:       newConnectorStats(owner.resources, owner.classifier),
	}
	c.cond = sync.NewCond(&c.mu)
	c.run = handler
	return c
}

func (c *Connector) Name() string           { return c.name }
func (c *Connector) Protocol() Protocol     { return c.protocol }
func (c *Connector) Description() string    { return c.description }
func (c *Connector) Processor() *Processor  { return c.owner }
func (c *Connector) Stats() *ConnectorStats { return c.stats }

// Accepting reports whether enqueued documents are currently kept.
func (c *Connector) Accepting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepting
}

// Len is the number of documents waiting in the queue.
func (c *Connector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Connections is the number of sockets currently attached to the connector.
func (c *Connector) Connections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

func (c *Connector) sockets() []*Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Socket, 0, len(c.sources))
	for s := range c.sources {
		out = append(out, s)
	}
	return out
}

func (c *Connector) addSource(s *Socket) {
	c.mu.Lock()
	c.sources[s] = struct{}{}
	c.mu.Unlock()
}

func (c *Connector) removeSource(s *Socket) {
	c.mu.Lock()
	delete(c.sources, s)
	c.mu.Unlock()
}

// enqueue appends doc when the connector is accepting and drops it otherwise.
// It never blocks beyond the queue lock.
func (c *Connector) enqueue(doc Document) bool {
	c.mu.Lock()
	if !c.accepting {
		c.mu.Unlock()
		c.stats.onDropped(1)
		c.owner.engineMetrics().documentsDropped(c.owner.name, c.name, 1)
		return false
	}
	c.queue = append(c.queue, doc)
	depth := len(c.queue)
	c.cond.Broadcast()
	c.mu.Unlock()

	c.stats.onEnqueued(depth)
	c.owner.engineMetrics().documentEnqueued(c.owner.name, c.name, depth)
	return true
}

// next blocks until a document is available and the connector is not paused.
// It reports false once the queue is drained after close, or immediately after
// abort.
func (c *Connector) next() (Document, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight {
		c.inflight = false
		c.cond.Broadcast()
	}
	for !c.aborted && (c.paused || (len(c.queue) == 0 && c.accepting)) {
		c.cond.Wait()
	}
	if c.aborted || len(c.queue) == 0 {
		return nil, 0, false
	}
	doc := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	c.inflight = true
	return doc, len(c.queue), true
}

// pause holds the worker before its next document and waits for the document
// in flight, if any, to finish. The queue keeps accepting.
func (c *Connector) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	for c.inflight && !c.aborted {
		c.cond.Wait()
	}
}

func (c *Connector) resume() {
	c.mu.Lock()
	c.paused = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

// reset prepares the connector for a new run with a freshly built handler
// chain.
func (c *Connector) reset(run HandlerFunc) {
	c.mu.Lock()
	c.queue = nil
	c.accepting = true
	c.aborted = false
	c.paused = false
	c.inflight = false
	c.run = run
	c.mu.Unlock()
	c.stats.reset()
	c.owner.engineMetrics().setQueueDepth(c.owner.name, c.name, 0)
}

// close stops accepting; queued documents are still delivered.
func (c *Connector) close() {
	c.mu.Lock()
	c.accepting = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

// abort stops accepting and discards everything not yet handed to the handler.
func (c *Connector) abort() {
	c.mu.Lock()
	c.accepting = false
	c.aborted = true
	dropped := len(c.queue)
	c.queue = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	c.stats.onDropped(dropped)
	c.owner.engineMetrics().documentsDropped(c.owner.name, c.name, dropped)
	c.owner.engineMetrics().setQueueDepth(c.owner.name, c.name, 0)
}

func (c *Connector) work(ctx context.Context) {
	defer c.owner.workerFinished()

	c.mu.Lock()
	run := c.run
	c.mu.Unlock()

	for {
		doc, depth, ok := c.next()
		if !ok {
			return
		}
		c.owner.engineMetrics().setQueueDepth(c.owner.name, c.name, depth)
		c.dispatch(ctx, run, doc, depth)
	}
}

func (c *Connector) dispatch(ctx context.Context, run HandlerFunc, doc Document, depth int) {
	c.stats.onStart(depth)
	started := time.Now()

	err := c.invoke(ctx, run, doc)

	elapsed := time.Since(started)
	c.stats.onFinish(elapsed, err)
	c.owner.engineMetrics().documentHandled(c.owner.name, c.name, elapsed, err)

	if err != nil {
		c.owner.doclog.Error("document handler failed", &errspkg.DocumentHandlerError{
			Processor: c.owner.name,
			Connector: c.name,
			Err:       err,
		}, loggingpkg.LogFields{
			"processor": c.owner.name,
			"connector": c.name,
			"protocol":  c.protocol.String(),
		})
	}
}

// invoke isolates the worker from handler panics even when the recoverer
// middleware has been removed from the chain.
func (c *Connector) invoke(ctx context.Context, run HandlerFunc, doc Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return run(ctx, doc)
}

func (c *Connector) String() string {
	return fmt.Sprintf("%s.%s(%s)", c.owner.name, c.name, c.protocol)
}
