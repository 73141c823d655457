package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/drblury/docflow/internal/runtime/config"
	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

const (
	defaultMetricsPort     = 9090
	defaultInspectorPort   = 8081
	defaultShutdownTimeout = 30 * time.Second
)

// GraphDependencies holds the optional collaborators of a Graph. Leave fields
// nil to use the Prometheus defaults.
type GraphDependencies struct {
	Metrics  *EngineMetrics
	Gatherer prometheus.Gatherer
	// DocumentLogger receives per-document handler failures of processors
	// built with ProcessorOptions. Defaults to the graph logger scoped with
	// log=documents.
	DocumentLogger loggingpkg.ServiceLogger
	// ShutdownTimeout bounds the graceful stop performed by Run before it
	// falls back to Abort.
	ShutdownTimeout time.Duration
}

// Graph is a named set of wired processors started and stopped together. It
// also serves Prometheus metrics and the inspector when enabled in Config.
type Graph struct {
	Conf           *configpkg.Config
	Logger         loggingpkg.ServiceLogger
	DocumentLogger loggingpkg.ServiceLogger

	metrics         *EngineMetrics
	gatherer        prometheus.Gatherer
	shutdownTimeout time.Duration

	mu     sync.RWMutex
	nodes  []Node
	byName map[string]Node

	httpServersMu sync.Mutex
	httpMuxes     map[int]*http.ServeMux
	httpServers   []*http.Server
	httpListeners []net.Listener
}

// NewGraph validates conf and returns an empty graph.
func NewGraph(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps GraphDependencies) (*Graph, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}
	log = loggingpkg.OrNop(log)
	log.Info("Creating graph", loggingpkg.LogFields{"name": conf.Name, "config": conf})

	g := &Graph{
		Conf:            conf,
		Logger:          log,
		DocumentLogger:  deps.DocumentLogger,
		metrics:         deps.Metrics,
		gatherer:        deps.Gatherer,
		shutdownTimeout: deps.ShutdownTimeout,
		byName:          make(map[string]Node),
	}
	if g.metrics == nil {
		g.metrics = NewEngineMetrics(nil)
	}
	if g.DocumentLogger == nil {
		g.DocumentLogger = log.With(loggingpkg.LogFields{"log": "documents"})
	}
	if g.gatherer == nil {
		g.gatherer = prometheus.DefaultGatherer
	}
	if g.shutdownTimeout <= 0 {
		g.shutdownTimeout = defaultShutdownTimeout
	}
	return g, nil
}

// Metrics returns the collectors shared by the graph's processors.
func (g *Graph) Metrics() *EngineMetrics { return g.metrics }

// ProcessorOptions returns options wiring a new processor to the graph's
// loggers and metrics.
func (g *Graph) ProcessorOptions() []Option {
	return []Option{
		WithLogger(g.Logger),
		WithDocumentLogger(g.DocumentLogger),
		WithMetrics(g.metrics),
	}
}

// RetryMiddleware returns a retry registration tuned by the Retry* config
// keys. Unset keys keep the middleware defaults.
func (g *Graph) RetryMiddleware(retryIf func(error) bool) MiddlewareRegistration {
	return RetryMiddleware(RetryMiddlewareConfig{
		MaxRetries:      g.Conf.RetryMaxRetries,
		InitialInterval: g.Conf.RetryInitialInterval,
		MaxInterval:     g.Conf.RetryMaxInterval,
		RetryIf:         retryIf,
	})
}

// Add registers processors with the graph. Names must be unique. Idle
// processors built without metrics are attached to the graph's collectors.
func (g *Graph) Add(nodes ...Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range nodes {
		p := ProcessorOf(n)
		if p == nil {
			return errspkg.ErrProcessorRequired
		}
		if _, exists := g.byName[p.name]; exists {
			return fmt.Errorf("%w: %s", errspkg.ErrDuplicateProcessor, p.name)
		}
		p.adoptMetrics(g.metrics)
		g.byName[p.name] = n
		g.nodes = append(g.nodes, n)
	}
	return nil
}

func (p *Processor) adoptMetrics(m *EngineMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Active() {
		p.metrics.CompareAndSwap(nil, m)
	}
}

// Connect subscribes a connector of subscriber to a socket of producer and
// registers both with the graph if needed.
func (g *Graph) Connect(producer Node, socketName string, subscriber Node, connectorName string) error {
	for _, n := range []Node{producer, subscriber} {
		p := ProcessorOf(n)
		if p == nil {
			return errspkg.ErrProcessorRequired
		}
		if _, ok := g.Processor(p.name); !ok {
			if err := g.Add(n); err != nil {
				return err
			}
		}
	}
	return ProcessorOf(subscriber).Subscribe(producer, socketName, connectorName)
}

// Processor looks up a registered node by name.
func (g *Graph) Processor(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byName[name]
	return n, ok
}

// Processors lists registered nodes in registration order.
func (g *Graph) Processors() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// startOrder places every subscriber before its producers so nothing is sent
// to a connector that is not accepting yet.
func (g *Graph) startOrder() []*Processor {
	nodes := g.Processors()
	members := make(map[*Processor]bool, len(nodes))
	roots := make([]*Processor, 0, len(nodes))
	for _, n := range nodes {
		p := ProcessorOf(n)
		members[p] = true
		roots = append(roots, p)
	}
	return subscribersFirst(roots, func(p *Processor) bool { return members[p] })
}

// Start starts every processor that is not already running, subscribers first,
// and the metrics and inspector servers when enabled and not already serving.
// If a processor fails to start, those already started are aborted and the
// servers are shut down.
func (g *Graph) Start(ctx context.Context) error {
	if !g.serving() {
		g.registerMetrics()
		g.StartInspectorServer()
		if err := g.startHTTPServers(); err != nil {
			_ = g.Close()
			return err
		}
	}

	started, err := startInOrder(ctx, g.startOrder())
	if err != nil {
		_ = g.Close()
		return err
	}
	g.Logger.Info("Graph started", loggingpkg.LogFields{"processors": len(started)})
	return nil
}

// Stop stops processors producers first so each drains into subscribers that
// are still accepting, waiting for every processor before moving on.
func (g *Graph) Stop(ctx context.Context) error {
	order := g.startOrder()
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		p := order[i]
		if p.State() == StateIdle {
			continue
		}
		if err := p.Stop(); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.WaitContext(ctx); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}
	return errors.Join(errs...)
}

// Abort aborts every active processor without waiting.
func (g *Graph) Abort() {
	for _, n := range g.Processors() {
		p := ProcessorOf(n)
		if p.State().Active() {
			_ = p.Abort()
		}
	}
}

// Wait blocks until every processor has finished its current run.
func (g *Graph) Wait(ctx context.Context) error {
	for _, n := range g.Processors() {
		if err := ProcessorOf(n).WaitContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the graph and blocks until every processor has finished or ctx is
// cancelled. Cancellation triggers a graceful Stop bounded by the shutdown
// timeout, then Abort.
func (g *Graph) Run(ctx context.Context) error {
	if err := g.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	defer g.Close()

	finished := make(chan struct{})
	go func() {
		_ = g.Wait(context.Background())
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
	}

	g.Logger.Info("Stopping graph", loggingpkg.LogFields{"timeout": g.shutdownTimeout.String()})
	stopCtx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
	defer cancel()
	if err := g.Stop(stopCtx); err != nil {
		g.Logger.Error("Graceful stop failed, aborting", err, nil)
		g.Abort()
		<-finished
		return err
	}
	<-finished
	return nil
}

// Close shuts the HTTP servers down. Processors are left untouched.
func (g *Graph) Close() error {
	g.httpServersMu.Lock()
	servers, listeners := g.httpServers, g.httpListeners
	g.httpServers, g.httpListeners = nil, nil
	g.httpServersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	// Serve may not have taken ownership of its listener yet.
	for _, ln := range listeners {
		_ = ln.Close()
	}
	return errors.Join(errs...)
}

func (g *Graph) serving() bool {
	g.httpServersMu.Lock()
	defer g.httpServersMu.Unlock()
	return len(g.httpServers) > 0
}

func (g *Graph) registerMetrics() {
	if !g.Conf.MetricsEnabled {
		return
	}
	if err := g.metrics.Register(); err != nil {
		g.Logger.Error("Failed to register metrics", err, nil)
		return
	}
	port := g.Conf.MetricsPort
	if port == 0 {
		port = defaultMetricsPort
	}
	g.RegisterHTTPHandler(port, "/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
}

// RegisterHTTPHandler adds handler to the server listening on port. Servers
// are started by Start.
func (g *Graph) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	g.httpServersMu.Lock()
	defer g.httpServersMu.Unlock()

	if g.httpMuxes == nil {
		g.httpMuxes = make(map[int]*http.ServeMux)
	}

	mux, ok := g.httpMuxes[port]
	if !ok {
		mux = http.NewServeMux()
		g.httpMuxes[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (g *Graph) startHTTPServers() error {
	g.httpServersMu.Lock()
	defer g.httpServersMu.Unlock()

	muxes := g.httpMuxes
	g.httpMuxes = nil
	for port, mux := range muxes {
		addr := fmt.Sprintf(":%d", port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.httpServers = append(g.httpServers, srv)
		g.httpListeners = append(g.httpListeners, ln)

		g.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": addr})
			}
		}()
	}
	return nil
}
