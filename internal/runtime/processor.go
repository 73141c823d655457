package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	idspkg "github.com/drblury/docflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

const (
	DefaultConnectorName = "input"
	DefaultSocketName    = "output"

	kindProcessor = "processor"
	kindGenerator = "generator"
	kindMonitor   = "monitor"
)

// ProcessorConfig holds the settings common to every processor. Concrete
// processors embed it in their own configuration struct.
type ProcessorConfig struct {
	// Name identifies the processor in logs, metrics and the inspector.
	// Defaults to "<kind>-<ulid>".
	Name        string
	Description string
	// Keepalive makes the processor ignore stop and abort signals cascading
	// from its producers.
	Keepalive bool
}

func (c ProcessorConfig) withDefaults(kind string) ProcessorConfig {
	if c.Name == "" {
		c.Name = kind + "-" + idspkg.CreateULID()
	}
	return c
}

// Option customises a processor at construction time.
type Option func(*Processor)

// WithLogger sets the operational log.
func WithLogger(log loggingpkg.ServiceLogger) Option {
	return func(p *Processor) {
		if log != nil {
			p.proclog = log
		}
	}
}

// WithDocumentLogger sets the log receiving per-document handler failures.
func WithDocumentLogger(log loggingpkg.ServiceLogger) Option {
	return func(p *Processor) {
		if log != nil {
			p.doclog = log
		}
	}
}

// WithHooks merges hooks into the processor's lifecycle hooks.
func WithHooks(hooks LifecycleHooks) Option {
	return func(p *Processor) {
		p.hooks = p.hooks.Merge(hooks)
	}
}

// WithMiddleware appends handler middleware applied to every connector.
func WithMiddleware(regs ...MiddlewareRegistration) Option {
	return func(p *Processor) {
		p.middlewares = append(p.middlewares, regs...)
	}
}

// WithoutDefaultMiddleware drops the recoverer and tracer installed by default.
func WithoutDefaultMiddleware() Option {
	return func(p *Processor) {
		p.middlewares = nil
	}
}

// WithDocumentHooks installs per-document callbacks on every connector.
func WithDocumentHooks(hooks DocumentHooks) Option {
	return WithMiddleware(DocumentHooksMiddleware(hooks))
}

// WithMetrics records queue and handler metrics into m.
func WithMetrics(m *EngineMetrics) Option {
	return func(p *Processor) {
		p.metrics.Store(m)
	}
}

// WithErrorClassifier replaces the function sorting handler errors into the
// categories counted by connector stats.
func WithErrorClassifier(fn ErrorClassifier) Option {
	return func(p *Processor) {
		p.classifier = fn
	}
}

// WithClock replaces the wall clock used for generator timers and run IDs.
func WithClock(c clock.Clock) Option {
	return func(p *Processor) {
		if c != nil {
			p.clock = c
		}
	}
}

// Processor is a graph node owning named connectors and sockets and a
// lifecycle state machine. Construct it with NewProcessor, declare terminals,
// wire it, then Start it.
type Processor struct {
	name        string
	kind        string
	description string

	proclog     loggingpkg.ServiceLogger
	doclog      loggingpkg.ServiceLogger
	hooks       LifecycleHooks
	middlewares []MiddlewareRegistration
	metrics     atomic.Pointer[EngineMetrics]
	clock       clock.Clock
	resources   *resourceTracker
	classifier  ErrorClassifier

	termMu           sync.RWMutex
	connectors       map[string]*Connector
	connectorOrder   []string
	defaultConnector *Connector
	sockets          map[string]*Socket
	socketOrder      []string
	defaultSocket    *Socket

	startMu sync.Mutex

	mu        sync.Mutex
	state     State
	suspended bool
	accepting bool
	keepalive bool
	closing   bool
	live      int
	runID     string
	startedAt time.Time
	stoppedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	wake      chan struct{}
	unwatch   func() bool
	runCtx    context.Context

	// restarting makes the driving loop shut down without ending the run.
	restarting bool
	driveDone  chan struct{}

	// drive is the generator loop; nil for plain processors.
	drive func(ctx context.Context)
	// resetRun clears state owned by an embedding type on every Start.
	resetRun func()
}

// NewProcessor creates an idle processor without terminals.
func NewProcessor(conf ProcessorConfig, opts ...Option) *Processor {
	return newProcessor(kindProcessor, conf, opts...)
}

func newProcessor(kind string, conf ProcessorConfig, opts ...Option) *Processor {
	conf = conf.withDefaults(kind)
	done := make(chan struct{})
	close(done)

	p := &Processor{
		name:        conf.Name,
		kind:        kind,
		description: conf.Description,
		keepalive:   conf.Keepalive,
		middlewares: DefaultMiddlewares(),
		clock:       clock.New(),
		connectors:  make(map[string]*Connector),
		sockets:     make(map[string]*Socket),
		done:        done,
		wake:        make(chan struct{}, 1),
		cancel:      func() {},
		resources:   sharedResources,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.proclog = loggingpkg.OrNop(p.proclog).With(loggingpkg.LogFields{"processor": p.name, "kind": p.kind})
	p.doclog = loggingpkg.OrNop(p.doclog).With(loggingpkg.LogFields{"processor": p.name})
	return p
}

func (p *Processor) node() *Processor { return p }

func (p *Processor) Name() string        { return p.name }
func (p *Processor) Kind() string        { return p.kind }
func (p *Processor) Description() string { return p.description }

// Logger returns the operational log, already scoped to the processor.
func (p *Processor) Logger() loggingpkg.ServiceLogger { return p.proclog }

// DocumentLogger returns the document failure log.
func (p *Processor) DocumentLogger() loggingpkg.ServiceLogger { return p.doclog }

// engineMetrics may be nil; every EngineMetrics method accepts a nil receiver.
func (p *Processor) engineMetrics() *EngineMetrics { return p.metrics.Load() }

// Clock returns the clock timers are drawn from.
func (p *Processor) Clock() clock.Clock { return p.clock }

// TerminalOption customises a connector or socket at creation.
type TerminalOption func(*terminalSettings)

type terminalSettings struct {
	isDefault   bool
	description string
}

// AsDefault makes the terminal the one selected when a name is omitted.
func AsDefault() TerminalOption {
	return func(s *terminalSettings) { s.isDefault = true }
}

// WithDescription documents the terminal for introspection.
func WithDescription(description string) TerminalOption {
	return func(s *terminalSettings) { s.description = description }
}

func applyTerminalOptions(opts []TerminalOption) terminalSettings {
	var settings terminalSettings
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// CreateConnector declares an inbound endpoint. An empty name defaults to
// "input". Connectors can only be created while the processor is idle.
func (p *Processor) CreateConnector(name string, protocol Protocol, handler HandlerFunc, opts ...TerminalOption) (*Connector, error) {
	if handler == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	if name == "" {
		name = DefaultConnectorName
	}
	if err := p.requireIdle("create connector"); err != nil {
		return nil, err
	}

	settings := applyTerminalOptions(opts)

	p.termMu.Lock()
	defer p.termMu.Unlock()

	if _, exists := p.connectors[name]; exists {
		return nil, fmt.Errorf("%w: connector %s.%s", errspkg.ErrDuplicateTerminal, p.name, name)
	}
	c := newConnector(p, name, protocol, handler, settings)
	p.connectors[name] = c
	p.connectorOrder = append(p.connectorOrder, name)
	if settings.isDefault {
		p.defaultConnector = c
	}
	return c, nil
}

// CreateSocket declares an outbound endpoint. An empty name defaults to
// "output".
func (p *Processor) CreateSocket(name string, protocol Protocol, opts ...TerminalOption) (*Socket, error) {
	if name == "" {
		name = DefaultSocketName
	}
	if err := p.requireIdle("create socket"); err != nil {
		return nil, err
	}

	settings := applyTerminalOptions(opts)

	p.termMu.Lock()
	defer p.termMu.Unlock()

	if _, exists := p.sockets[name]; exists {
		return nil, fmt.Errorf("%w: socket %s.%s", errspkg.ErrDuplicateTerminal, p.name, name)
	}
	s := newSocket(p, name, protocol, settings)
	p.sockets[name] = s
	p.socketOrder = append(p.socketOrder, name)
	if settings.isDefault {
		p.defaultSocket = s
	}
	return s, nil
}

// MustCreateConnector is CreateConnector panicking on error, for constructors
// whose terminal layout is static.
func (p *Processor) MustCreateConnector(name string, protocol Protocol, handler HandlerFunc, opts ...TerminalOption) *Connector {
	c, err := p.CreateConnector(name, protocol, handler, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// MustCreateSocket is CreateSocket panicking on error.
func (p *Processor) MustCreateSocket(name string, protocol Protocol, opts ...TerminalOption) *Socket {
	s, err := p.CreateSocket(name, protocol, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (p *Processor) requireIdle(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Active() || p.closing {
		return p.invalidStateLocked(op)
	}
	return nil
}

func (p *Processor) invalidStateLocked(op string) error {
	return &errspkg.InvalidStateError{Processor: p.name, Operation: op, State: p.statusLocked()}
}

// Connector resolves a connector by name. An empty name selects the only
// connector or the default one.
func (p *Processor) Connector(name string) (*Connector, error) {
	p.termMu.RLock()
	defer p.termMu.RUnlock()

	if len(p.connectors) == 0 {
		return nil, fmt.Errorf("%w: %s", errspkg.ErrNoConnectors, p.name)
	}
	if name == "" {
		switch {
		case len(p.connectors) == 1:
			return p.connectors[p.connectorOrder[0]], nil
		case p.defaultConnector != nil:
			return p.defaultConnector, nil
		}
		return nil, fmt.Errorf("%w: connectors of %s", errspkg.ErrAmbiguousTerminal, p.name)
	}
	c, ok := p.connectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", errspkg.ErrConnectorNotFound, p.name, name)
	}
	return c, nil
}

// Socket resolves a socket by name with the same rules as Connector.
func (p *Processor) Socket(name string) (*Socket, error) {
	p.termMu.RLock()
	defer p.termMu.RUnlock()

	if len(p.sockets) == 0 {
		return nil, fmt.Errorf("%w: %s", errspkg.ErrNoSockets, p.name)
	}
	if name == "" {
		switch {
		case len(p.sockets) == 1:
			return p.sockets[p.socketOrder[0]], nil
		case p.defaultSocket != nil:
			return p.defaultSocket, nil
		}
		return nil, fmt.Errorf("%w: sockets of %s", errspkg.ErrAmbiguousTerminal, p.name)
	}
	s, ok := p.sockets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", errspkg.ErrSocketNotFound, p.name, name)
	}
	return s, nil
}

// Connectors lists connectors in creation order.
func (p *Processor) Connectors() []*Connector {
	p.termMu.RLock()
	defer p.termMu.RUnlock()
	out := make([]*Connector, 0, len(p.connectorOrder))
	for _, name := range p.connectorOrder {
		out = append(out, p.connectors[name])
	}
	return out
}

// Sockets lists sockets in creation order.
func (p *Processor) Sockets() []*Socket {
	p.termMu.RLock()
	defer p.termMu.RUnlock()
	out := make([]*Socket, 0, len(p.socketOrder))
	for _, name := range p.socketOrder {
		out = append(out, p.sockets[name])
	}
	return out
}

// Start moves an idle, stopped or aborted processor to running: OnOpen runs,
// every connector starts accepting and gets its own worker goroutine, and a
// generator gets its driving goroutine. Handlers receive a context derived
// from ctx; cancelling ctx aborts the run.
func (p *Processor) Start(ctx context.Context) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if err := p.requireIdle("start"); err != nil {
		return err
	}

	connectors := p.Connectors()
	chains := make([]HandlerFunc, len(connectors))
	for i, c := range connectors {
		chain, err := buildHandlerChain(c, p.middlewares)
		if err != nil {
			return fmt.Errorf("docflow: processor %q connector %q: %w", p.name, c.name, err)
		}
		chains[i] = chain
	}

	if p.hooks.OnOpen != nil {
		if err := p.guard("open", func() error { return p.hooks.OnOpen(ctx, p) }); err != nil {
			p.proclog.Error("open hook failed", err, nil)
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	runID := idspkg.CreateULIDAt(p.clock.Now())
	p.runID = runID
	p.cancel = cancel
	p.done = make(chan struct{})
	p.wake = make(chan struct{}, 1)
	p.suspended = false
	p.restarting = false
	p.accepting = true
	p.runCtx = runCtx
	p.live = len(connectors)
	var driveDone chan struct{}
	if p.drive != nil {
		p.live++
		driveDone = make(chan struct{})
		p.driveDone = driveDone
	}
	p.startedAt = p.clock.Now()
	p.stoppedAt = time.Time{}
	for i, c := range connectors {
		c.reset(chains[i])
	}
	if p.resetRun != nil {
		p.resetRun()
	}
	p.setStateLocked(StateRunning)
	p.unwatch = context.AfterFunc(ctx, func() { p.abortRun(runID) })
	p.mu.Unlock()

	for _, c := range connectors {
		go c.work(runCtx)
	}
	if driveDone != nil {
		go p.runDrive(runCtx, driveDone)
	}

	p.proclog.Info("processor started", loggingpkg.LogFields{"run_id": runID, "connectors": len(connectors)})
	return nil
}

func (p *Processor) runDrive(ctx context.Context, done chan struct{}) {
	defer close(done)
	p.drive(ctx)
}

// Restart cycles a running processor in place. Connector workers pause with
// their queues intact and keep accepting, a generator's driving loop runs
// OnShutdown and exits, then OnClose and OnOpen run and everything resumes.
// Subscribers are not told to stop. An idle or finished processor is simply
// started; one that is shutting down is left alone. Restart must not be
// called from the processor's own handlers or hooks.
func (p *Processor) Restart(ctx context.Context) error {
	p.startMu.Lock()
	p.mu.Lock()
	state, closing := p.state, p.closing
	p.mu.Unlock()

	switch {
	case closing || state == StateStopping || state == StateAborting:
		p.startMu.Unlock()
		return nil
	case state != StateRunning:
		p.startMu.Unlock()
		return p.Start(ctx)
	}
	defer p.startMu.Unlock()

	connectors := p.Connectors()
	for _, c := range connectors {
		c.pause()
	}
	defer func() {
		for _, c := range connectors {
			c.resume()
		}
	}()

	p.mu.Lock()
	p.restarting = true
	p.signalLocked()
	driveDone := p.driveDone
	p.mu.Unlock()

	if p.drive != nil && driveDone != nil {
		<-driveDone
	}
	if p.State() != StateRunning {
		p.mu.Lock()
		p.restarting = false
		p.mu.Unlock()
		return nil
	}

	p.proclog.Debug("processor restarting", nil)
	if p.hooks.OnClose != nil {
		p.runHook("close", p.hooks.OnClose)
	}
	if p.hooks.OnOpen != nil {
		if err := p.guard("open", func() error { return p.hooks.OnOpen(ctx, p) }); err != nil {
			p.proclog.Error("open hook failed", err, nil)
			p.mu.Lock()
			p.restarting = false
			p.mu.Unlock()
			_ = p.Abort()
			return err
		}
	}

	p.mu.Lock()
	p.restarting = false
	relaunch := p.drive != nil && p.state == StateRunning && !p.closing
	var runCtx context.Context
	if relaunch {
		p.live++
		p.suspended = false
		driveDone = make(chan struct{})
		p.driveDone = driveDone
		runCtx = p.runCtx
	}
	p.mu.Unlock()

	if relaunch {
		go p.runDrive(runCtx, driveDone)
	}
	p.proclog.Info("processor restarted", loggingpkg.LogFields{"run_id": p.RunID()})
	return nil
}

// Stop begins a graceful shutdown: nothing new is accepted, queued documents
// are drained, then OnClose runs and the processor becomes stopped. Stopping a
// processor that is already shutting down or finished is a no-op.
func (p *Processor) Stop() error {
	_, err := p.stop()
	return err
}

func (p *Processor) stop() (bool, error) {
	p.mu.Lock()
	if p.state == StateIdle {
		defer p.mu.Unlock()
		return false, p.invalidStateLocked("stop")
	}
	if p.state != StateRunning || p.closing {
		p.mu.Unlock()
		return false, nil
	}
	p.setStateLocked(StateStopping)
	p.accepting = false
	for _, c := range p.Connectors() {
		c.close()
	}
	p.signalLocked()
	p.live++
	p.mu.Unlock()

	p.proclog.Debug("processor stopping", nil)
	p.release(true)
	return true, nil
}

// Abort shuts down immediately: queues are discarded, the run context is
// cancelled, OnAbort runs, and once in-flight handlers return OnClose runs
// and the processor becomes aborted. Abort escalates a pending Stop.
func (p *Processor) Abort() error {
	_, err := p.abort()
	return err
}

func (p *Processor) abort() (bool, error) {
	p.mu.Lock()
	if p.state == StateIdle {
		defer p.mu.Unlock()
		return false, p.invalidStateLocked("abort")
	}
	if p.closing || (p.state != StateRunning && p.state != StateStopping) {
		p.mu.Unlock()
		return false, nil
	}
	p.setStateLocked(StateAborting)
	p.accepting = false
	for _, c := range p.Connectors() {
		c.abort()
	}
	p.signalLocked()
	p.live++
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.proclog.Debug("processor aborting", nil)
	if p.hooks.OnAbort != nil {
		p.runHook("abort", p.hooks.OnAbort)
	}
	p.release(true)
	return true, nil
}

// abortRun aborts only if runID is still the current run, so a cancelled
// context from an earlier run cannot reach a restarted processor.
func (p *Processor) abortRun(runID string) {
	p.mu.Lock()
	current := p.runID == runID
	p.mu.Unlock()
	if current {
		_ = p.Abort()
	}
}

// workerFinished is called by every connector worker and the driving loop on
// exit.
func (p *Processor) workerFinished() {
	p.release(false)
}

func (p *Processor) release(async bool) {
	p.mu.Lock()
	p.live--
	finish := p.live == 0 && !p.closing && (p.state == StateStopping || p.state == StateAborting)
	if finish {
		p.closing = true
	}
	p.mu.Unlock()

	if !finish {
		return
	}
	if async {
		go p.finalize()
		return
	}
	p.finalize()
}

// finalize runs once every worker has exited: OnClose, the terminal state, the
// cascade to non-keepalive subscribers, and finally the release of Wait.
func (p *Processor) finalize() {
	p.mu.Lock()
	aborted := p.state == StateAborting
	p.mu.Unlock()

	if p.hooks.OnClose != nil {
		p.runHook("close", p.hooks.OnClose)
	}

	p.mu.Lock()
	if aborted {
		p.setStateLocked(StateAborted)
	} else {
		p.setStateLocked(StateStopped)
	}
	p.stoppedAt = p.clock.Now()
	cancel, done, unwatch := p.cancel, p.done, p.unwatch
	runID := p.runID
	p.mu.Unlock()

	cancel()
	if unwatch != nil {
		unwatch()
	}
	p.proclog.Info("processor finished", loggingpkg.LogFields{"run_id": runID, "state": p.State().String()})

	var initiated []*Processor
	for _, sub := range p.Subscribers() {
		if sub == p || sub.Keepalive() {
			continue
		}
		var started bool
		if aborted {
			started, _ = sub.abort()
		} else {
			started, _ = sub.stop()
		}
		if started {
			initiated = append(initiated, sub)
		}
	}
	for _, sub := range initiated {
		sub.Wait()
	}

	p.mu.Lock()
	p.closing = false
	p.mu.Unlock()
	close(done)
}

// Suspend raises the suspended flag. Generators stop ticking until Resume;
// connector workers are not paused.
func (p *Processor) Suspend() error {
	p.mu.Lock()
	if p.state != StateRunning || p.closing {
		defer p.mu.Unlock()
		return p.invalidStateLocked("suspend")
	}
	if p.suspended {
		p.mu.Unlock()
		return nil
	}
	p.suspended = true
	p.mu.Unlock()

	if p.hooks.OnSuspend != nil {
		p.runHook("suspend", p.hooks.OnSuspend)
	}
	p.proclog.Debug("processor suspended", nil)
	return nil
}

// Resume clears the suspended flag and wakes an idling generator.
func (p *Processor) Resume() error {
	p.mu.Lock()
	if p.state != StateRunning || p.closing {
		defer p.mu.Unlock()
		return p.invalidStateLocked("resume")
	}
	if !p.suspended {
		p.mu.Unlock()
		return nil
	}
	p.suspended = false
	p.signalLocked()
	p.mu.Unlock()

	if p.hooks.OnResume != nil {
		p.runHook("resume", p.hooks.OnResume)
	}
	p.proclog.Debug("processor resumed", nil)
	return nil
}

// Wait blocks until the current run has finished, including the shutdown of
// every subscriber this processor stopped or aborted. It returns immediately
// for a processor that has never been started.
func (p *Processor) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	<-done
}

// WaitContext is Wait bounded by ctx.
func (p *Processor) WaitContext(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the current run has finished.
func (p *Processor) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Processor) signalLocked() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) setStateLocked(s State) {
	if p.state == s {
		return
	}
	p.engineMetrics().stateChanged(p.name, p.state, s)
	p.state = s
}

// guard runs fn converting a panic into a PanicError.
func (p *Processor) guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s hook: %w", name, newPanicError(r))
		}
	}()
	return fn()
}

func (p *Processor) runHook(name string, fn func(*Processor)) {
	err := p.guard(name, func() error {
		fn(p)
		return nil
	})
	if err != nil {
		p.proclog.Error("lifecycle hook panicked", err, loggingpkg.LogFields{"hook": name})
	}
}

func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Status is a human readable state: idle, running, suspended, stopping,
// stopped, aborting or aborted.
func (p *Processor) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Processor) statusLocked() string {
	if p.state == StateRunning && p.suspended {
		return "suspended"
	}
	return p.state.String()
}

// Accepting reports whether Put is currently allowed.
func (p *Processor) Accepting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepting
}

// Running reports whether workers are active and the run is not being
// aborted.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateRunning || p.state == StateStopping
}

func (p *Processor) Stopping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateStopping
}

func (p *Processor) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended && p.state == StateRunning
}

func (p *Processor) Aborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateAborting || p.state == StateAborted
}

func (p *Processor) Keepalive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keepalive
}

func (p *Processor) SetKeepalive(keepalive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keepalive = keepalive
}

// HasOutput reports whether any socket has a connector or callback attached.
func (p *Processor) HasOutput() bool {
	for _, s := range p.Sockets() {
		if s.HasOutput() {
			return true
		}
	}
	return false
}

// RunID identifies the current or last run.
func (p *Processor) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

func (p *Processor) String() string {
	return p.kind + "|" + p.name
}
