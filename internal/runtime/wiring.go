package runtime

import (
	"context"
	"fmt"

	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

// Node is anything wiring and graphs can address as a processor: *Processor
// itself, *Generator, and concrete processors embedding either.
type Node interface {
	node() *Processor
}

// ProcessorOf returns the processor behind n, or nil.
func ProcessorOf(n Node) *Processor {
	if n == nil {
		return nil
	}
	return n.node()
}

func newProtocolMismatch(s *Socket, c *Connector) *errspkg.ProtocolMismatchError {
	return &errspkg.ProtocolMismatchError{
		Socket:            s.owner.name + "." + s.name,
		SocketProtocol:    s.protocol.String(),
		Connector:         c.owner.name + "." + c.name,
		ConnectorProtocol: c.protocol.String(),
	}
}

// Subscribe attaches one of this processor's connectors to a socket of
// producer. Empty names select the only or default terminal. Incompatible
// protocols fail with a ProtocolMismatchError and nothing is attached.
func (p *Processor) Subscribe(producer Node, socketName, connectorName string) error {
	src := ProcessorOf(producer)
	if src == nil {
		return errspkg.ErrProcessorRequired
	}
	s, err := src.Socket(socketName)
	if err != nil {
		return err
	}
	c, err := p.Connector(connectorName)
	if err != nil {
		return err
	}
	if err := s.attach(c); err != nil {
		return err
	}
	p.proclog.Debug("subscribed", wiringFields(s, c))
	return nil
}

// Attach attaches a connector of subscriber to one of this processor's
// sockets. It is the mirror of Subscribe.
func (p *Processor) Attach(subscriber Node, socketName, connectorName string) error {
	dst := ProcessorOf(subscriber)
	if dst == nil {
		return errspkg.ErrProcessorRequired
	}
	return dst.Subscribe(p, socketName, connectorName)
}

// Unsubscribe removes attachments between producer's sockets and this
// processor's connectors. Empty names and a nil producer match everything.
func (p *Processor) Unsubscribe(producer Node, socketName, connectorName string) error {
	src := ProcessorOf(producer)
	connectors, err := p.matchConnectors(connectorName)
	if err != nil {
		return err
	}
	for _, c := range connectors {
		for _, s := range c.sockets() {
			if src != nil && s.owner != src {
				continue
			}
			if socketName != "" && s.name != socketName {
				continue
			}
			if s.detach(c) {
				p.proclog.Debug("unsubscribed", wiringFields(s, c))
			}
		}
	}
	return nil
}

// Detach removes attachments between this processor's sockets and
// subscriber's connectors. Empty names and a nil subscriber match everything.
func (p *Processor) Detach(subscriber Node, socketName, connectorName string) error {
	dst := ProcessorOf(subscriber)
	sockets, err := p.matchSockets(socketName)
	if err != nil {
		return err
	}
	for _, s := range sockets {
		for _, c := range s.attached() {
			if dst != nil && c.owner != dst {
				continue
			}
			if connectorName != "" && c.name != connectorName {
				continue
			}
			if s.detach(c) {
				p.proclog.Debug("detached", wiringFields(s, c))
			}
		}
	}
	return nil
}

func (p *Processor) matchConnectors(name string) ([]*Connector, error) {
	if name == "" {
		return p.Connectors(), nil
	}
	c, err := p.Connector(name)
	if err != nil {
		return nil, err
	}
	return []*Connector{c}, nil
}

func (p *Processor) matchSockets(name string) ([]*Socket, error) {
	if name == "" {
		return p.Sockets(), nil
	}
	s, err := p.Socket(name)
	if err != nil {
		return nil, err
	}
	return []*Socket{s}, nil
}

// Put injects doc into a connector queue from outside the graph. It fails with
// ErrNotAccepting unless the processor is running and not shutting down.
func (p *Processor) Put(doc Document, connectorName string) error {
	c, err := p.Connector(connectorName)
	if err != nil {
		return err
	}
	if !p.Accepting() || !c.enqueue(doc) {
		return fmt.Errorf("%w: %s", errspkg.ErrNotAccepting, c)
	}
	return nil
}

// Send writes doc to a socket. Documents sent to connectors that are not
// accepting are dropped.
func (p *Processor) Send(doc Document, socketName string) error {
	s, err := p.Socket(socketName)
	if err != nil {
		return err
	}
	s.Send(doc)
	return nil
}

// AddCallback registers fn to observe every document sent on a socket.
func (p *Processor) AddCallback(fn CallbackFunc, socketName string) error {
	if fn == nil {
		return errspkg.ErrCallbackRequired
	}
	s, err := p.Socket(socketName)
	if err != nil {
		return err
	}
	s.addCallback(fn)
	return nil
}

// Subscribers lists the distinct processors owning connectors attached to any
// of this processor's sockets, in attachment order.
func (p *Processor) Subscribers() []*Processor {
	var out []*Processor
	seen := make(map[*Processor]struct{})
	for _, s := range p.Sockets() {
		for _, c := range s.attached() {
			if _, ok := seen[c.owner]; ok {
				continue
			}
			seen[c.owner] = struct{}{}
			out = append(out, c.owner)
		}
	}
	return out
}

// Producers lists the distinct processors whose sockets feed this processor.
func (p *Processor) Producers() []*Processor {
	var out []*Processor
	seen := make(map[*Processor]struct{})
	for _, c := range p.Connectors() {
		for _, s := range c.sockets() {
			if _, ok := seen[s.owner]; ok {
				continue
			}
			seen[s.owner] = struct{}{}
			out = append(out, s.owner)
		}
	}
	return out
}

func wiringFields(s *Socket, c *Connector) loggingpkg.LogFields {
	return loggingpkg.LogFields{
		"socket":    s.String(),
		"connector": c.String(),
	}
}

// StartAll starts p together with every processor reachable downstream of it,
// subscribers before their producers, so nothing p sends is dropped by an idle
// subscriber. Processors already running are left as they are. If one fails to
// start, those started by this call are aborted.
func (p *Processor) StartAll(ctx context.Context) error {
	_, err := startInOrder(ctx, subscribersFirst([]*Processor{p}, nil))
	return err
}

// subscribersFirst orders roots and their transitive subscribers so every
// subscriber precedes its producers. include limits the walk; nil follows
// every subscriber. Cycles are broken at the first revisited node.
func subscribersFirst(roots []*Processor, include func(*Processor) bool) []*Processor {
	var order []*Processor
	visited := make(map[*Processor]bool)
	var visit func(p *Processor)
	visit = func(p *Processor) {
		if visited[p] {
			return
		}
		visited[p] = true
		for _, sub := range p.Subscribers() {
			if include == nil || include(sub) {
				visit(sub)
			}
		}
		order = append(order, p)
	}
	for _, p := range roots {
		visit(p)
	}
	return order
}

// startInOrder starts every processor of order that is not already active.
func startInOrder(ctx context.Context, order []*Processor) ([]*Processor, error) {
	var started []*Processor
	for _, p := range order {
		if p.State().Active() {
			continue
		}
		if err := p.Start(ctx); err != nil {
			for _, s := range started {
				_ = s.Abort()
			}
			return nil, fmt.Errorf("start %s: %w", p.name, err)
		}
		started = append(started, p)
	}
	return started, nil
}
