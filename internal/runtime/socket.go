package runtime

import (
	"fmt"
	"slices"
	"sync"
)

// CallbackFunc observes documents sent through a socket. Callbacks run inline
// on the sending goroutine and must not block.
type CallbackFunc func(doc Document)

// Socket is an outbound endpoint fanning documents out to attached connectors
// and registered callbacks.
type Socket struct {
	owner       *Processor
	name        string
	protocol    Protocol
	description string

	mu         sync.RWMutex
	connectors []*Connector
	callbacks  []CallbackFunc
}

func newSocket(owner *Processor, name string, protocol Protocol, settings terminalSettings) *Socket {
	return &Socket{
		owner:       owner,
		name:        name,
		protocol:    protocol,
		description: settings.description,
	}
}

func (s *Socket) Name() string          { return s.name }
func (s *Socket) Protocol() Protocol    { return s.protocol }
func (s *Socket) Description() string   { return s.description }
func (s *Socket) Processor() *Processor { return s.owner }

// Connections is the number of attached connectors.
func (s *Socket) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connectors)
}

// HasOutput reports whether anything would observe a Send.
func (s *Socket) HasOutput() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connectors) > 0 || len(s.callbacks) > 0
}

// Send delivers doc to every callback, in registration order, and then to the
// queue of every attached connector. The same reference reaches every
// destination.
func (s *Socket) Send(doc Document) {
	s.mu.RLock()
	callbacks := s.callbacks
	connectors := s.connectors
	s.mu.RUnlock()

	for _, cb := range callbacks {
		cb(doc)
	}
	for _, c := range connectors {
		c.enqueue(doc)
	}
	s.owner.engineMetrics().documentSent(s.owner.name, s.name)
}

func (s *Socket) addCallback(fn CallbackFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(slices.Clip(s.callbacks), fn)
}

// attach links c to the socket after checking protocol compatibility. Linking
// an already attached connector is a no-op.
func (s *Socket) attach(c *Connector) error {
	if !Compatible(s.protocol, c.protocol) {
		return newProtocolMismatch(s, c)
	}

	s.mu.Lock()
	if slices.Contains(s.connectors, c) {
		s.mu.Unlock()
		return nil
	}
	s.connectors = append(slices.Clip(s.connectors), c)
	s.mu.Unlock()

	c.addSource(s)
	return nil
}

func (s *Socket) detach(c *Connector) bool {
	s.mu.Lock()
	idx := slices.Index(s.connectors, c)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.connectors = slices.Delete(slices.Clone(s.connectors), idx, idx+1)
	s.mu.Unlock()

	c.removeSource(s)
	return true
}

func (s *Socket) attached() []*Connector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.connectors)
}

func (s *Socket) String() string {
	return fmt.Sprintf("%s.%s(%s)", s.owner.name, s.name, s.protocol)
}
