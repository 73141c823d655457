package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/docflow/internal/runtime"
	"github.com/drblury/docflow/internal/runtime/cloudevents"
	"github.com/drblury/docflow/internal/runtime/codec"
	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
	"github.com/drblury/docflow/transport"
)

const defaultPollTimeout = 100 * time.Millisecond

// SourceConfig configures a Source.
type SourceConfig struct {
	runtime.GeneratorConfig

	// Topic is subscribed to when the source starts.
	Topic string
	// Protocol is declared on the output socket. Events whose type is not
	// compatible with it are discarded. Defaults to Any.
	Protocol runtime.Protocol
	// Codec decodes event data. Defaults to JSON.
	Codec codec.Codec
	// PollTimeout bounds how long one tick waits for a message, and with it
	// how quickly Stop and Suspend take effect. Defaults to 100ms.
	PollTimeout time.Duration
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.Codec == nil {
		c.Codec = codec.JSON()
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	// Ticks block on the subscription, so there is no need to pause between them.
	if c.TickInterval == 0 {
		c.TickInterval = -1
	}
	return c
}

// Source is a monitor that subscribes to a broker topic and sends every
// decoded document through its output socket. Messages are acked once the
// document is sent, or once they are discarded as undeliverable. A message
// received while the run is being aborted is nacked so the broker can hand it
// to another consumer.
type Source struct {
	*runtime.Generator

	conf       SourceConfig
	subscriber message.Subscriber
	socket     *runtime.Socket

	mu       sync.Mutex
	messages <-chan *message.Message
	cancel   context.CancelFunc
}

// NewSource creates an idle source subscribing through tr.
func NewSource(conf SourceConfig, tr transport.Transport, opts ...runtime.Option) (*Source, error) {
	if tr.Subscriber == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	if conf.Topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	conf = conf.withDefaults()

	s := &Source{conf: conf, subscriber: tr.Subscriber}
	opts = append(opts, runtime.WithHooks(runtime.LifecycleHooks{
		OnOpen:  s.subscribe,
		OnClose: s.unsubscribe,
	}))
	s.Generator = runtime.NewMonitor(conf.GeneratorConfig, runtime.GeneratorHooks{OnTick: s.receive}, opts...)

	socket, err := s.CreateSocket(runtime.DefaultSocketName, conf.Protocol,
		runtime.AsDefault(),
		runtime.WithDescription(fmt.Sprintf("documents from %s via %s", conf.Topic, tr.Capabilities.Name)),
	)
	if err != nil {
		return nil, err
	}
	s.socket = socket
	return s, nil
}

// Topic is the topic the source subscribes to.
func (s *Source) Topic() string { return s.conf.Topic }

func (s *Source) subscribe(ctx context.Context, _ *runtime.Processor) error {
	subCtx, cancel := context.WithCancel(ctx)
	messages, err := s.subscriber.Subscribe(subCtx, s.conf.Topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", s.conf.Topic, err)
	}

	s.mu.Lock()
	s.messages = messages
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

func (s *Source) unsubscribe(*runtime.Processor) {
	s.mu.Lock()
	cancel := s.cancel
	s.messages = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Source) receive(ctx context.Context, g *runtime.Generator) error {
	s.mu.Lock()
	messages := s.messages
	s.mu.Unlock()
	if messages == nil {
		return nil
	}

	timer := g.Clock().Timer(s.conf.PollTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-messages:
		if !ok {
			s.Logger().Info("subscription closed, stopping", loggingpkg.LogFields{"topic": s.conf.Topic})
			return g.Stop()
		}
		return s.deliver(ctx, msg)
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil
}

func (s *Source) deliver(ctx context.Context, msg *message.Message) error {
	doc, err := s.Unwrap(msg.Payload)
	if err != nil {
		msg.Ack()
		return fmt.Errorf("discard message %s from %s: %w", msg.UUID, s.conf.Topic, err)
	}
	if ctx.Err() != nil {
		msg.Nack()
		return nil
	}

	s.socket.Send(doc)
	s.Add(1)
	msg.Ack()
	return nil
}

// Unwrap decodes an envelope published by a Sink into a document, checking
// that its event type may flow through the output socket.
func (s *Source) Unwrap(payload []byte) (runtime.Document, error) {
	evt, err := cloudevents.Decode(payload)
	if err != nil {
		return nil, err
	}

	protocol := runtime.NewProtocol(evt.Type)
	if !runtime.Compatible(protocol, s.socket.Protocol()) {
		return nil, fmt.Errorf("%w: event type %s on %s", errspkg.ErrProtocolMismatch, protocol, s.socket)
	}
	if ct := evt.DataContentType; ct != "" && ct != s.conf.Codec.ContentType() {
		return nil, fmt.Errorf("%w: content type %s, expected %s", errspkg.ErrUnsupportedDocument, ct, s.conf.Codec.ContentType())
	}

	doc, err := s.conf.Codec.Decode(evt.Data)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
