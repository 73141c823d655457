package bridge

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/docflow/internal/runtime"
	"github.com/drblury/docflow/internal/runtime/cloudevents"
	"github.com/drblury/docflow/internal/runtime/codec"
	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	"github.com/drblury/docflow/internal/runtime/metadata"
	"github.com/drblury/docflow/transport"
)

// SinkConfig configures a Sink.
type SinkConfig struct {
	runtime.ProcessorConfig

	// Topic receives every published envelope.
	Topic string
	// Protocol is declared on the input connector and becomes the event type.
	// Defaults to Any.
	Protocol runtime.Protocol
	// EventType overrides the event type when the connector accepts a broader
	// protocol than the documents actually carry.
	EventType string
	// Codec encodes documents. Defaults to JSON.
	Codec codec.Codec
	// Subject is copied onto every event when set.
	Subject string
}

func (c SinkConfig) withDefaults() SinkConfig {
	if c.Codec == nil {
		c.Codec = codec.JSON()
	}
	if c.EventType == "" {
		c.EventType = c.Protocol.String()
	}
	return c
}

// Sink is a processor with one connector that publishes each document to a
// broker topic.
type Sink struct {
	*runtime.Processor

	conf      SinkConfig
	publisher message.Publisher
	caps      transport.Capabilities
	connector *runtime.Connector
}

// NewSink creates an idle sink publishing through tr.
func NewSink(conf SinkConfig, tr transport.Transport, opts ...runtime.Option) (*Sink, error) {
	if tr.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if conf.Topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	conf = conf.withDefaults()

	s := &Sink{
		Processor: runtime.NewProcessor(conf.ProcessorConfig, opts...),
		conf:      conf,
		publisher: tr.Publisher,
		caps:      tr.Capabilities,
	}
	connector, err := s.CreateConnector(runtime.DefaultConnectorName, conf.Protocol, s.publish,
		runtime.AsDefault(),
		runtime.WithDescription(fmt.Sprintf("publishes to %s via %s", conf.Topic, tr.Capabilities.Name)),
	)
	if err != nil {
		return nil, err
	}
	s.connector = connector
	return s, nil
}

// Topic is the topic documents are published to.
func (s *Sink) Topic() string { return s.conf.Topic }

// Envelope wraps doc the way the sink publishes it.
func (s *Sink) Envelope(doc runtime.Document) (*message.Message, error) {
	data, err := s.conf.Codec.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	evt := cloudevents.New(s.conf.EventType, eventSource(s.Name(), s.connector.Name()), data)
	evt.DataContentType = s.conf.Codec.ContentType()
	evt.Subject = s.conf.Subject
	evt = evt.WithExtension(cloudevents.ExtRunID, s.RunID()).
		WithExtension(cloudevents.ExtTerminal, s.connector.Name())

	payload, err := cloudevents.Encode(evt)
	if err != nil {
		return nil, err
	}
	if !s.caps.Fits(len(payload)) {
		return nil, fmt.Errorf("%w: %d bytes, %s allows %d", ErrMessageTooLarge, len(payload), s.caps.Name, s.caps.MaxMessageSize)
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata = metadata.ToWatermill(metadata.New(
		metadata.KeyProtocol, s.conf.EventType,
		metadata.KeyProcessor, s.Name(),
		metadata.KeyTerminal, s.connector.Name(),
		metadata.KeyContentType, cloudevents.ContentType,
	))
	return msg, nil
}

func (s *Sink) publish(ctx context.Context, doc runtime.Document) error {
	msg, err := s.Envelope(doc)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	if err := s.publisher.Publish(s.conf.Topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", s.conf.Topic, err)
	}
	return nil
}
