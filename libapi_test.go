package docflow

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestPipelineThroughFacade(t *testing.T) {
	gen := NewGenerator(GeneratorConfig{ProcessorConfig: ProcessorConfig{Name: "count"}}, GeneratorHooks{
		OnTick: func(_ context.Context, g *Generator) error {
			n := g.Add(1)
			if err := g.Send(n, ""); err != nil {
				return err
			}
			if n == 5 {
				return g.Stop()
			}
			return nil
		},
	})
	gen.MustCreateSocket("", NewProtocol("number"))

	var sum int64
	sink := NewProcessor(ProcessorConfig{Name: "sum"})
	sink.MustCreateConnector("", NewProtocol("number"), func(_ context.Context, doc Document) error {
		sum += doc.(int64)
		return nil
	})

	if err := sink.Subscribe(gen, "", ""); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("start sink: %v", err)
	}
	if err := gen.Start(context.Background()); err != nil {
		t.Fatalf("start generator: %v", err)
	}
	gen.Wait()

	if sum != 15 {
		t.Fatalf("expected sum 15, got %d", sum)
	}
	if sink.State() != StateStopped {
		t.Fatalf("expected sink stopped, got %s", sink.State())
	}
}

func TestProtocolMismatchExport(t *testing.T) {
	src := NewProcessor(ProcessorConfig{})
	src.MustCreateSocket("", NewProtocol("audit.entry"))
	dst := NewProcessor(ProcessorConfig{})
	dst.MustCreateConnector("", NewProtocol("sensor.reading"), func(context.Context, Document) error { return nil })

	err := dst.Subscribe(src, "", "")
	if !errors.Is(err, ErrProtocolMismatch) {
		t.Fatalf("expected protocol mismatch, got %v", err)
	}
	var mismatch *ProtocolMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *ProtocolMismatchError, got %T", err)
	}
	if !Compatible(NewProtocol("sensor.reading"), NewProtocol("sensor")) {
		t.Fatal("expected ancestor tag to accept descendant")
	}
}

func TestCodecExports(t *testing.T) {
	c, err := ProtoCodec(&wrapperspb.StringValue{}, ProtoBinary)
	if err != nil {
		t.Fatalf("proto codec: %v", err)
	}
	payload, err := c.Encode(wrapperspb.String("x"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if _, err := TypedJSONCodec[map[string]any](); err == nil {
		t.Fatal("expected non-pointer type to be rejected")
	}
	if JSONCodec().ContentType() != "application/json" {
		t.Fatal("unexpected JSON content type")
	}
}

func TestLoggerExports(t *testing.T) {
	logger := NewEntryServiceLogger(&stubEntry{})
	logger.Info("boot", LogFields{"component": "test"})
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata("key", "value")
	if md["key"] != "value" {
		t.Fatalf("expected metadata to contain key, got %#v", md)
	}
}

func TestErrorCategoryConstants(t *testing.T) {
	if ErrorCategoryNone != "none" {
		t.Fatalf("expected ErrorCategoryNone to be 'none', got %q", ErrorCategoryNone)
	}
	if ErrorCategoryPanic != "panic" {
		t.Fatalf("expected ErrorCategoryPanic to be 'panic', got %q", ErrorCategoryPanic)
	}
}

func TestTransportExports(t *testing.T) {
	tr, err := ConnectTransport(context.Background(), &Config{PubSubSystem: "channel"}, NewNopServiceLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if !DefaultTransportRegistry.Has("kafka") {
		t.Fatal("expected built-in transports to be registered")
	}
	if _, err := NewSink(SinkConfig{Topic: "t"}, tr); err != nil {
		t.Fatalf("sink: %v", err)
	}
}

type stubEntry struct {
	fields LogFields
	err    error
}

func (s *stubEntry) Error(args ...any) {}
func (s *stubEntry) Info(args ...any)  {}
func (s *stubEntry) Debug(args ...any) {}
func (s *stubEntry) Trace(args ...any) {}

func (s *stubEntry) WithError(err error) *stubEntry {
	clone := *s
	clone.err = err
	return &clone
}

func (s *stubEntry) WithField(key string, value any) *stubEntry {
	clone := *s
	if clone.fields == nil {
		clone.fields = make(LogFields)
	}
	clone.fields[key] = value
	return &clone
}
