package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	errspkg "github.com/drblury/docflow/internal/runtime/errors"
)

// Format selects the protobuf wire encoding.
type Format int

const (
	Binary Format = iota
	ProtoJSON
)

var protoJSONMarshalOptions = protojson.MarshalOptions{
	EmitUnpopulated: true,
}

var protoJSONUnmarshalOptions = protojson.UnmarshalOptions{
	DiscardUnknown: true,
}

type protoCodec struct {
	format   Format
	newValue func() (proto.Message, error)
}

// Proto encodes proto.Message documents and decodes payloads into fresh
// clones of prototype.
func Proto[T proto.Message](prototype T, format Format) (Codec, error) {
	if isNil(prototype) {
		return nil, errspkg.ErrDocumentTypeRequired
	}
	return protoCodec{format: format, newValue: func() (proto.Message, error) {
		cloned := proto.Clone(prototype)
		proto.Reset(cloned)
		typed, ok := cloned.(T)
		if !ok {
			return nil, fmt.Errorf("unexpected prototype type %T", cloned)
		}
		return typed, nil
	}}, nil
}

func (c protoCodec) ContentType() string {
	if c.format == ProtoJSON {
		return ContentTypeProtoJSON
	}
	return ContentTypeProtobuf
}

func (c protoCodec) Encode(doc any) ([]byte, error) {
	if isNil(doc) {
		return nil, errspkg.ErrDocumentRequired
	}
	msg, ok := doc.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", errspkg.ErrUnsupportedDocument, doc)
	}
	return marshalProto(msg, c.format)
}

func (c protoCodec) Decode(data []byte) (any, error) {
	msg, err := c.newValue()
	if err != nil {
		return nil, err
	}
	if err := unmarshalProto(data, msg, c.format); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T payload: %w", msg, err)
	}
	return msg, nil
}

type structCodec struct {
	format Format
}

// Struct carries map[string]any documents as google.protobuf.Struct, so
// schemaless documents can cross a protobuf-only transport. Decoding returns
// map[string]any.
func Struct(format Format) Codec {
	return structCodec{format: format}
}

func (c structCodec) ContentType() string {
	return protoCodec{format: c.format}.ContentType()
}

func (c structCodec) Encode(doc any) ([]byte, error) {
	var msg *structpb.Struct
	switch v := doc.(type) {
	case *structpb.Struct:
		msg = v
	case map[string]any:
		var err error
		msg, err = structpb.NewStruct(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errspkg.ErrUnsupportedDocument, err)
		}
	default:
		return nil, fmt.Errorf("%w: %T", errspkg.ErrUnsupportedDocument, doc)
	}
	if msg == nil {
		return nil, errspkg.ErrDocumentRequired
	}
	return marshalProto(msg, c.format)
}

func (c structCodec) Decode(data []byte) (any, error) {
	msg := &structpb.Struct{}
	if err := unmarshalProto(data, msg, c.format); err != nil {
		return nil, fmt.Errorf("failed to unmarshal struct payload: %w", err)
	}
	return msg.AsMap(), nil
}

func marshalProto(msg proto.Message, format Format) ([]byte, error) {
	if format == ProtoJSON {
		return protoJSONMarshalOptions.Marshal(msg)
	}
	return proto.Marshal(msg)
}

func unmarshalProto(data []byte, msg proto.Message, format Format) error {
	if format == ProtoJSON {
		return protoJSONUnmarshalOptions.Unmarshal(data, msg)
	}
	return proto.Unmarshal(data, msg)
}
