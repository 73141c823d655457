package codec

import (
	"fmt"

	errspkg "github.com/drblury/docflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/docflow/internal/runtime/jsoncodec"
)

type jsonCodec struct {
	decode func([]byte) (any, error)
}

// JSON decodes payloads into generic values (maps, slices, float64, strings)
// and encodes any document sonic can marshal.
func JSON() Codec {
	return jsonCodec{decode: func(data []byte) (any, error) {
		var out any
		if err := jsoncodec.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON payload: %w", err)
		}
		return out, nil
	}}
}

// TypedJSON decodes every payload into a fresh *T. T must be a pointer type.
func TypedJSON[T any]() (Codec, error) {
	factory, err := prototypeFactory[T]()
	if err != nil {
		return nil, err
	}
	return jsonCodec{decode: func(data []byte) (any, error) {
		typed := factory()
		if err := jsoncodec.Unmarshal(data, typed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON payload into %T: %w", typed, err)
		}
		return typed, nil
	}}, nil
}

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Encode(doc any) ([]byte, error) {
	if isNil(doc) {
		return nil, errspkg.ErrDocumentRequired
	}
	return jsoncodec.Marshal(doc)
}

func (c jsonCodec) Decode(data []byte) (any, error) {
	return c.decode(data)
}
