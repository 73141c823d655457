// Package codec turns documents into bytes and back for the bridge processors.
// The engine itself never serialises documents; codecs only matter where a
// graph meets a broker.
package codec

import (
	"fmt"
	"reflect"

	errspkg "github.com/drblury/docflow/internal/runtime/errors"
)

// Content types written to the content_type metadata key.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeProtobuf  = "application/protobuf"
	ContentTypeProtoJSON = "application/x-protobuf+json"
)

// Codec encodes documents for a transport and decodes payloads back into
// documents.
type Codec interface {
	ContentType() string
	Encode(doc any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Func adapts a pair of functions to the Codec interface.
type Func struct {
	Type    string
	EncodeF func(any) ([]byte, error)
	DecodeF func([]byte) (any, error)
}

func (f Func) ContentType() string { return f.Type }

func (f Func) Encode(doc any) ([]byte, error) {
	if f.EncodeF == nil {
		return nil, fmt.Errorf("codec %q cannot encode", f.Type)
	}
	return f.EncodeF(doc)
}

func (f Func) Decode(data []byte) (any, error) {
	if f.DecodeF == nil {
		return nil, fmt.Errorf("codec %q cannot decode", f.Type)
	}
	return f.DecodeF(data)
}

// prototypeFactory returns a constructor for fresh values of the pointer type
// T.
func prototypeFactory[T any]() (func() T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, errspkg.ErrDocumentTypeRequired
	}
	if typ.Kind() != reflect.Ptr {
		return nil, errspkg.ErrDocumentPointerNeeded
	}
	elem := typ.Elem()
	return func() T {
		return reflect.New(elem).Interface().(T)
	}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}
