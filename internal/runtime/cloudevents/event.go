// Package cloudevents implements the structured-mode CloudEvents v1.0 JSON
// envelope the bridge processors wrap documents in.
// See https://github.com/cloudevents/spec/blob/v1.0/spec.md.
package cloudevents

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	idspkg "github.com/drblury/docflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/docflow/internal/runtime/jsoncodec"
)

// SpecVersion is the CloudEvents specification version implemented.
const SpecVersion = "1.0"

// ContentType is the media type of a structured-mode event.
const ContentType = "application/cloudevents+json"

// Event is a CloudEvent. Type carries the document protocol tag and Source
// the producing processor.
type Event struct {
	SpecVersion     string
	Type            string
	Source          string
	ID              string
	Time            time.Time
	DataContentType string
	Subject         string

	// Data is the encoded document. JSON content types are embedded as the
	// data member, anything else travels as data_base64.
	Data []byte

	Extensions map[string]any
}

// New creates an event with a ULID and the current UTC time.
func New(eventType, source string, data []byte) Event {
	return Event{
		SpecVersion: SpecVersion,
		Type:        eventType,
		Source:      source,
		ID:          idspkg.CreateULID(),
		Time:        time.Now().UTC(),
		Data:        data,
		Extensions:  make(map[string]any),
	}
}

// WithExtension sets an extension attribute and returns the event.
func (e Event) WithExtension(key string, value any) Event {
	if e.Extensions == nil {
		e.Extensions = make(map[string]any)
	}
	e.Extensions[key] = value
	return e
}

// GetExtensionString returns an extension rendered as a string, or "" when
// absent.
func (e Event) GetExtensionString(key string) string {
	v, ok := e.Extensions[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Validate checks that the event has all required CloudEvents attributes.
func (e Event) Validate() error {
	var errs []error
	switch {
	case e.SpecVersion == "":
		errs = append(errs, errors.New("specversion is required"))
	case e.SpecVersion != SpecVersion:
		errs = append(errs, fmt.Errorf("specversion must be %q, got %q", SpecVersion, e.SpecVersion))
	}
	if e.Type == "" {
		errs = append(errs, errors.New("type is required"))
	}
	if e.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	return errors.Join(errs...)
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, _ := strings.Cut(ct, ";")
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

var knownAttrs = map[string]bool{
	"specversion":     true,
	"type":            true,
	"source":          true,
	"id":              true,
	"time":            true,
	"datacontenttype": true,
	"subject":         true,
	"data":            true,
	"data_base64":     true,
}

// MarshalJSON renders the flat structured-mode object. Extensions sit next to
// the context attributes.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Extensions)+8)
	for k, v := range e.Extensions {
		if !knownAttrs[k] {
			m[k] = v
		}
	}
	m["specversion"] = e.SpecVersion
	m["type"] = e.Type
	m["source"] = e.Source
	m["id"] = e.ID
	if ts := FormatTime(e.Time); ts != "" {
		m["time"] = ts
	}
	if e.DataContentType != "" {
		m["datacontenttype"] = e.DataContentType
	}
	if e.Subject != "" {
		m["subject"] = e.Subject
	}
	if len(e.Data) > 0 {
		if isJSONContentType(e.DataContentType) && jsoncodec.Valid(e.Data) {
			m["data"] = json.RawMessage(e.Data)
		} else {
			m["data_base64"] = base64.StdEncoding.EncodeToString(e.Data)
		}
	}
	return jsoncodec.Marshal(m)
}

// UnmarshalJSON parses a structured-mode object. Unknown members become
// extensions.
func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := jsoncodec.Unmarshal(data, &m); err != nil {
		return err
	}

	*e = Event{Extensions: make(map[string]any)}
	strField := func(key string, dst *string) error {
		raw, ok := m[key]
		if !ok {
			return nil
		}
		if err := jsoncodec.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		return nil
	}

	var ts, b64 string
	for key, dst := range map[string]*string{
		"specversion":     &e.SpecVersion,
		"type":            &e.Type,
		"source":          &e.Source,
		"id":              &e.ID,
		"datacontenttype": &e.DataContentType,
		"subject":         &e.Subject,
		"time":            &ts,
		"data_base64":     &b64,
	} {
		if err := strField(key, dst); err != nil {
			return err
		}
	}

	if ts != "" {
		t, err := ParseTime(ts)
		if err != nil {
			return fmt.Errorf("invalid time: %w", err)
		}
		e.Time = t
	}
	if raw, ok := m["data"]; ok {
		e.Data = []byte(raw)
	} else if b64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return fmt.Errorf("invalid data_base64: %w", err)
		}
		e.Data = decoded
	}

	for k, raw := range m {
		if knownAttrs[k] {
			continue
		}
		var v any
		if err := jsoncodec.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid extension %q: %w", k, err)
		}
		e.Extensions[k] = v
	}
	return nil
}

// Encode renders evt for the wire after validating it.
func Encode(evt Event) ([]byte, error) {
	if err := evt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cloud event: %w", err)
	}
	return evt.MarshalJSON()
}

// Decode parses and validates a structured-mode event.
func Decode(data []byte) (Event, error) {
	var evt Event
	if err := evt.UnmarshalJSON(data); err != nil {
		return Event{}, fmt.Errorf("failed to decode cloud event: %w", err)
	}
	if err := evt.Validate(); err != nil {
		return Event{}, fmt.Errorf("invalid cloud event: %w", err)
	}
	return evt, nil
}
