package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

const waitTimeout = 2 * time.Second

type loggedRecord struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

// recordingLogger is a goroutine safe ServiceLogger capturing every entry.
type recordingLogger struct {
	mu      *sync.Mutex
	records *[]loggedRecord
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, records: &[]loggedRecord{}}
}

func (r *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := make(loggingpkg.LogFields, len(r.fields)+len(fields))
	for k, v := range r.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{mu: r.mu, records: r.records, fields: merged}
}

func (r *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	r.append("debug", msg, nil, fields)
}

func (r *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	r.append("info", msg, nil, fields)
}

func (r *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	r.append("error", msg, err, fields)
}

func (r *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	r.append("trace", msg, nil, fields)
}

func (r *recordingLogger) append(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := make(loggingpkg.LogFields, len(r.fields)+len(fields))
	for k, v := range r.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, loggedRecord{level: level, msg: msg, err: err, fields: merged})
}

func (r *recordingLogger) Records() []loggedRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]loggedRecord, len(*r.records))
	copy(out, *r.records)
	return out
}

func (r *recordingLogger) Errors() []loggedRecord {
	var out []loggedRecord
	for _, rec := range r.Records() {
		if rec.level == "error" {
			out = append(out, rec)
		}
	}
	return out
}

// collector gathers handled documents in arrival order.
type collector struct {
	mu   sync.Mutex
	docs []Document
}

func (c *collector) handle(_ context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
	return nil
}

func (c *collector) Docs() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Document, len(c.docs))
	copy(out, c.docs)
	return out
}

func (c *collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func noopHandler(context.Context, Document) error { return nil }

// newSink returns a started-ready processor with one connector feeding c.
func newSink(t *testing.T, name string, protocol Protocol, c *collector, opts ...Option) *Processor {
	t.Helper()
	p := NewProcessor(ProcessorConfig{Name: name}, opts...)
	_, err := p.CreateConnector("", protocol, c.handle)
	require.NoError(t, err)
	return p
}

func waitDone(t *testing.T, n Node) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, ProcessorOf(n).WaitContext(ctx), "processor %s did not finish", ProcessorOf(n).Name())
}
