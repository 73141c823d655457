package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	jsoncodecpkg "github.com/drblury/docflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

const tracerName = "github.com/drblury/docflow"

// HandlerMiddleware wraps a connector handler.
type HandlerMiddleware func(HandlerFunc) HandlerFunc

// MiddlewareBuilder constructs a handler middleware for one connector. It runs
// on every Start so it may capture the connector's names and protocol.
type MiddlewareBuilder func(*Connector) (HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware is applied to connectors.
// Registrations listed first wrap the ones listed after them.
type MiddlewareRegistration struct {
	Name       string
	Middleware HandlerMiddleware
	Builder    MiddlewareBuilder
}

// RetryMiddlewareConfig customises the retry middleware behaviour.
type RetryMiddlewareConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RetryIf         func(error) bool
}

func (cfg RetryMiddlewareConfig) withDefaults() RetryMiddlewareConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return cfg
}

// DefaultMiddlewares returns the chain every processor starts with.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		TracerMiddleware(),
		RecovererMiddleware(),
	}
}

func buildHandlerChain(c *Connector, regs []MiddlewareRegistration) (HandlerFunc, error) {
	wrappers := make([]HandlerMiddleware, 0, len(regs))
	for _, reg := range regs {
		var mw HandlerMiddleware
		switch {
		case reg.Middleware != nil:
			mw = reg.Middleware
		case reg.Builder != nil:
			var err error
			mw, err = reg.Builder(c)
			if err != nil {
				return nil, fmt.Errorf("middleware %q: %w", reg.Name, err)
			}
		default:
			return nil, fmt.Errorf("middleware %q: registration requires Middleware or Builder", reg.Name)
		}
		if mw != nil {
			wrappers = append(wrappers, mw)
		}
	}

	h := c.handler
	for i := len(wrappers) - 1; i >= 0; i-- {
		h = wrappers[i](h)
	}
	return h, nil
}

// PanicError is the handler error produced from a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// RecovererMiddleware converts handler panics into *PanicError so outer
// middleware such as retries and hooks observe them as ordinary errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "recoverer",
		Middleware: func(h HandlerFunc) HandlerFunc {
			return func(ctx context.Context, doc Document) (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = newPanicError(r)
					}
				}()
				return h(ctx, doc)
			}
		},
	}
}

// TracerMiddleware wraps every handler invocation in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(c *Connector) (HandlerMiddleware, error) {
			return tracerMiddleware(c), nil
		},
	}
}

func tracerMiddleware(c *Connector) HandlerMiddleware {
	attrs := []attribute.KeyValue{
		attribute.String("docflow.processor", c.owner.name),
		attribute.String("docflow.connector", c.name),
		attribute.String("docflow.protocol", c.protocol.String()),
	}
	return func(h HandlerFunc) HandlerFunc {
		return func(ctx context.Context, doc Document) error {
			ctx, span := otel.Tracer(tracerName).Start(ctx, "docflow.handle",
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			err := h(ctx, doc)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}

// LogDocumentsMiddleware logs every document before it is handled. Documents
// are rendered as JSON when possible. A nil logger selects the processor's
// operational log.
func LogDocumentsMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_documents",
		Builder: func(c *Connector) (HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = c.owner.proclog
			}
			return logDocumentsMiddleware(c, l), nil
		},
	}
}

func logDocumentsMiddleware(c *Connector, logger loggingpkg.ServiceLogger) HandlerMiddleware {
	return func(h HandlerFunc) HandlerFunc {
		return func(ctx context.Context, doc Document) error {
			logger.Debug("Processing document", loggingpkg.LogFields{
				"connector": c.name,
				"protocol":  c.protocol.String(),
				"document":  renderDocument(doc),
			})
			return h(ctx, doc)
		}
	}
}

func renderDocument(doc Document) string {
	if raw, err := jsoncodecpkg.Marshal(doc); err == nil {
		return string(raw)
	}
	return fmt.Sprintf("%v", doc)
}

// RetryMiddleware re-invokes a failing handler with exponential backoff. The
// wait is cut short when the run is aborted.
func RetryMiddleware(cfg RetryMiddlewareConfig) MiddlewareRegistration {
	normalized := cfg.withDefaults()
	return MiddlewareRegistration{
		Name:       "retry",
		Middleware: retryMiddleware(normalized),
	}
}

func retryMiddleware(cfg RetryMiddlewareConfig) HandlerMiddleware {
	return func(h HandlerFunc) HandlerFunc {
		return func(ctx context.Context, doc Document) error {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = cfg.InitialInterval
			eb.MaxInterval = cfg.MaxInterval
			eb.MaxElapsedTime = 0
			eb.Reset()

			policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(cfg.MaxRetries)), ctx)
			return backoff.Retry(func() error {
				err := h(ctx, doc)
				if err != nil && cfg.RetryIf != nil && !cfg.RetryIf(err) {
					return backoff.Permanent(err)
				}
				return err
			}, policy)
		}
	}
}

// TimeoutMiddleware bounds every handler invocation with a context deadline.
// Handlers must honour ctx for the bound to have an effect.
func TimeoutMiddleware(timeout time.Duration) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "timeout",
		Builder: func(c *Connector) (HandlerMiddleware, error) {
			if timeout <= 0 {
				return nil, errors.New("timeout must be positive")
			}
			return func(h HandlerFunc) HandlerFunc {
				return func(ctx context.Context, doc Document) error {
					ctx, cancel := context.WithTimeout(ctx, timeout)
					defer cancel()
					return h(ctx, doc)
				}
			}, nil
		},
	}
}
