package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
)

// DocumentContext describes one handler invocation to document hooks.
type DocumentContext struct {
	// Processor and Connector name the endpoint handling the document.
	Processor string
	Connector string
	Protocol  Protocol
	// RunID identifies the processor run the document belongs to.
	RunID string
	// Context is the run context passed to the handler.
	Context context.Context
	// Document is the value being handled. It is shared with every other
	// destination of the same send.
	Document Document
	// StartedAt is when the handler was entered.
	StartedAt time.Time
	// Duration is only set in OnDocumentDone and OnDocumentError.
	Duration time.Duration
}

// DocumentHooks defines callbacks around connector handlers.
// All hooks are optional - nil hooks are simply not called.
type DocumentHooks struct {
	OnDocumentStart func(ctx DocumentContext)
	OnDocumentDone  func(ctx DocumentContext)
	// OnDocumentError receives the handler error. The error is still logged to
	// the document log afterwards.
	OnDocumentError func(ctx DocumentContext, err error)
}

// Merge combines two DocumentHooks. The hooks from other run after h.
func (h DocumentHooks) Merge(other DocumentHooks) DocumentHooks {
	return DocumentHooks{
		OnDocumentStart: chainDocumentHooks(h.OnDocumentStart, other.OnDocumentStart),
		OnDocumentDone:  chainDocumentHooks(h.OnDocumentDone, other.OnDocumentDone),
		OnDocumentError: chainDocumentErrorHooks(h.OnDocumentError, other.OnDocumentError),
	}
}

func chainDocumentHooks(a, b func(DocumentContext)) func(DocumentContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DocumentContext) {
		a(ctx)
		b(ctx)
	}
}

func chainDocumentErrorHooks(a, b func(DocumentContext, error)) func(DocumentContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DocumentContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// DocumentHooksMiddleware invokes hooks around every handled document.
func DocumentHooksMiddleware(hooks DocumentHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "document_hooks",
		Builder: func(c *Connector) (HandlerMiddleware, error) {
			return documentHooksMiddleware(c, hooks), nil
		},
	}
}

func documentHooksMiddleware(c *Connector, hooks DocumentHooks) HandlerMiddleware {
	return func(h HandlerFunc) HandlerFunc {
		return func(ctx context.Context, doc Document) error {
			dc := DocumentContext{
				Processor: c.owner.name,
				Connector: c.name,
				Protocol:  c.protocol,
				RunID:     c.owner.RunID(),
				Context:   ctx,
				Document:  doc,
				StartedAt: time.Now(),
			}

			if hooks.OnDocumentStart != nil {
				hooks.OnDocumentStart(dc)
			}

			err := h(ctx, doc)
			dc.Duration = time.Since(dc.StartedAt)

			if err != nil {
				if hooks.OnDocumentError != nil {
					hooks.OnDocumentError(dc, err)
				}
			} else if hooks.OnDocumentDone != nil {
				hooks.OnDocumentDone(dc)
			}
			return err
		}
	}
}

// LoggingHooks returns hooks that log document handling at debug level and
// failures at error level.
func LoggingHooks(logger loggingpkg.ServiceLogger) DocumentHooks {
	fields := func(ctx DocumentContext) loggingpkg.LogFields {
		return loggingpkg.LogFields{
			"processor": ctx.Processor,
			"connector": ctx.Connector,
			"protocol":  ctx.Protocol.String(),
			"run_id":    ctx.RunID,
		}
	}
	return DocumentHooks{
		OnDocumentStart: func(ctx DocumentContext) {
			logger.Debug("Document started", fields(ctx))
		},
		OnDocumentDone: func(ctx DocumentContext) {
			f := fields(ctx)
			f["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Debug("Document completed", f)
		},
		OnDocumentError: func(ctx DocumentContext, err error) {
			f := fields(ctx)
			f["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Error("Document failed", err, f)
		},
	}
}

// MetricsHooks returns hooks forwarding processor and connector names to
// caller supplied counters.
func MetricsHooks(onStart, onDone, onError func(processor, connector string)) DocumentHooks {
	return DocumentHooks{
		OnDocumentStart: func(ctx DocumentContext) {
			if onStart != nil {
				onStart(ctx.Processor, ctx.Connector)
			}
		},
		OnDocumentDone: func(ctx DocumentContext) {
			if onDone != nil {
				onDone(ctx.Processor, ctx.Connector)
			}
		},
		OnDocumentError: func(ctx DocumentContext, err error) {
			if onError != nil {
				onError(ctx.Processor, ctx.Connector)
			}
		},
	}
}

// AlertingHooks returns hooks that only fire on handler errors.
func AlertingHooks(alertFunc func(ctx DocumentContext, err error)) DocumentHooks {
	return DocumentHooks{
		OnDocumentError: alertFunc,
	}
}
