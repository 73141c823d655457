// Package docflow is a dataflow execution engine. Processors own named,
// protocol-tagged terminals: connectors receive documents into an unbounded
// queue drained by one worker goroutine each, and sockets fan documents out to
// every attached connector. Wiring a socket to a connector checks that their
// protocols are compatible, so a graph cannot route "audit.entry" documents
// into a connector expecting "sensor.reading".
//
// A processor moves through idle, running, stopping, stopped, aborting and
// aborted. Stop drains the queues and Abort discards them; both cascade to
// subscribers that are not marked keepalive, and Wait returns only once the
// cascade it started has finished. Running processors can be suspended and
// resumed. Generators and monitors drive themselves from a goroutine of their
// own instead of reacting to input.
//
// Graph collects processors, starts them subscribers first, and serves an
// inspector (/api/processors) and Prometheus metrics when Config enables
// them. A minimal setup therefore involves creating processors, declaring
// terminals, wiring them and calling Start; Graph.Run covers the common case
// of running until a context is cancelled.
//
// # Middleware
//
// Every connector handler runs behind a middleware chain. The default chain
// installs OpenTelemetry tracing and panic recovery; timeouts, retries with
// exponential backoff and document logging are available as registrations.
//
// # Document Hooks
//
// DocumentHooksMiddleware provides OnDocumentStart, OnDocumentDone, and
// OnDocumentError callbacks for custom logging, metrics collection, and
// alerting around handler execution.
//
// # Bridging
//
// Sink and Source connect a graph to a broker. Documents are encoded with a
// Codec (JSON, protobuf or protojson), wrapped in a CloudEvents envelope whose
// type is the protocol tag, and published through a transport built from
// Config. Built-in transports:
//   - channel: In-memory Go channels for tests and single process graphs
//   - kafka: Consumer-group subscriptions
//   - rabbitmq: AMQP queues, one per graph and topic
//   - aws: SNS/SQS with LocalStack support
//   - nats: Core NATS with per-graph queue groups
//   - http: Webhook publishing and an HTTP subscriber
//
// Delivery through a bridge is as durable as the broker makes it; the engine
// itself keeps queued documents in memory only.
package docflow
