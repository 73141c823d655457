/*
Package runtime implements the docflow execution engine.

# Architecture Overview

Processors are independent units of work wired into a graph through named,
protocol-tagged terminals. Documents are opaque values handed from a
producer's socket to the queues of every attached connector, and each
connector drains its queue on its own worker goroutine.

# Package Structure

## Protocols (protocol.go)

Protocol is a dot separated hierarchical tag. Compatible decides whether a
socket may feed a connector: the wildcard matches everything, otherwise the
connector tag must equal the socket tag or be one of its ancestors.

## Terminals (connector.go, socket.go)

  - Connector: unbounded FIFO queue, one worker, statistics
  - Socket: fan-out to attached connectors and inline callbacks

## Processors (processor.go, state.go, wiring.go, lifecycle_hooks.go)

The lifecycle state machine (idle, running, stopping, stopped, aborting,
aborted, plus suspension), the stop and abort cascade to subscribers, and
the Subscribe/Attach/Put/Send wiring API.

## Generators (generator.go)

Self-driving processors. A generator ticks until it stops itself; a monitor
runs until stopped from outside. Suspension idles the loop with exponential
backoff.

## Middleware and hooks (middleware.go, hooks.go)

Handler middleware (recoverer, tracer, timeout, retry, document logging) and
per-document hooks.

## Stats & Monitoring (stats.go, resources.go, metrics.go)

  - Latency percentiles (p50, p95, p99)
  - Throughput tracking
  - Error categorization
  - Resource usage sampling
  - Prometheus collectors shared by a graph

## Graph and inspector (graph.go, info.go, webui.go)

Graph starts processors subscribers first, stops them producers first, and
serves the inspector and metrics endpoints.

# Sub-packages

  - cloudevents/: envelope used by the bridge processors
  - codec/: JSON and protobuf document codecs
  - config/: graph configuration with validation
  - errors/: sentinel errors and error types
  - ids/: ULID generation for run and message IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: bridged message metadata
  - transport/: transport factory used by the bridge

# Usage Example

	gen := runtime.NewGenerator(runtime.GeneratorConfig{}, runtime.GeneratorHooks{
		OnTick: func(ctx context.Context, g *runtime.Generator) error {
			if g.Add(1) > 10 {
				return g.Stop()
			}
			return g.Send(g.Count(), "")
		},
	})
	gen.MustCreateSocket("", runtime.NewProtocol("number"))

	sink := runtime.NewProcessor(runtime.ProcessorConfig{Name: "print"})
	sink.MustCreateConnector("", runtime.NewProtocol("number"), printNumber)

	_ = sink.Subscribe(gen, "", "")
	_ = sink.Start(ctx)
	_ = gen.Start(ctx)
	gen.Wait()
*/
package runtime
