// Package bridge connects a graph to a message broker. A Sink publishes every
// document it receives on a topic; a Source is a monitor turning messages from
// a topic back into documents. Documents cross the broker inside a CloudEvents
// envelope whose type is the protocol tag.
package bridge

import (
	"context"
	"errors"
	"strings"

	"github.com/drblury/docflow/internal/runtime/config"
	loggingpkg "github.com/drblury/docflow/internal/runtime/logging"
	transportpkg "github.com/drblury/docflow/internal/runtime/transport"
	"github.com/drblury/docflow/transport"
)

const sourcePrefix = "docflow"

// ErrMessageTooLarge is returned by a sink when an envelope exceeds the
// transport's message size limit.
var ErrMessageTooLarge = errors.New("docflow: message exceeds transport size limit")

// Connect builds the transport selected by conf.PubSubSystem. Sinks and
// sources may share the result; the caller closes it once the graph is done.
func Connect(ctx context.Context, conf *config.Config, log loggingpkg.ServiceLogger) (transport.Transport, error) {
	return ConnectWith(ctx, transportpkg.DefaultFactory(), conf, log)
}

// ConnectWith is Connect with an explicit factory.
func ConnectWith(ctx context.Context, factory transportpkg.Factory, conf *config.Config, log loggingpkg.ServiceLogger) (transport.Transport, error) {
	return factory.Build(ctx, conf, loggingpkg.NewWatermillAdapter(loggingpkg.OrNop(log)))
}

func eventSource(processor, terminal string) string {
	return strings.Join([]string{sourcePrefix, processor, terminal}, "/")
}
