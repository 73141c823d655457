// Package channel provides the in-memory gochannel backend. Bridged graphs in
// one process and tests use it.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/docflow/transport"
)

const TransportName = "channel"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

// Config is the gochannel configuration used by Build. Persistent keeps
// published messages for subscribers that attach later. Publish waits for
// subscribers to ack, so messages arrive in the order they were published.
var Config = gochannel.Config{
	OutputChannelBuffer:            64,
	Persistent:                     true,
	BlockPublishUntilSubscriberAck: true,
}

func init() {
	Register(transport.DefaultRegistry)
}

// Register adds the backend to r.
func Register(r *transport.Registry) {
	r.Register(TransportName, Build, transport.ChannelCapabilities)
}

// Build returns one gochannel pub/sub serving as both sides.
func Build(_ context.Context, _ transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(Config, logger)
	return transport.Transport{
		Publisher:    pub,
		Subscriber:   sub,
		Capabilities: transport.ChannelCapabilities,
	}, nil
}
