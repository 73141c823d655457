package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/docflow/internal/runtime/config"
	"github.com/drblury/docflow/transport"
)

func stubFactories(t *testing.T, subErr error) (*kafka.PublisherConfig, *kafka.SubscriberConfig) {
	t.Helper()
	origPub, origSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() { PublisherFactory, SubscriberFactory = origPub, origSub })

	var pubCfg kafka.PublisherConfig
	var subCfg kafka.SubscriberConfig
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	PublisherFactory = func(cfg kafka.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return ps, nil
	}
	SubscriberFactory = func(cfg kafka.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		return ps, subErr
	}
	return &pubCfg, &subCfg
}

func TestBuildAppliesConfig(t *testing.T) {
	pubCfg, subCfg := stubFactories(t, nil)

	tr, err := Build(context.Background(), &config.Config{
		KafkaBrokers:       []string{"k1:9092", "k2:9092"},
		KafkaClientID:      "docflow-test",
		KafkaConsumerGroup: "graph-a",
	}, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, pubCfg.Brokers)
	assert.Equal(t, "docflow-test", pubCfg.OverwriteSaramaConfig.ClientID)
	assert.Equal(t, "docflow-test", subCfg.OverwriteSaramaConfig.ClientID)
	assert.Equal(t, "graph-a", subCfg.ConsumerGroup)
	assert.Equal(t, transport.KafkaCapabilities, tr.Capabilities)
}

func TestBuildKeepsDefaultClientID(t *testing.T) {
	pubCfg, _ := stubFactories(t, nil)
	_, err := Build(context.Background(), &config.Config{KafkaBrokers: []string{"k:9092"}}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, kafka.DefaultSaramaSyncPublisherConfig().ClientID, pubCfg.OverwriteSaramaConfig.ClientID)
}

func TestBuildSubscriberError(t *testing.T) {
	stubFactories(t, errors.New("no brokers"))
	_, err := Build(context.Background(), &config.Config{}, watermill.NopLogger{})
	assert.EqualError(t, err, "no brokers")
}
