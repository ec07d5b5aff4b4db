package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"Inkwell/internal/config"
	"Inkwell/internal/modules/notification/infrastructure/mq"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SendsMessage(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var body map[string]string
		if err := json.Unmarshal(val, &body); err != nil {
			return err
		}
		if body["id"] != "n1" {
			return errors.New("unexpected payload")
		}
		return nil
	})
	pub := NewPublisherFromProducer(sp)

	_, err := pub.Publish(context.Background(), mq.Message{
		Topic:   "inkwell.notifications",
		Key:     []byte("u1"),
		Value:   []byte(`{"id":"n1"}`),
		Headers: map[string]string{"type": "ARTICLE_APPROVED", " ": "skipped"},
	})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestPublisher_PropagatesFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	pub := NewPublisherFromProducer(sp)

	_, err := pub.Publish(context.Background(), mq.Message{Topic: "t", Value: []byte("x")})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestPublisher_RejectsEmptyTopicAndCancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	pub := NewPublisherFromProducer(sp)

	_, err := pub.Publish(context.Background(), mq.Message{Topic: "  "})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pub.Publish(ctx, mq.Message{Topic: "t"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, pub.Close())
}

func TestNewSaramaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewSaramaPublisher(config.KafkaConfig{})
	assert.Error(t, err)
}

type fakeAdmin struct {
	sarama.ClusterAdmin
	topics    map[string]sarama.TopicDetail
	created   map[string]*sarama.TopicDetail
	createErr error
}

func (f *fakeAdmin) ListTopics() (map[string]sarama.TopicDetail, error) {
	return f.topics, nil
}

func (f *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, _ bool) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.created == nil {
		f.created = map[string]*sarama.TopicDetail{}
	}
	f.created[topic] = detail
	return nil
}

func TestEnsureTopic_CreatesMissingTopic(t *testing.T) {
	admin := &fakeAdmin{topics: map[string]sarama.TopicDetail{}}
	require.NoError(t, ensureTopic(admin, "inkwell.notifications", 0, 0))

	detail := admin.created["inkwell.notifications"]
	require.NotNil(t, detail)
	assert.Equal(t, int32(1), detail.NumPartitions)
	assert.Equal(t, int16(1), detail.ReplicationFactor)
	assert.Equal(t, "604800000", *detail.ConfigEntries["retention.ms"])
}

func TestEnsureTopic_ExistingTopicIsNoop(t *testing.T) {
	admin := &fakeAdmin{topics: map[string]sarama.TopicDetail{"inkwell.notifications": {}}}
	require.NoError(t, ensureTopic(admin, "inkwell.notifications", 3, 1))
	assert.Empty(t, admin.created)
}

func TestEnsureTopic_AlreadyExistsRace(t *testing.T) {
	admin := &fakeAdmin{topics: map[string]sarama.TopicDetail{}, createErr: sarama.ErrTopicAlreadyExists}
	assert.NoError(t, ensureTopic(admin, "t", 1, 1))
	assert.Error(t, ensureTopic(admin, " ", 1, 1))
}
