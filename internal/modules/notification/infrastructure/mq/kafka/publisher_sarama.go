package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"Inkwell/internal/config"
	"Inkwell/internal/modules/notification/infrastructure/mq"

	"github.com/IBM/sarama"
)

type saramaPublisher struct {
	p sarama.SyncProducer
}

func newSaramaConfig(clientID string) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Retry.Backoff = 100 * time.Millisecond
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	// 同一接收人的通知落在同一分区，保持单用户内有序
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.ClientID = strings.TrimSpace(clientID)
	return sc
}

func NewSaramaPublisher(cfg config.KafkaConfig) (mq.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}
	p, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg.ClientID))
	if err != nil {
		return nil, err
	}
	return NewPublisherFromProducer(p), nil
}

// NewPublisherFromProducer 包装已有的 SyncProducer
func NewPublisherFromProducer(p sarama.SyncProducer) mq.Publisher {
	return &saramaPublisher{p: p}
}

func (s *saramaPublisher) Publish(ctx context.Context, msg mq.Message) (mq.PublishResult, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return mq.PublishResult{}, ctx.Err()
		default:
		}
	}
	if strings.TrimSpace(msg.Topic) == "" {
		return mq.PublishResult{}, errors.New("kafka topic is empty")
	}

	m := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Key:   sarama.ByteEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
	}
	for k, v := range msg.Headers {
		kk := strings.TrimSpace(k)
		if kk == "" {
			continue
		}
		m.Headers = append(m.Headers, sarama.RecordHeader{Key: []byte(kk), Value: []byte(v)})
	}

	partition, offset, err := s.p.SendMessage(m)
	if err != nil {
		return mq.PublishResult{}, err
	}
	return mq.PublishResult{Partition: partition, Offset: offset}, nil
}

func (s *saramaPublisher) Close() error {
	if s == nil || s.p == nil {
		return nil
	}
	return s.p.Close()
}
