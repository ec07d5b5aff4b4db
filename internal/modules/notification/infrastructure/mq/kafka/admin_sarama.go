package kafka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"Inkwell/internal/config"

	"github.com/IBM/sarama"
)

// notificationRetention 下游消费者的补偿窗口
const notificationRetention = 7 * 24 * time.Hour

// EnsureTopic 主题不存在时创建
func EnsureTopic(cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka brokers is empty")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.ClientID = strings.TrimSpace(cfg.ClientID)

	admin, err := sarama.NewClusterAdmin(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	defer admin.Close()
	return ensureTopic(admin, cfg.NotificationTopic, cfg.Partitions, cfg.ReplicationFactor)
}

func ensureTopic(admin sarama.ClusterAdmin, topic string, partitions int32, replicationFactor int16) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("kafka topic is empty")
	}
	if partitions <= 0 {
		partitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	topics, err := admin.ListTopics()
	if err != nil {
		return err
	}
	if _, ok := topics[topic]; ok {
		return nil
	}

	retention := strconv.FormatInt(notificationRetention.Milliseconds(), 10)
	td := &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
		ConfigEntries:     map[string]*string{"retention.ms": &retention},
	}
	if err := admin.CreateTopic(topic, td, false); err != nil {
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}
