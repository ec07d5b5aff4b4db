package initial

import (
	"Inkwell/internal/config"
	"Inkwell/internal/modules/notification/infrastructure/mq"
	"Inkwell/internal/modules/notification/infrastructure/mq/kafka"
	"Inkwell/pkg/zlog"

	"go.uber.org/zap"
)

// NewNotificationPublisher 未配置 broker 时返回 nil, nil
func NewNotificationPublisher(conf *config.Config) (mq.Publisher, error) {
	if !conf.KafkaConfig.Enabled() {
		zlog.Info("Kafka 未配置，通知不做镜像")
		return nil, nil
	}
	if err := kafka.EnsureTopic(conf.KafkaConfig); err != nil {
		// 主题可能由运维预先创建，继续尝试建立 producer
		zlog.Warn("ensure kafka topic failed", zap.String("topic", conf.NotificationTopic), zap.Error(err))
	}
	return kafka.NewSaramaPublisher(conf.KafkaConfig)
}
