package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName  string `toml:"appName"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	ForceTLS bool   `toml:"forceTLS"`
	GinMode  string `toml:"ginMode"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	LogPath    string `toml:"logPath"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type RedisConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"poolSize"`
	MinIdleConns    int    `toml:"minIdleConns"`
	UnreadTTLSecond int    `toml:"unreadTTLSecond"`
}

type KafkaConfig struct {
	Brokers           []string `toml:"brokers"`
	ClientID          string   `toml:"clientID"`
	NotificationTopic string   `toml:"notificationTopic"`
	Partitions        int32    `toml:"partitions"`
	ReplicationFactor int16    `toml:"replicationFactor"`
}

// Enabled 未配置 broker 时不启用 kafka 镜像
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// RealtimeConfig 实时推送相关配置
type RealtimeConfig struct {
	HeartbeatIntervalSeconds int      `toml:"heartbeatIntervalSeconds"`
	LivenessTimeoutSeconds   int      `toml:"livenessTimeoutSeconds"`
	SendBufferSize           int      `toml:"sendBufferSize"`
	MaxConnectionsPerUser    int      `toml:"maxConnectionsPerUser"`
	AllowedOrigins           []string `toml:"allowedOrigins"`
}

// NotificationConfig 通知保留策略
type NotificationConfig struct {
	RetentionCron string `toml:"retentionCron"`
	RetentionDays int    `toml:"retentionDays"`
	PageSizeMax   int    `toml:"pageSizeMax"`
}

type Config struct {
	MainConfig         `toml:"mainConfig"`
	MysqlConfig        `toml:"mysqlConfig"`
	JwtConfig          `toml:"jwtConfig"`
	LogConfig          `toml:"logConfig"`
	RedisConfig        `toml:"redisConfig"`
	KafkaConfig        `toml:"kafkaConfig"`
	RealtimeConfig     `toml:"realtimeConfig"`
	NotificationConfig `toml:"notificationConfig"`
}

// DefaultConfigPath 未通过 flag / 环境变量指定时使用
const DefaultConfigPath = "configs/config_local.toml"

// EnvConfigPath 覆盖配置文件路径的环境变量
const EnvConfigPath = "INKWELL_CONFIG"

// Load 读取 toml 文件并补全默认值
func Load(path string) (*Config, error) {
	c := new(Config)
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return c, nil
}

// ApplyDefaults 为未填写的字段补默认值
func (c *Config) ApplyDefaults() {
	if c.AppName == "" {
		c.AppName = "inkwell"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8080
	}
	if c.JwtConfig.ExpireHours <= 0 {
		c.JwtConfig.ExpireHours = 24
	}
	if c.JwtConfig.Issuer == "" {
		c.JwtConfig.Issuer = c.AppName
	}
	if c.RedisConfig.UnreadTTLSecond <= 0 {
		c.RedisConfig.UnreadTTLSecond = 60
	}
	if c.KafkaConfig.NotificationTopic == "" {
		c.KafkaConfig.NotificationTopic = "inkwell.notifications"
	}
	if c.KafkaConfig.Partitions <= 0 {
		c.KafkaConfig.Partitions = 3
	}
	if c.KafkaConfig.ReplicationFactor <= 0 {
		c.KafkaConfig.ReplicationFactor = 1
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		c.HeartbeatIntervalSeconds = 30
	}
	if c.LivenessTimeoutSeconds <= 0 {
		c.LivenessTimeoutSeconds = 3 * c.HeartbeatIntervalSeconds
	}
	// 双工连接每个心跳间隔 ping 一次，超时至少留出两个间隔
	if c.LivenessTimeoutSeconds < 2*c.HeartbeatIntervalSeconds {
		c.LivenessTimeoutSeconds = 2 * c.HeartbeatIntervalSeconds
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 64
	}
	if c.MaxConnectionsPerUser <= 0 {
		c.MaxConnectionsPerUser = 10
	}
	if c.RetentionCron == "" {
		c.RetentionCron = "0 3 * * *"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.PageSizeMax <= 0 {
		c.PageSizeMax = 100
	}
}

func (c RealtimeConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c RealtimeConfig) LivenessTimeout() time.Duration {
	return time.Duration(c.LivenessTimeoutSeconds) * time.Second
}

// Enabled 未配置 host 时不启用未读数缓存
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) UnreadTTL() time.Duration {
	return time.Duration(c.UnreadTTLSecond) * time.Second
}

var (
	config   *Config
	loadOnce sync.Once
)

// GetConfig 进程级配置，首次调用时加载；文件缺失时退回默认值
func GetConfig() *Config {
	loadOnce.Do(func() {
		path := os.Getenv(EnvConfigPath)
		if path == "" {
			path = DefaultConfigPath
		}
		c, err := Load(path)
		if err != nil {
			log.Printf("加载配置文件失败: %v, 使用默认设置", err)
			c = new(Config)
			c.ApplyDefaults()
		}
		config = c
	})
	return config
}
