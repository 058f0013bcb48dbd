package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                string `mapstructure:"port"`
	MetricsPort         string `mapstructure:"metrics_port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type JwtCfg struct {
	Secret        string `mapstructure:"secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	SigningMethod string `mapstructure:"signing_method"`
}

type DirectoryCfg struct {
	BaseURL         string `mapstructure:"base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

type MediaCfg struct {
	Bucket            string `mapstructure:"bucket"`
	Region            string `mapstructure:"region"`
	PublicRead        bool   `mapstructure:"public_read"`
	MaxBytes          int64  `mapstructure:"max_bytes"`
	MaxPixels         int    `mapstructure:"max_pixels"`
	PresignTTLSeconds int    `mapstructure:"presign_ttl_seconds"`
}

type RateCfg struct {
	SendPerMinute int `mapstructure:"send_per_minute"`
}

type Config struct {
	Env       string       `mapstructure:"env"`
	Server    ServerCfg    `mapstructure:"server"`
	Mongo     MongoCfg     `mapstructure:"mongo"`
	Redis     RedisCfg     `mapstructure:"redis"`
	Kafka     KafkaCfg     `mapstructure:"kafka"`
	JWT       JwtCfg       `mapstructure:"jwt"`
	Directory DirectoryCfg `mapstructure:"directory"`
	Media     MediaCfg     `mapstructure:"media"`
	Rate      RateCfg      `mapstructure:"rate"`
	// Derived
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	DirectoryTimeout time.Duration
	DirectoryTTL     time.Duration
	PresignTTL       time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("CONSOGAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.MetricsPort == "" {
		cfg.Server.MetricsPort = "9090"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 15
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "consogab"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "consogab.messaging"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "consogab-messaging"
	}
	if cfg.Directory.TimeoutSeconds == 0 {
		cfg.Directory.TimeoutSeconds = 5
	}
	if cfg.Directory.CacheTTLSeconds == 0 {
		cfg.Directory.CacheTTLSeconds = 300
	}
	if cfg.Media.MaxBytes == 0 {
		cfg.Media.MaxBytes = 5 << 20
	}
	if cfg.Media.MaxPixels == 0 {
		cfg.Media.MaxPixels = 4096
	}
	if cfg.Media.PresignTTLSeconds == 0 {
		cfg.Media.PresignTTLSeconds = 900
	}
	if cfg.Rate.SendPerMinute == 0 {
		cfg.Rate.SendPerMinute = 60
	}

	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	cfg.DirectoryTimeout = time.Duration(cfg.Directory.TimeoutSeconds) * time.Second
	cfg.DirectoryTTL = time.Duration(cfg.Directory.CacheTTLSeconds) * time.Second
	cfg.PresignTTL = time.Duration(cfg.Media.PresignTTLSeconds) * time.Second
	return &cfg, nil
}
