package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	MongoURI        string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBName     string        `env:"MONGO_DB_NAME" envDefault:"shopez"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	KafkaBrokers    []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	AuthEventsTopic string        `env:"AUTH_EVENTS_TOPIC" envDefault:"auth-events"`
	ConsumerGroup   string        `env:"CONSUMER_GROUP" envDefault:"cartsync-reconciler"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
