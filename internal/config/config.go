package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	WsSendBuffer     int      `env:"WS_SEND_BUFFER"     envDefault:"256"   validate:"min=1"`
	WsReadLimit      int64    `env:"WS_READ_LIMIT"      envDefault:"65536" validate:"min=512"`
	WsAllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`

	ActivityLogEnabled bool   `env:"ACTIVITY_LOG_ENABLED" envDefault:"false"`
	PostgresHost       string `env:"POSTGRES_HOST"        envDefault:"localhost"`
	PostgresPort       string `env:"POSTGRES_PORT"        envDefault:"5432"`
	PostgresUser       string `env:"POSTGRES_USER"        envDefault:"hub_user"`
	PostgresPassword   string `env:"POSTGRES_PASSWORD"    envDefault:"hub_password"`
	PostgresDb         string `env:"POSTGRES_DB"          envDefault:"hub_db"`
	ActivityBatchSize  int    `env:"ACTIVITY_BATCH_SIZE"  envDefault:"100" validate:"min=1,max=10000"`

	PresenceMirrorEnabled  bool          `env:"PRESENCE_MIRROR_ENABLED"  envDefault:"false"`
	RedisPresenceHost      string        `env:"REDIS_PRESENCE_HOST"      envDefault:"localhost"`
	RedisPresencePort      uint16        `env:"REDIS_PRESENCE_PORT"      envDefault:"6379" validate:"min=1000,max=65535"`
	PresenceMirrorInterval time.Duration `env:"PRESENCE_MIRROR_INTERVAL" envDefault:"10s" validate:"min=1s"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
