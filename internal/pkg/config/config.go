package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr       string        `env:"SERVER_ADDR" envDefault:":3000"`
	AdminAddr        string        `env:"ADMIN_ADDR" envDefault:":9091"`
	StaticDir        string        `env:"STATIC_DIR" envDefault:"public"`
	MaxMessageSize   int64         `env:"MAX_MESSAGE_SIZE_BYTES" envDefault:"104857600"` // 100MB, large enough for document uploads
	MongoURL         string        `env:"MONGO_URL"`                                     // optional: absence degrades per-request, not at boot
	RedisAddr        string        `env:"REDIS_ADDR"`                                    // optional: enables the latest-copy cache
	CopyCacheTTL     time.Duration `env:"COPY_CACHE_TTL" envDefault:"30s"`
	ConvertAPIURL    string        `env:"CONVERTAPI_URL" envDefault:"https://v2.convertapi.com"`
	ConvertAPISecret string        `env:"CONVERTAPI_SECRET"`
	ConvertTimeout   time.Duration `env:"CONVERT_TIMEOUT" envDefault:"90s"`
	ConvertRate      float64       `env:"CONVERT_RATE_PER_SEC" envDefault:"2"`
	ConvertBurst     int           `env:"CONVERT_BURST" envDefault:"4"`
	StagingDir       string        `env:"STAGING_DIR" envDefault:"/tmp"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
