package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Fal        FalConfig
	ElevenLabs ElevenLabsConfig
	Renderer   RendererConfig
	Storage    StorageConfig
	Retention  RetentionConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	GeneratePerHour int
}

type FalConfig struct {
	APIKey  string
	BaseURL string
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
}

type RendererConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type StorageConfig struct {
	OutputDir string
}

type RetentionConfig struct {
	MaxAgeHours      int
	SweepIntervalMin int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("FAL_API_KEY")
	readSecret("ELEVENLABS_API_KEY")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("fal.api_key", "FAL_API_KEY")
	_ = viper.BindEnv("fal.base_url", "FAL_BASE_URL")
	_ = viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	_ = viper.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	_ = viper.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	_ = viper.BindEnv("renderer.service_url", "RENDERER_SERVICE_URL")
	_ = viper.BindEnv("renderer.timeout", "RENDERER_TIMEOUT")
	_ = viper.BindEnv("storage.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("retention.max_age_hours", "RETENTION_MAX_AGE_HOURS")
	_ = viper.BindEnv("retention.sweep_interval_min", "RETENTION_SWEEP_INTERVAL_MIN")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("ratelimit.generate_per_hour", 10)

	// Fal defaults (Ideogram v3 text-to-image)
	viper.SetDefault("fal.base_url", "https://fal.run/fal-ai/ideogram/v3")

	// ElevenLabs defaults
	viper.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io/v1")
	viper.SetDefault("elevenlabs.voice_id", "pNInz6obpgDQGcFmaJgB")

	// Renderer service defaults
	viper.SetDefault("renderer.service_url", "")
	viper.SetDefault("renderer.timeout", 600)

	// Storage defaults
	viper.SetDefault("storage.output_dir", "generated-videos")

	// Retention defaults
	viper.SetDefault("retention.max_age_hours", 24)
	viper.SetDefault("retention.sweep_interval_min", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
		},
		Fal: FalConfig{
			APIKey:  viper.GetString("fal.api_key"),
			BaseURL: viper.GetString("fal.base_url"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  viper.GetString("elevenlabs.api_key"),
			BaseURL: viper.GetString("elevenlabs.base_url"),
			VoiceID: viper.GetString("elevenlabs.voice_id"),
		},
		Renderer: RendererConfig{
			ServiceURL: viper.GetString("renderer.service_url"),
			Timeout:    viper.GetInt("renderer.timeout"),
		},
		Storage: StorageConfig{
			OutputDir: viper.GetString("storage.output_dir"),
		},
		Retention: RetentionConfig{
			MaxAgeHours:      viper.GetInt("retention.max_age_hours"),
			SweepIntervalMin: viper.GetInt("retention.sweep_interval_min"),
		},
	}

	return cfg, nil
}
