package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the relay. It is constructed once at
// startup and passed by reference into each component; nothing mutates it
// after Load returns.
type Config struct {
	HTTPPort       string
	Provider       string // provider selector: "openai" or unset
	OpenAI         OpenAIConfig
	Forward        ForwardConfig
	Moderation     ModerationConfig
	LogDir         string
	MaxBodyBytes   int64
	RequestTimeout time.Duration // timeout for outbound provider/moderation calls
}

// OpenAIConfig holds settings for the named OpenAI forwarding path.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// ForwardConfig holds settings for the generic forward path.
type ForwardConfig struct {
	URL    string
	APIKey string
}

// ModerationConfig holds moderation settings.
type ModerationConfig struct {
	Enabled bool // master switch; disabled means every prompt is allowed
	UseAPI  bool // call the upstream moderation service before the blocklist
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}
	return duration
}

// Load reads configuration from environment variables. A missing provider
// credential is not a startup error: the forwarder reports it per request
// as a server-configuration error instead.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Provider: getEnvString("PROVIDER", ""),
		OpenAI: OpenAIConfig{
			APIKey:       getEnvString("OPENAI_API_KEY", ""),
			BaseURL:      getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			DefaultModel: getEnvString("OPENAI_DEFAULT_MODEL", "gpt-3.5-turbo"),
		},
		Forward: ForwardConfig{
			URL:    getEnvString("FORWARD_URL", ""),
			APIKey: getEnvString("FORWARD_API_KEY", ""),
		},
		Moderation: ModerationConfig{
			Enabled: getEnvBool("MODERATION_ENABLED", true),
			UseAPI:  getEnvBool("MODERATION_USE_API", false),
		},
		LogDir:         getEnvString("LOG_DIR", "./logs"),
		MaxBodyBytes:   getEnvInt64("MAX_BODY_BYTES", 1_048_576), // default 1 MiB
		RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
	}

	return cfg, nil
}
