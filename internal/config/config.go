package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config aggregates the immutable process configuration. It is constructed
// once at startup and shared by reference; request handlers never mutate it.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Upstream UpstreamConfig
	Auth     AuthConfig
	Audio    AudioConfig
	Log      LogConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// StorageConfig locates the transcript root and the rules file.
type StorageConfig struct {
	HistoryDir string
	RulesFile  string
}

// UpstreamConfig describes the chat-completion backend.
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AuthConfig carries the shared access secret.
type AuthConfig struct {
	PrivateKey string
}

// AudioConfig is consumed by clients that replay transcripts as speech; the
// relay only parses and reports it.
type AudioConfig struct {
	SampleRate int
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	historyDir := strings.TrimSpace(os.Getenv("HISTORY_DIR"))
	if historyDir == "" {
		return nil, fmt.Errorf("HISTORY_DIR is required")
	}

	privateKey := os.Getenv("PRIVATE_KEY")
	if privateKey == "" {
		return nil, fmt.Errorf("PRIVATE_KEY is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL is required")
	}

	sampleRate := 16000
	if override, err := parseOptionalIntEnv("SAMPLE_RATE"); err != nil {
		return nil, err
	} else if override != nil {
		sampleRate = *override
	}

	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Storage: StorageConfig{
			HistoryDir: historyDir,
			RulesFile:  getEnvOrDefault("RULES_FILE", "rules.json"),
		},
		Upstream: UpstreamConfig{
			BaseURL: baseURL,
			APIKey:  strings.TrimSpace(os.Getenv("UPSTREAM_API_KEY")),
			Model:   getEnvOrDefault("UPSTREAM_MODEL", "gpt-oss:120b"),
		},
		Auth:  AuthConfig{PrivateKey: privateKey},
		Audio: AudioConfig{SampleRate: sampleRate},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Pretty: pretty,
		},
	}, nil
}

// loadServerConfig parses the listen address. PORT accepts a bare port,
// ":8080", or "127.0.0.1:8080".
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
