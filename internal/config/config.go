package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every runtime setting of the bot process.
type Config struct {
	Server   ServerConfig
	Telegram TelegramConfig
	AI       AIConfig
	Catalog  CatalogConfig
	Match    MatchConfig
}

// Load reads configuration from the environment. Missing credentials are a
// startup error; everything else has a default.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	telegram, err := loadTelegramConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	match, err := loadMatchConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Telegram: telegram,
		AI:       ai,
		Catalog:  loadCatalogConfig(),
		Match:    match,
	}, nil
}

// ServerConfig describes the ops HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// TelegramConfig describes the long-poll transport settings.
type TelegramConfig struct {
	Token          string
	BaseURL        string
	PollTimeoutSec int
}

func loadTelegramConfig() (TelegramConfig, error) {
	token := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if token == "" {
		return TelegramConfig{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	pollTimeout := 30
	if override, err := parseOptionalIntEnv("TELEGRAM_POLL_TIMEOUT"); err != nil {
		return TelegramConfig{}, err
	} else if override != nil && *override > 0 {
		pollTimeout = *override
	}

	return TelegramConfig{
		Token:          token,
		BaseURL:        getEnvOrDefault("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		PollTimeoutSec: pollTimeout,
	}, nil
}

// AIConfig describes the generative-model settings.
type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// NewChatModel builds an OpenAI-backed chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is missing")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &openai.ChatModelConfig{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
	}

	return openai.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return AIConfig{}, fmt.Errorf("OPENAI_API_KEY is required")
	}

	temperature, err := parseOptionalFloatEnv("OPENAI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("OPENAI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSec := 30
	if override, err := parseOptionalIntEnv("OPENAI_TIMEOUT_SECONDS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSec = *override
	}

	return AIConfig{
		APIKey:      apiKey,
		BaseURL:     strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Model:       getEnvOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     time.Duration(timeoutSec) * time.Second,
	}, nil
}

// CatalogConfig points at the canned-response documents.
type CatalogConfig struct {
	ResponsesPath string
	InfoPath      string
}

func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		ResponsesPath: getEnvOrDefault("CATALOG_RESPONSES_PATH", "respuestas.json"),
		InfoPath:      getEnvOrDefault("CATALOG_INFO_PATH", "informacion.json"),
	}
}

// MatchConfig tunes the approximate matcher.
type MatchConfig struct {
	Threshold float64
}

func loadMatchConfig() (MatchConfig, error) {
	threshold := 0.6
	if override, err := parseOptionalFloatEnv("MATCH_THRESHOLD"); err != nil {
		return MatchConfig{}, err
	} else if override != nil {
		threshold = *override
	}

	if threshold <= 0 || threshold > 1 {
		return MatchConfig{}, fmt.Errorf("MATCH_THRESHOLD must be in (0,1], got %v", threshold)
	}

	return MatchConfig{Threshold: threshold}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
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
