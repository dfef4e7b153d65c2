package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config groups every setting of the service.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Knowledge KnowledgeConfig
	Session   SessionConfig
	Admin     AdminConfig
	Log       LogConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Knowledge: loadKnowledgeConfig(),
		Session:   session,
		Admin:     loadAdminConfig(),
		Log:       logCfg,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// accepts ":8080" or "127.0.0.1:8080" as-is
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the hosted model and how conversations use it.
type AIConfig struct {
	APIKey        string
	AccessKey     string
	SecretKey     string
	Model         string
	BaseURL       string
	Region        string
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
	Timeout       time.Duration
	HistoryLimit  int
	MaxAttempts   int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
	IntentRouter  bool
}

// Enabled reports whether the credentials required to reach the model are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates the ark chat model described by the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing ark credentials: set ARK_MODEL and ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds, err := parseIntEnv("ARK_TIMEOUT", 30)
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit, err := parseIntEnv("CHAT_HISTORY_LIMIT", 20)
	if err != nil {
		return AIConfig{}, err
	}

	maxAttempts, err := parseIntEnv("CHAT_MAX_ATTEMPTS", 3)
	if err != nil {
		return AIConfig{}, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	intentRouter, err := parseBoolEnv("INTENT_ROUTER_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         getEnvOrDefault("ARK_MODEL", strings.TrimSpace(os.Getenv("Model"))),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		Timeout:       time.Duration(timeoutSeconds) * time.Second,
		HistoryLimit:  historyLimit,
		MaxAttempts:   maxAttempts,
		RetryBaseWait: time.Second,
		RetryMaxWait:  8 * time.Second,
		IntentRouter:  intentRouter,
	}, nil
}

// KnowledgeConfig points at the files holding the grounding content.
type KnowledgeConfig struct {
	KnowledgeFile string
	ContactsFile  string
	VersesFile    string
	// ReloadSpec is a cron spec for re-reading the files; empty disables it.
	ReloadSpec string
}

func loadKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		KnowledgeFile: getEnvOrDefault("KNOWLEDGE_FILE", "conhecimento_esperancapontalsul.txt"),
		ContactsFile:  getEnvOrDefault("CONTACTS_FILE", "contatos.json"),
		VersesFile:    getEnvOrDefault("VERSES_FILE", "versiculos.txt"),
		ReloadSpec:    strings.TrimSpace(os.Getenv("KNOWLEDGE_RELOAD_SPEC")),
	}
}

// SessionConfig controls the browser session cookie and its lifetime.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Secure bool
}

// DefaultSessionSecret is used when SESSION_SECRET is unset; main warns about it.
const DefaultSessionSecret = "troque-esta-chave-de-sessao"

func loadSessionConfig() (SessionConfig, error) {
	ttlMinutes, err := parseIntEnv("SESSION_TTL_MINUTES", 120)
	if err != nil {
		return SessionConfig{}, err
	}
	if ttlMinutes < 1 {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_TTL_MINUTES value %d: must be positive", ttlMinutes)
	}

	secure, err := parseBoolEnv("SESSION_SECURE_COOKIE", false)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		Secret: getEnvOrDefault("SESSION_SECRET", getEnvOrDefault("FLASK_SECRET_KEY", DefaultSessionSecret)),
		TTL:    time.Duration(ttlMinutes) * time.Minute,
		Secure: secure,
	}, nil
}

// AdminConfig holds the optional credentials guarding the knowledge editor.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// Enabled reports whether the admin login gate is configured.
func (c AdminConfig) Enabled() bool {
	return c.Username != "" && c.PasswordHash != ""
}

func loadAdminConfig() AdminConfig {
	return AdminConfig{
		Username:     strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
		PasswordHash: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")),
	}
}

// LogConfig selects log verbosity and format.
type LogConfig struct {
	Level string
	JSON  bool
}

func loadLogConfig() (LogConfig, error) {
	jsonFormat, err := parseBoolEnv("LOG_JSON", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level: getEnvOrDefault("LOG_LEVEL", "info"),
		JSON:  jsonFormat,
	}, nil
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

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
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
