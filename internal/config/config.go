package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	Agent      AgentConfig
	Gemini     GeminiConfig
	Salute     SaluteConfig
	Voximplant VoximplantConfig
	Qdrant     QdrantConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// AgentConfig tunes the call agent behavior.
type AgentConfig struct {
	Name          string
	CompanyName   string
	MaxTurns      int
	ContextBudget int

	MaxConcurrentCalls int
	DialAnswerTimeout  time.Duration
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// SaluteSpeech is optional; without it the media stream is text-only.
type SaluteConfig struct {
	Credentials string
	Language    string
	Voice       string
	SampleRate  int
}

type VoximplantConfig struct {
	AccountID       string
	APIKey          string
	RuleID          int
	SMSSourceNumber string
}

// Qdrant is optional; without it the knowledge base is disabled.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	VectorSize int
}

// DB is optional; without it call history stays in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Redis is optional; without it the call line cap is per-process only.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Agent.Name = strings.TrimSpace(os.Getenv("AGENT_NAME"))
	c.Agent.CompanyName = strings.TrimSpace(os.Getenv("COMPANY_NAME"))
	c.Agent.MaxTurns = optionalInt("MAX_DIALOGUE_TURNS")
	c.Agent.ContextBudget = optionalInt("KNOWLEDGE_CONTEXT_BUDGET")
	c.Agent.MaxConcurrentCalls = optionalInt("MAX_CONCURRENT_CALLS")
	c.Agent.DialAnswerTimeout = optionalDuration("DIAL_ANSWER_TIMEOUT")

	c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	c.Gemini.Model = strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	c.Gemini.EmbeddingModel = strings.TrimSpace(os.Getenv("GEMINI_EMBEDDING_MODEL"))

	c.Salute.Credentials = os.Getenv("SALUTE_SPEECH_CREDENTIALS")
	c.Salute.Language = strings.TrimSpace(os.Getenv("SALUTE_SPEECH_LANGUAGE"))
	c.Salute.Voice = strings.TrimSpace(os.Getenv("SALUTE_SPEECH_VOICE"))
	c.Salute.SampleRate = optionalInt("SALUTE_SPEECH_SAMPLE_RATE")

	c.Voximplant.AccountID = strings.TrimSpace(os.Getenv("VOXIMPLANT_ACCOUNT_ID"))
	c.Voximplant.APIKey = os.Getenv("VOXIMPLANT_API_KEY")
	c.Voximplant.RuleID = optionalInt("VOXIMPLANT_RULE_ID")
	c.Voximplant.SMSSourceNumber = strings.TrimSpace(os.Getenv("VOXIMPLANT_SMS_SOURCE_NUMBER"))

	c.Qdrant.URL = strings.TrimSpace(os.Getenv("QDRANT_URL"))
	c.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
	c.Qdrant.Collection = strings.TrimSpace(os.Getenv("QDRANT_COLLECTION"))
	c.Qdrant.VectorSize = optionalInt("QDRANT_VECTOR_SIZE")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optionalInt("DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optionalInt("REDIS_PORT")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optionalDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optionalDuration("JWT_REFRESH_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Agent.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("MAX_DIALOGUE_TURNS must be positive, got %d", c.Agent.MaxTurns))
	}
	if c.Agent.MaxConcurrentCalls < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_CALLS must be positive, got %d", c.Agent.MaxConcurrentCalls))
	}

	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.EmbeddingModel == "" {
		c.Gemini.EmbeddingModel = "text-embedding-004"
	}

	if c.Voximplant.AccountID == "" {
		errs = append(errs, errors.New("VOXIMPLANT_ACCOUNT_ID is required"))
	}
	if c.Voximplant.APIKey == "" {
		errs = append(errs, errors.New("VOXIMPLANT_API_KEY is required"))
	}
	if c.Voximplant.RuleID <= 0 {
		errs = append(errs, errors.New("VOXIMPLANT_RULE_ID is required"))
	}

	// Optional blocks must be configured fully or not at all.
	if c.DBConfigured() {
		if c.DB.Host == "" || c.DB.Port <= 0 || c.DB.User == "" || c.DB.Name == "" {
			errs = append(errs, errors.New("DB_HOST, DB_PORT, DB_USER and DB_NAME must all be set to enable Postgres history"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}
	if c.RedisConfigured() && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Qdrant.URL != "" && c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "knowledge_base"
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DBConfigured reports whether Postgres history storage is enabled.
func (c Config) DBConfigured() bool {
	return c.DB.Host != "" || c.DB.Name != "" || c.DB.User != ""
}

// RedisConfigured reports whether the shared call line cap is enabled.
func (c Config) RedisConfigured() bool {
	return c.Redis.Host != ""
}

// QdrantConfigured reports whether the knowledge base is enabled.
func (c Config) QdrantConfigured() bool {
	return c.Qdrant.URL != ""
}

// SaluteConfigured reports whether speech synthesis and recognition are
// enabled.
func (c Config) SaluteConfigured() bool {
	return c.Salute.Credentials != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optionalDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
