package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Availability AvailabilityConfig
	CRM          CRMConfig
	Leads        LeadsConfig
	Ops          OpsConfig
}

type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AvailabilityConfig tunes feed fetching and snapshot caching.
type AvailabilityConfig struct {
	CacheTTL     time.Duration
	Retention    time.Duration
	FetchTimeout time.Duration
	UserAgent    string
	// Calendars maps a property slug to its calendar feed URL.
	Calendars map[string]string
}

// CRMConfig holds the downstream CRM credentials and pipeline wiring.
type CRMConfig struct {
	BaseURL    string
	APIKey     string
	LocationID string
	PipelineID string
	Stages     CRMStageIDs
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
}

// CRMStageIDs maps each pipeline stage to the CRM's stage identifier.
type CRMStageIDs struct {
	NewInquiry string
	QuoteSent  string
	Replied    string
	Booked     string
}

// Enabled reports whether enough credentials exist to talk to the CRM.
func (c CRMConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.LocationID != ""
}

// LeadsConfig governs inquiry normalization and the deferred CRM retry worker.
type LeadsConfig struct {
	DefaultCountryCode string
	DedupWindow        time.Duration
	RetryEnabled       bool
	RetryWorkers       int
	RetryAttempts      int
	RetryDelay         time.Duration
}

// OpsConfig guards the operator endpoints. An empty Secret disables the check.
type OpsConfig struct {
	Secret         string
	IdempotencyTTL time.Duration
}

// OpenMode reports whether operator endpoints run without authentication.
func (o OpsConfig) OpenMode() bool {
	return o.Secret == ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("DB_ENABLED"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Availability = AvailabilityConfig{
		CacheTTL:     parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 15*time.Minute),
		Retention:    parseDuration(v.GetString("AVAILABILITY_RETENTION"), 0),
		FetchTimeout: parseDuration(v.GetString("FEED_FETCH_TIMEOUT"), 10*time.Second),
		UserAgent:    v.GetString("FEED_USER_AGENT"),
		Calendars:    ParseCalendarMap(v.GetString("PROPERTY_CALENDARS")),
	}

	cfg.CRM = CRMConfig{
		BaseURL:    strings.TrimRight(v.GetString("CRM_BASE_URL"), "/"),
		APIKey:     v.GetString("CRM_API_KEY"),
		LocationID: v.GetString("CRM_LOCATION_ID"),
		PipelineID: v.GetString("CRM_PIPELINE_ID"),
		Stages: CRMStageIDs{
			NewInquiry: v.GetString("CRM_STAGE_NEW_INQUIRY"),
			QuoteSent:  v.GetString("CRM_STAGE_QUOTE_SENT"),
			Replied:    v.GetString("CRM_STAGE_REPLIED"),
			Booked:     v.GetString("CRM_STAGE_BOOKED"),
		},
		Timeout:   parseDuration(v.GetString("CRM_TIMEOUT"), 8*time.Second),
		RateLimit: v.GetFloat64("CRM_RATE_LIMIT"),
		RateBurst: v.GetInt("CRM_RATE_BURST"),
	}

	cfg.Leads = LeadsConfig{
		DefaultCountryCode: strings.TrimPrefix(v.GetString("LEAD_DEFAULT_COUNTRY_CODE"), "+"),
		DedupWindow:        parseDuration(v.GetString("LEAD_DEDUP_WINDOW"), 7*24*time.Hour),
		RetryEnabled:       v.GetBool("LEAD_RETRY_ENABLED"),
		RetryWorkers:       v.GetInt("LEAD_RETRY_WORKERS"),
		RetryAttempts:      v.GetInt("LEAD_RETRY_ATTEMPTS"),
		RetryDelay:         parseDuration(v.GetString("LEAD_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Ops = OpsConfig{
		Secret:         v.GetString("OPS_SECRET"),
		IdempotencyTTL: parseDuration(v.GetString("IDEMPOTENCY_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "villa_intake")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AVAILABILITY_CACHE_TTL", "15m")
	v.SetDefault("AVAILABILITY_RETENTION", "0s")
	v.SetDefault("FEED_FETCH_TIMEOUT", "10s")
	v.SetDefault("FEED_USER_AGENT", "VillaIntake-AvailabilityBot/1.0")
	v.SetDefault("PROPERTY_CALENDARS", "")

	v.SetDefault("CRM_BASE_URL", "https://services.leadconnectorhq.com")
	v.SetDefault("CRM_API_KEY", "")
	v.SetDefault("CRM_LOCATION_ID", "")
	v.SetDefault("CRM_PIPELINE_ID", "")
	v.SetDefault("CRM_STAGE_NEW_INQUIRY", "")
	v.SetDefault("CRM_STAGE_QUOTE_SENT", "")
	v.SetDefault("CRM_STAGE_REPLIED", "")
	v.SetDefault("CRM_STAGE_BOOKED", "")
	v.SetDefault("CRM_TIMEOUT", "8s")
	v.SetDefault("CRM_RATE_LIMIT", 5)
	v.SetDefault("CRM_RATE_BURST", 10)

	v.SetDefault("LEAD_DEFAULT_COUNTRY_CODE", "1")
	v.SetDefault("LEAD_DEDUP_WINDOW", "168h")
	v.SetDefault("LEAD_RETRY_ENABLED", false)
	v.SetDefault("LEAD_RETRY_WORKERS", 1)
	v.SetDefault("LEAD_RETRY_ATTEMPTS", 3)
	v.SetDefault("LEAD_RETRY_DELAY", "30s")

	v.SetDefault("OPS_SECRET", "")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
}

// ParseCalendarMap reads "slug=url,slug=url" pairs. Malformed pairs are skipped.
func ParseCalendarMap(raw string) map[string]string {
	result := make(map[string]string)
	for _, pair := range splitAndTrim(raw) {
		slug, url, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		slug = strings.ToLower(strings.TrimSpace(slug))
		url = strings.TrimSpace(url)
		if slug == "" || url == "" {
			continue
		}
		result[slug] = url
	}
	return result
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
