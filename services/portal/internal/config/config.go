package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the repo root.
// PORTAL_CONFIG overrides it.
var ConfigPath = "services/portal/config.yaml"

const maxUploadCap = 5 * 1024 * 1024

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	StoreBackend    string `yaml:"storeBackend"`
	StoreKey        string `yaml:"storeKey"`
	DataDir         string `yaml:"dataDir"`
	StoreQuotaBytes int64  `yaml:"storeQuotaBytes"`
	StoreLatency    string `yaml:"storeLatency"`
	LoginLatency    string `yaml:"loginLatency"`
	DatabaseURL     string `yaml:"databaseURL"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	RedisPrefix     string `yaml:"redisPrefix"`

	QuarantineEndpoint  string `yaml:"quarantineEndpoint"`
	QuarantineAccessKey string `yaml:"quarantineAccessKey"`
	QuarantineSecretKey string `yaml:"quarantineSecretKey"`
	QuarantineBucket    string `yaml:"quarantineBucket"`
	QuarantineUseSSL    bool   `yaml:"quarantineUseSSL"`

	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTTTL      string `yaml:"jwtTTL"`

	AdminUsername string `yaml:"adminUsername"`
	AdminPassword string `yaml:"adminPassword"`

	AIProvider     string `yaml:"aiProvider"`
	AIModel        string `yaml:"aiModel"`
	AIAPIKey       string `yaml:"aiApiKey"`
	AIBaseURL      string `yaml:"aiBaseURL"`
	InsightTimeout string `yaml:"insightTimeout"`

	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
	CORSAllowedOrigins         []string `yaml:"corsAllowedOrigins"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	MaxUploadBytes             int64    `yaml:"maxUploadBytes"`
	DashboardInterval          string   `yaml:"dashboardInterval"`
}

// Config is FileConfig with durations parsed and defaults applied.
type Config struct {
	FileConfig

	StoreLatencyDuration      time.Duration
	LoginLatencyDuration      time.Duration
	JWTTTLDuration            time.Duration
	InsightTimeoutDuration    time.Duration
	DashboardIntervalDuration time.Duration
}

// Load reads config from path (defaults to ConfigPath), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigPath
		if v := os.Getenv("PORTAL_CONFIG"); v != "" {
			path = v
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (Config, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&fc)
	applyDefaults(&fc)
	if err := validateConfig(fc); err != nil {
		return Config{}, err
	}

	cfg := Config{FileConfig: fc}
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"storeLatency", fc.StoreLatency, &cfg.StoreLatencyDuration},
		{"loginLatency", fc.LoginLatency, &cfg.LoginLatencyDuration},
		{"jwtTTL", fc.JWTTTL, &cfg.JWTTTLDuration},
		{"insightTimeout", fc.InsightTimeout, &cfg.InsightTimeoutDuration},
		{"dashboardInterval", fc.DashboardInterval, &cfg.DashboardIntervalDuration},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid %s duration: %w", d.name, err)
		}
		if v < 0 {
			return Config{}, fmt.Errorf("config: %s must be >= 0", d.name)
		}
		*d.dst = v
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	envString(&cfg.Port, "PORTAL_PORT")
	envString(&cfg.LogLevel, "PORTAL_LOG_LEVEL")
	envString(&cfg.StoreBackend, "PORTAL_STORE_BACKEND")
	envString(&cfg.DataDir, "PORTAL_DATA_DIR")
	envString(&cfg.StoreLatency, "PORTAL_STORE_LATENCY")
	envString(&cfg.LoginLatency, "PORTAL_LOGIN_LATENCY")
	envInt64(&cfg.StoreQuotaBytes, "PORTAL_STORE_QUOTA_BYTES")
	envString(&cfg.DatabaseURL, "DATABASE_URL")
	envString(&cfg.RedisAddr, "REDIS_ADDR")
	envString(&cfg.RedisPassword, "REDIS_PASSWORD")
	envString(&cfg.QuarantineEndpoint, "MINIO_ENDPOINT")
	envString(&cfg.QuarantineAccessKey, "MINIO_ACCESS_KEY")
	envString(&cfg.QuarantineSecretKey, "MINIO_SECRET_KEY")
	envString(&cfg.QuarantineBucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.QuarantineUseSSL = b
		}
	}
	envString(&cfg.JWTSecret, "JWT_SECRET")
	envString(&cfg.JWTIssuer, "JWT_ISSUER")
	envString(&cfg.JWTAudience, "JWT_AUDIENCE")
	envString(&cfg.AdminUsername, "PORTAL_ADMIN_USERNAME")
	envString(&cfg.AdminPassword, "PORTAL_ADMIN_PASSWORD")
	envString(&cfg.AIProvider, "AI_PROVIDER")
	envString(&cfg.AIModel, "AI_MODEL")
	envString(&cfg.AIBaseURL, "AI_BASE_URL")
	envString(&cfg.AIAPIKey, "GEMINI_API_KEY")
	envString(&cfg.AIAPIKey, "AI_API_KEY")
	if v := os.Getenv("PORTAL_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("PORTAL_CORS_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitCSV(v)
	}
	envInt(&cfg.LoginRateLimitPerMinute, "PORTAL_LOGIN_RATE_LIMIT_PER_MINUTE")
	envInt(&cfg.RegisterRateLimitPerMinute, "PORTAL_REGISTER_RATE_LIMIT_PER_MINUTE")
	envInt64(&cfg.MaxUploadBytes, "PORTAL_MAX_UPLOAD_BYTES")
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "memory"
	}
	if cfg.StoreLatency == "" {
		cfg.StoreLatency = "300ms"
	}
	if cfg.LoginLatency == "" {
		cfg.LoginLatency = "200ms"
	}
	if cfg.JWTTTL == "" {
		cfg.JWTTTL = "12h"
	}
	if cfg.InsightTimeout == "" {
		cfg.InsightTimeout = "30s"
	}
	if cfg.DashboardInterval == "" {
		cfg.DashboardInterval = "5s"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = maxUploadCap
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
	if cfg.RegisterRateLimitPerMinute == 0 {
		cfg.RegisterRateLimitPerMinute = 5
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORTAL_PORT)")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("config: jwtSecret must be at least 32 bytes (set in config.yaml or JWT_SECRET)")
	}
	switch strings.ToLower(cfg.StoreBackend) {
	case "memory":
	case "file":
		if strings.TrimSpace(cfg.DataDir) == "" {
			return errors.New("config: dataDir is required for the file store backend")
		}
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis store backend")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("config: unknown storeBackend %q", cfg.StoreBackend)
	}
	if cfg.StoreQuotaBytes < 0 {
		return errors.New("config: storeQuotaBytes must be >= 0")
	}
	// Books are stored as base64 data URIs inside the document, so the quota
	// must at least fit one encoded upload at the cap.
	if need := int64(base64.StdEncoding.EncodedLen(int(cfg.MaxUploadBytes))); cfg.StoreQuotaBytes > 0 && cfg.StoreQuotaBytes < need {
		return fmt.Errorf("config: storeQuotaBytes must be 0 or at least %d to hold a %d byte upload", need, cfg.MaxUploadBytes)
	}
	if cfg.QuarantineEndpoint != "" && (cfg.QuarantineAccessKey == "" || cfg.QuarantineSecretKey == "" || cfg.QuarantineBucket == "") {
		return errors.New("config: quarantine access key, secret key and bucket are required with quarantineEndpoint")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 || cfg.MaxUploadBytes > maxUploadCap {
		return fmt.Errorf("config: maxUploadBytes must be between 1 and %d", maxUploadCap)
	}
	return nil
}

func envString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envInt64(dst *int64, name string) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*dst = n
		}
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
