package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/flood-risk-service/internal/alert"
	"github.com/kjstillabower/flood-risk-service/internal/scoring"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Cache backends.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
)

// Config holds service configuration loaded from YAML, .env and env.
type Config struct {
	ServerPort      string        `validate:"required,numeric"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	APACBaseURL         string        `validate:"required,url"`
	APACTimeout         time.Duration `validate:"gt=0"`
	RetryAttempts       int           `validate:"gte=1,lte=10"`
	RetryBaseDelay      time.Duration `validate:"gt=0"`
	RetryMaxDelay       time.Duration `validate:"gtefield=RetryBaseDelay"`
	CEMADENEnabled      bool
	ProviderCallTimeout time.Duration `validate:"gt=0"`

	BreakerEnabled          bool
	BreakerFailureThreshold int           `validate:"gte=1"`
	BreakerSuccessThreshold int           `validate:"gte=1"`
	BreakerTimeout          time.Duration `validate:"gt=0"`

	CacheTTL             time.Duration `validate:"gt=0"`
	CacheRetryBackoff    time.Duration `validate:"gt=0"`
	CacheCoalesceTimeout time.Duration `validate:"gt=0"`
	RefreshEnabled       bool
	CacheBackend         string `validate:"oneof=in_memory memcached"`

	MemcachedAddrs        string        `validate:"required_if=CacheBackend memcached"`
	MemcachedTimeout      time.Duration `validate:"gt=0"`
	MemcachedMaxIdleConns int           `validate:"gte=1"`

	Weights        scoring.Weights
	Thresholds     alert.Thresholds
	HazardRadiusKM float64 `validate:"gte=0"`
	Jitter         float64 `validate:"gte=0"`
	Seed           int64
	MaxStationKM   float64 `validate:"gte=0"`

	AreasFile string

	HistoryMemoryEnabled bool
	HistoryRetention     time.Duration `validate:"gte=0"`
	HistoryPruneInterval time.Duration `validate:"gt=0"`
	HistoryMaxPerArea    int           `validate:"gte=0"`
	KafkaEnabled         bool
	KafkaBrokers         []string `validate:"required_if=KafkaEnabled true,dive,hostname_port"`
	KafkaTopic           string   `validate:"required_if=KafkaEnabled true"`

	RateLimitRPS         int           `validate:"gte=1"`
	RateLimitBurst       int           `validate:"gte=1"`
	OverloadWindow       time.Duration `validate:"gt=0"`
	OverloadThresholdPct int           `validate:"gte=1,lte=100"`

	TracingEnabled     bool
	TracingSampleRatio float64 `validate:"gte=0,lte=1"`
}

// ScoringConfig returns the scorer configuration.
func (c *Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		Weights:        c.Weights,
		HazardRadiusKM: c.HazardRadiusKM,
		Jitter:         scoring.Jitter{Amplitude: c.Jitter, Seed: c.Seed},
	}
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	APAC struct {
		BaseURL          string `yaml:"base_url"`
		Timeout          string `yaml:"timeout"`
		CallTimeout      string `yaml:"call_timeout"`
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		CEMADENEnabled   *bool  `yaml:"cemaden_enabled"`
	} `yaml:"apac"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Cache struct {
		TTL             string `yaml:"ttl"`
		RetryBackoff    string `yaml:"retry_backoff"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
		RefreshEnabled  *bool  `yaml:"refresh_enabled"`
		Backend         string `yaml:"backend"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Scoring struct {
		Weights        *scoring.Weights  `yaml:"weights"`
		Thresholds     *alert.Thresholds `yaml:"thresholds"`
		HazardRadiusKM *float64          `yaml:"hazard_radius_km"`
		Jitter         *float64          `yaml:"jitter"`
		Seed           int64             `yaml:"seed"`
		MaxStationKM   float64           `yaml:"max_station_km"`
	} `yaml:"scoring"`

	Areas struct {
		File string `yaml:"file"`
	} `yaml:"areas"`

	History struct {
		MemoryEnabled *bool  `yaml:"memory_enabled"`
		Retention     string `yaml:"retention"`
		PruneInterval string `yaml:"prune_interval"`
		MaxPerArea    int    `yaml:"max_per_area"`
		Kafka         struct {
			Enabled bool     `yaml:"enabled"`
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"history"`

	Reliability struct {
		RateLimitRPS         int    `yaml:"rate_limit_rps"`
		RateLimitBurst       int    `yaml:"rate_limit_burst"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"reliability"`

	Tracing struct {
		Enabled     bool     `yaml:"enabled"`
		SampleRatio *float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev),
// then applies env overrides. Call from project root.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := fromFile(fc)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 35*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.APACBaseURL = strings.TrimSpace(fc.APAC.BaseURL)
	if cfg.APACBaseURL == "" {
		cfg.APACBaseURL = "http://dados.apac.pe.gov.br:41120"
	}
	cfg.APACTimeout = parseDurationOrZero(fc.APAC.Timeout, 30*time.Second)
	cfg.ProviderCallTimeout = parseDuration(fc.APAC.CallTimeout, 30*time.Second)
	cfg.RetryAttempts = fc.APAC.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.APAC.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.APAC.RetryMaxDelay, 2*time.Second)
	cfg.CEMADENEnabled = boolOr(fc.APAC.CEMADENEnabled, true)

	cfg.BreakerEnabled = boolOr(fc.CircuitBreaker.Enabled, true)
	cfg.BreakerFailureThreshold = intOr(fc.CircuitBreaker.FailureThreshold, 5)
	cfg.BreakerSuccessThreshold = intOr(fc.CircuitBreaker.SuccessThreshold, 2)
	cfg.BreakerTimeout = parseDuration(fc.CircuitBreaker.Timeout, 30*time.Second)

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 300*time.Second)
	cfg.CacheRetryBackoff = parseDuration(fc.Cache.RetryBackoff, 30*time.Second)
	cfg.CacheCoalesceTimeout = parseDuration(fc.Cache.CoalesceTimeout, 60*time.Second)
	cfg.RefreshEnabled = boolOr(fc.Cache.RefreshEnabled, true)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendInMemory
	}
	cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = intOr(fc.Cache.Memcached.MaxIdleConns, 2)

	cfg.Weights = scoring.DefaultWeights()
	if fc.Scoring.Weights != nil {
		cfg.Weights = *fc.Scoring.Weights
	}
	cfg.Thresholds = alert.DefaultThresholds()
	if fc.Scoring.Thresholds != nil {
		cfg.Thresholds = *fc.Scoring.Thresholds
	}
	cfg.HazardRadiusKM = floatOr(fc.Scoring.HazardRadiusKM, scoring.DefaultHazardRadiusKM)
	cfg.Jitter = floatOr(fc.Scoring.Jitter, 0.05)
	cfg.Seed = fc.Scoring.Seed
	cfg.MaxStationKM = fc.Scoring.MaxStationKM

	cfg.AreasFile = strings.TrimSpace(fc.Areas.File)

	cfg.HistoryMemoryEnabled = boolOr(fc.History.MemoryEnabled, true)
	cfg.HistoryRetention = parseDurationOrZero(fc.History.Retention, 24*time.Hour)
	cfg.HistoryPruneInterval = parseDuration(fc.History.PruneInterval, 10*time.Minute)
	cfg.HistoryMaxPerArea = intOr(fc.History.MaxPerArea, 288)
	cfg.KafkaEnabled = fc.History.Kafka.Enabled
	cfg.KafkaBrokers = fc.History.Kafka.Brokers
	cfg.KafkaTopic = strings.TrimSpace(fc.History.Kafka.Topic)
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "floodrisk.assessments"
	}

	cfg.RateLimitRPS = intOr(fc.Reliability.RateLimitRPS, 50)
	cfg.RateLimitBurst = intOr(fc.Reliability.RateLimitBurst, 100)
	cfg.OverloadWindow = parseDuration(fc.Reliability.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = intOr(fc.Reliability.OverloadThresholdPct, 50)

	cfg.TracingEnabled = fc.Tracing.Enabled
	cfg.TracingSampleRatio = floatOr(fc.Tracing.SampleRatio, 1)
	return cfg
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("SERVER_PORT")); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.TrimSpace(os.Getenv("APAC_BASE_URL")); v != "" {
		cfg.APACBaseURL = v
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if cfg.CacheBackend == BackendMemcached && cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = splitList(v)
		cfg.KafkaEnabled = true
	}
	if v := strings.TrimSpace(os.Getenv("TRACING_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: TRACING_ENABLED: %v", ErrInvalidConfig, err)
		}
		cfg.TracingEnabled = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

var structValidator = validator.New()

// validate checks struct tags, then the scoring invariants. RequestTimeout is
// raised above APACTimeout so a forced refresh can complete inside a request.
func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidConfig, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.RequestTimeout <= cfg.APACTimeout {
		cfg.RequestTimeout = cfg.APACTimeout + 5*time.Second
	}
	if err := cfg.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: scoring.weights: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: scoring.thresholds: %v", ErrInvalidConfig, err)
	}
	sc := cfg.ScoringConfig()
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("%w: scoring: %v", ErrInvalidConfig, err)
	}
	if err := sc.ValidateJitter(cfg.Thresholds.BandWidth()); err != nil {
		return fmt.Errorf("%w: scoring.jitter: %v", ErrInvalidConfig, err)
	}
	return nil
}
