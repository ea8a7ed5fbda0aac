package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

type Config struct {
	Mode     Mode   `yaml:"mode"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GCPProjectID      string        `yaml:"gcp_project"`
	GCPLocation       string        `yaml:"gcp_location"`
	ModelName         string        `yaml:"model_name"`
	UseMockLLM        bool          `yaml:"use_mock_llm"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	StorageBackend string `yaml:"storage_backend"` // "memory", "firestore" or "postgres"
	PostgresDSN    string `yaml:"postgres_dsn"`

	AuthBackend   string `yaml:"auth_backend"` // "memory" or "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_session_key"`
	RedisChannel  string `yaml:"redis_auth_channel"`

	// DevUserEmail signs a local user in at startup when auth is in memory.
	DevUserEmail string `yaml:"dev_user_email"`
}

func defaults() *Config {
	return &Config{
		Mode:              ModeLocal,
		Port:              "8080",
		LogLevel:          "info",
		GCPLocation:       "us-central1",
		ModelName:         "gemini-2.5-flash",
		GenerationTimeout: 30 * time.Second,
		StorageBackend:    "memory",
		AuthBackend:       "memory",
		RedisKey:          "nota:auth:session",
		RedisChannel:      "nota:auth:events",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load builds the config from defaults, an optional YAML file named by
// NOTA_CONFIG_FILE, and NOTA_* env vars, in that order of precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("NOTA_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error

	switch getEnv("NOTA_MODE", string(cfg.Mode)) {
	case "cloud", "gcp":
		cfg.Mode = ModeCloud
	default:
		cfg.Mode = ModeLocal
	}

	cfg.Port = getEnv("NOTA_PORT", getEnv("PORT", cfg.Port))
	cfg.LogLevel = getEnv("NOTA_LOG_LEVEL", cfg.LogLevel)

	cfg.GeminiAPIKey = getEnv("NOTA_GEMINI_API_KEY", getEnv("API_KEY", cfg.GeminiAPIKey))
	cfg.GCPProjectID = getEnv("NOTA_GCP_PROJECT", cfg.GCPProjectID)
	cfg.GCPLocation = getEnv("NOTA_GCP_LOCATION", cfg.GCPLocation)
	cfg.ModelName = getEnv("NOTA_MODEL_NAME", cfg.ModelName)
	cfg.UseMockLLM = getBoolEnv("NOTA_USE_MOCK_LLM", cfg.UseMockLLM || (cfg.Mode == ModeLocal && cfg.GeminiAPIKey == ""))
	if cfg.GenerationTimeout, err = getDurationEnv("NOTA_GENERATION_TIMEOUT", cfg.GenerationTimeout); err != nil {
		return err
	}

	cfg.StorageBackend = strings.ToLower(getEnv("NOTA_STORAGE_BACKEND", cfg.StorageBackend))
	cfg.PostgresDSN = getEnv("NOTA_POSTGRES_DSN", cfg.PostgresDSN)

	cfg.AuthBackend = strings.ToLower(getEnv("NOTA_AUTH_BACKEND", cfg.AuthBackend))
	cfg.RedisAddr = getEnv("NOTA_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("NOTA_REDIS_PASSWORD", cfg.RedisPassword)
	if cfg.RedisDB, err = getIntEnv("NOTA_REDIS_DB", cfg.RedisDB); err != nil {
		return err
	}
	cfg.RedisKey = getEnv("NOTA_REDIS_SESSION_KEY", cfg.RedisKey)
	cfg.RedisChannel = getEnv("NOTA_REDIS_AUTH_CHANNEL", cfg.RedisChannel)

	cfg.DevUserEmail = getEnv("NOTA_DEV_USER_EMAIL", cfg.DevUserEmail)
	return nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("generation timeout must be positive"))
	}
	if !c.UseMockLLM && c.GeminiAPIKey == "" && c.GCPProjectID == "" {
		errs = append(errs, errors.New("NOTA_GEMINI_API_KEY or NOTA_GCP_PROJECT must be set unless the mock LLM is used"))
	}

	switch c.StorageBackend {
	case "memory":
	case "firestore":
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("NOTA_GCP_PROJECT is required for firestore storage"))
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("NOTA_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}

	switch c.AuthBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("NOTA_REDIS_ADDR is required for redis auth"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth backend %q", c.AuthBackend))
	}

	return errors.Join(errs...)
}
