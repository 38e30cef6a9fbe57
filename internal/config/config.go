package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
	adapterlogger "smart-factory/internal/adapters/logger"
)

const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

type Config struct {
	Port         string                 `yaml:"port"`
	Store        string                 `yaml:"store"`
	TableName    string                 `yaml:"table_name"`
	Region       string                 `yaml:"aws_region"`
	AuthMode     adaptermiddleware.Mode `yaml:"auth_mode"`
	JWTSecret    string                 `yaml:"jwt_secret"`
	UserPoolID   string                 `yaml:"cognito_user_pool_id"`
	RateLimitRPS float64                `yaml:"rate_limit_rps"`
	LogLevel     string                 `yaml:"log_level"`
	AdminEmail   string                 `yaml:"bootstrap_admin_email"`
	AdminName    string                 `yaml:"bootstrap_admin_name"`
}

// Load reads .env (when present) into the process environment, builds the
// config from the environment and then applies the YAML file named by
// CONFIG_FILE on top. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	if path, ok := os.LookupEnv("CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a config from lookup with defaults filled in. It does not
// validate.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	mode, err := adaptermiddleware.ParseAuthMode(get("AUTH_MODE", string(adaptermiddleware.ModeNone)))
	if err != nil {
		return Config{}, err
	}
	rps, err := strconv.ParseFloat(get("RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	return Config{
		Port:         get("PORT", "8080"),
		Store:        strings.ToLower(get("STORE", StoreMemory)),
		TableName:    get("TABLE_NAME", ""),
		Region:       get("AWS_REGION", ""),
		AuthMode:     mode,
		JWTSecret:    get("JWT_SECRET", ""),
		UserPoolID:   get("COGNITO_USER_POOL_ID", ""),
		RateLimitRPS: rps,
		LogLevel:     get("LOG_LEVEL", "info"),
		AdminEmail:   get("BOOTSTRAP_ADMIN_EMAIL", ""),
		AdminName:    get("BOOTSTRAP_ADMIN_NAME", "Administrator"),
	}, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	mode, err := adaptermiddleware.ParseAuthMode(string(c.AuthMode))
	if err != nil {
		return err
	}
	c.AuthMode = mode
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StoreDynamoDB:
		if c.TableName == "" || c.Region == "" {
			errs = append(errs, errors.New("TABLE_NAME and AWS_REGION are required for the dynamodb store"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORE %q", c.Store))
	}
	switch c.AuthMode {
	case adaptermiddleware.ModeJWT:
		if len(c.JWTSecret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes for jwt auth mode"))
		}
	case adaptermiddleware.ModeCognito:
		if c.UserPoolID == "" || c.Region == "" {
			errs = append(errs, errors.New("COGNITO_USER_POOL_ID and AWS_REGION are required for cognito auth mode"))
		}
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if _, err := adapterlogger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	return errors.Join(errs...)
}
