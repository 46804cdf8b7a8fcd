package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default YAML location, relative to the working directory.
const ConfigPath = "config.yaml"

// EnvFile is loaded into the environment, without overriding it, when present.
const EnvFile = ".env"

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// FileConfig represents configuration loaded from YAML and the environment.
type FileConfig struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"logLevel"`
	StoreDriver        string   `yaml:"storeDriver"`
	DBUser             string   `yaml:"dbUser"`
	DBPass             string   `yaml:"dbPass"`
	DBHost             string   `yaml:"dbHost"`
	DBName             string   `yaml:"dbName"`
	MongoURI           string   `yaml:"mongoURI"`
	DatabaseURL        string   `yaml:"databaseURL"`
	AccessTokenSecret  string   `yaml:"accessTokenSecret"`
	StripeSecretKey    string   `yaml:"stripeSecretKey"`
	RedisAddr          string   `yaml:"redisAddr"`
	RedisPassword      string   `yaml:"redisPassword"`
	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
	CartCleanupQueue   string   `yaml:"cartCleanupQueue"`
	MinioEndpoint      string   `yaml:"minioEndpoint"`
	MinioAccessKey     string   `yaml:"minioAccessKey"`
	MinioSecretKey     string   `yaml:"minioSecretKey"`
	MinioBucket        string   `yaml:"minioBucket"`
	MinioUseSSL        bool     `yaml:"minioUseSSL"`
	CoverBaseURL       string   `yaml:"coverBaseURL"`
	RequestTimeout     string   `yaml:"requestTimeout"`
	TrustedProxyCIDRs  []string `yaml:"trustedProxyCidrs"`
}

// Load reads .env and the optional YAML file at path (defaults to
// config.yaml), applies environment overrides and validates the result.
func Load(path string) (FileConfig, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return FileConfig{}, fmt.Errorf("load %s: %w", EnvFile, err)
	}
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	str := map[string]*string{
		"PORT":                &cfg.Port,
		"LOG_LEVEL":           &cfg.LogLevel,
		"STORE_DRIVER":        &cfg.StoreDriver,
		"DB_USER":             &cfg.DBUser,
		"DB_PASS":             &cfg.DBPass,
		"DB_HOST":             &cfg.DBHost,
		"DB_NAME":             &cfg.DBName,
		"MONGO_URI":           &cfg.MongoURI,
		"DATABASE_URL":        &cfg.DatabaseURL,
		"ACCESS_TOKEN_SECRET": &cfg.AccessTokenSecret,
		"STRIPE_SECRET_KEY":   &cfg.StripeSecretKey,
		"REDIS_ADDR":          &cfg.RedisAddr,
		"REDIS_PASSWORD":      &cfg.RedisPassword,
		"CART_CLEANUP_QUEUE":  &cfg.CartCleanupQueue,
		"MINIO_ENDPOINT":      &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":    &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":    &cfg.MinioSecretKey,
		"MINIO_BUCKET":        &cfg.MinioBucket,
		"COVER_BASE_URL":      &cfg.CoverBaseURL,
		"REQUEST_TIMEOUT":     &cfg.RequestTimeout,
	}
	for name, dst := range str {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DriverMongo
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "15s"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.AccessTokenSecret) == "" {
		return errors.New("config: accessTokenSecret is required (set ACCESS_TOKEN_SECRET)")
	}
	if strings.TrimSpace(cfg.StripeSecretKey) == "" {
		return errors.New("config: stripeSecretKey is required (set STRIPE_SECRET_KEY)")
	}
	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" && (cfg.DBUser == "" || cfg.DBPass == "" || cfg.DBHost == "") {
			return errors.New("config: mongo store requires MONGO_URI or DB_USER, DB_PASS and DB_HOST")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: postgres store requires databaseURL (set DATABASE_URL)")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storeDriver %q (want mongo, postgres or memory)", cfg.StoreDriver)
	}
	if cfg.RateLimitPerMinute < 0 {
		return errors.New("config: rateLimitPerMinute must be >= 0")
	}
	if _, err := cfg.Timeout(); err != nil {
		return err
	}
	if cfg.CartCleanupQueue != "" && cfg.RedisAddr == "" {
		return errors.New("config: cartCleanupQueue requires redisAddr")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minio requires access key, secret key and bucket")
	}
	return nil
}

// MongoConnectionURI returns MONGO_URI when set, otherwise an SRV URI built
// from the credential parts.
func (c FileConfig) MongoConnectionURI() string {
	if c.MongoURI != "" {
		return c.MongoURI
	}
	u := url.URL{
		Scheme:   "mongodb+srv",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     c.DBHost,
		Path:     "/",
		RawQuery: "retryWrites=true&w=majority",
	}
	return u.String()
}

// Timeout parses the per-request timeout.
func (c FileConfig) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid requestTimeout %q", c.RequestTimeout)
	}
	return d, nil
}

func (c FileConfig) RedisEnabled() bool { return c.RedisAddr != "" }

func (c FileConfig) CoversEnabled() bool { return c.MinioEndpoint != "" }

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
