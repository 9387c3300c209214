package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	InvalidationStoreMemory   = "memory"
	InvalidationStoreCache    = "cache"
	InvalidationStorePostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Admin    AdminConfig
}

type DatabaseConfig struct {
	URL               string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	APIPrefix      string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	LoginRateLimit int // requests per minute per client IP
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret         string
	JWTAlgorithm      string
	AccessTokenExpiry time.Duration
	InvalidationStore string
	CleanupInterval   time.Duration
	LoginFailureDelay time.Duration
}

// AdminConfig seeds a superuser on startup when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
	FullName string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "useraccounts")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", 5*time.Minute)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", 1*time.Minute)
	v.SetDefault("DB_HEALTH_CHECK_PERIOD", 1*time.Minute)
	v.SetDefault("DB_CONNECT_TIMEOUT", 10*time.Second)

	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRY", 30*time.Minute)
	v.SetDefault("INVALIDATION_STORE", InvalidationStoreMemory)
	v.SetDefault("INVALIDATION_CLEANUP_INTERVAL", 1*time.Hour)
	v.SetDefault("LOGIN_FAILURE_DELAY", 250*time.Millisecond)
	v.SetDefault("ADMIN_FULL_NAME", "Administrator")

	// Names used by earlier deployments of the service
	_ = v.BindEnv("JWT_SECRET", "JWT_SECRET", "SECRET_KEY")
	_ = v.BindEnv("JWT_ALGORITHM", "JWT_ALGORITHM", "ALGORITHM")
	_ = v.BindEnv("ALLOWED_ORIGINS", "ALLOWED_ORIGINS", "BACKEND_CORS_ORIGINS")
	_ = v.BindEnv("API_PREFIX", "API_PREFIX", "API_V1_STR")

	return v
}

// readViper loads .env and the optional CONFIG_FILE on top of the defaults
func readViper() (*viper.Viper, error) {
	_ = godotenv.Load()

	v := newViper()
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return v, nil
}

func databaseConfig(v *viper.Viper) (DatabaseConfig, error) {
	db := DatabaseConfig{
		URL:               v.GetString("DATABASE_URL"),
		Host:              v.GetString("DB_HOST"),
		Port:              v.GetInt("DB_PORT"),
		User:              v.GetString("DB_USER"),
		Password:          v.GetString("DB_PASSWORD"),
		Name:              v.GetString("DB_NAME"),
		SSLMode:           v.GetString("DB_SSLMODE"),
		MaxConns:          v.GetInt32("DB_MAX_CONNS"),
		MinConns:          v.GetInt32("DB_MIN_CONNS"),
		MaxConnLifetime:   v.GetDuration("DB_MAX_CONN_LIFETIME"),
		MaxConnIdleTime:   v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
		HealthCheckPeriod: v.GetDuration("DB_HEALTH_CHECK_PERIOD"),
		ConnectTimeout:    v.GetDuration("DB_CONNECT_TIMEOUT"),
	}
	if db.URL == "" && db.Password == "" {
		return db, fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	return db, nil
}

// LoadDatabase reads only the database settings. Used by commands that do
// not issue tokens, such as migrate.
func LoadDatabase() (*DatabaseConfig, error) {
	v, err := readViper()
	if err != nil {
		return nil, err
	}
	db, err := databaseConfig(v)
	if err != nil {
		return nil, err
	}
	return &db, nil
}

func Load() (*Config, error) {
	v, err := readViper()
	if err != nil {
		return nil, err
	}

	database, err := databaseConfig(v)
	if err != nil {
		return nil, err
	}

	jwtSecret := v.GetString("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := v.GetString("ENV")

	accessExpiry := v.GetDuration("ACCESS_TOKEN_EXPIRY")
	if minutes := v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES"); minutes > 0 {
		accessExpiry = time.Duration(minutes) * time.Minute
	}

	cfg := &Config{
		Database: database,
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			Env:            env,
			LogLevel:       v.GetString("LOG_LEVEL"),
			APIPrefix:      normalizePrefix(v.GetString("API_PREFIX")),
			AllowedOrigins: parseAllowedOrigins(v.GetString("ALLOWED_ORIGINS"), env),
			ReadTimeout:    v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:    v.GetDuration("SERVER_IDLE_TIMEOUT"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
			LoginRateLimit: v.GetInt("LOGIN_RATE_LIMIT"),
			TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			JWTAlgorithm:      strings.ToUpper(v.GetString("JWT_ALGORITHM")),
			AccessTokenExpiry: accessExpiry,
			InvalidationStore: strings.ToLower(v.GetString("INVALIDATION_STORE")),
			CleanupInterval:   v.GetDuration("INVALIDATION_CLEANUP_INTERVAL"),
			LoginFailureDelay: v.GetDuration("LOGIN_FAILURE_DELAY"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
			FullName: v.GetString("ADMIN_FULL_NAME"),
		},
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (a *AuthConfig) validate() error {
	switch a.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM must be one of HS256, HS384, HS512 (got %q)", a.JWTAlgorithm)
	}

	switch a.InvalidationStore {
	case InvalidationStoreMemory, InvalidationStoreCache, InvalidationStorePostgres:
	default:
		return fmt.Errorf("INVALIDATION_STORE must be one of memory, cache, postgres (got %q)", a.InvalidationStore)
	}

	if a.AccessTokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be positive")
	}

	if a.InvalidationStore == InvalidationStorePostgres && a.CleanupInterval <= 0 {
		return fmt.Errorf("INVALIDATION_CLEANUP_INTERVAL must be positive with the postgres store")
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// DSN returns DATABASE_URL when set, otherwise a keyword/value string built
// from the individual settings.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseAllowedOrigins accepts a comma separated list or a JSON style list
// such as ["http://a","http://b"].
func parseAllowedOrigins(raw, env string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		if env == "production" {
			return []string{}
		}
		return []string{
			"http://localhost:3000",
			"http://localhost:8080",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:8080",
			"http://127.0.0.1:5173",
		}
	}

	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.Trim(strings.TrimSpace(origin), `"'`)
		if origin != "" {
			origins = append(origins, strings.TrimRight(origin, "/"))
		}
	}
	return origins
}
