package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"

	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr          string
		Mode          string
		AllowedOrigin string
	}
	Database struct {
		Path string
	}
	Session struct {
		Backend       string
		CookieName    string
		TTL           time.Duration
		SweepInterval time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Auth struct {
		SessionSecret   string
		JWTSecret       string
		AdminSecretCode string
		TokenTTL        time.Duration
		Issuer          string
		BcryptCost      int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Server.Mode, ModeProduction)
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// existing environment wins over .env
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.mode", ModeDevelopment)
	v.SetDefault("server.allowedorigin", "")
	v.SetDefault("database.path", "data/exam.db")
	v.SetDefault("session.backend", SessionBackendSQLite)
	v.SetDefault("session.cookiename", "exam.sid")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.sweepinterval", "10m")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.sessionsecret", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.adminsecretcode", "")
	v.SetDefault("auth.tokenttl", "24h")
	v.SetDefault("auth.issuer", "exam-editor")
	v.SetDefault("auth.bcryptcost", 0)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "submissions")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// ResolveSecrets enforces that secrets are configured. Production refuses to
// start without them; development substitutes per-process random session and
// JWT secrets and reports which ones it generated. Outside production a missing
// admin code leaves admin self-registration disabled.
func (c *Config) ResolveSecrets() ([]string, error) {
	missing := c.missingSecrets()
	if c.Production() {
		if len(missing) > 0 {
			return nil, fmt.Errorf("production mode requires %s", strings.Join(missing, ", "))
		}
		return nil, nil
	}

	var generated []string
	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		c.Auth.SessionSecret = secret
		generated = append(generated, "auth.sessionsecret")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		c.Auth.JWTSecret = secret
		generated = append(generated, "auth.jwtsecret")
	}
	return generated, nil
}

func (c Config) missingSecrets() []string {
	var missing []string
	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		missing = append(missing, "auth.sessionsecret")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		missing = append(missing, "auth.jwtsecret")
	}
	if strings.TrimSpace(c.Auth.AdminSecretCode) == "" {
		missing = append(missing, "auth.adminsecretcode")
	}
	return missing
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
