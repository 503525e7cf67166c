package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                       string        `mapstructure:"PORT"`
	Env                        string        `mapstructure:"ENV"`
	LogLevel                   string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL                string        `mapstructure:"DATABASE_URL"`
	DBMaxConns                 int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns                 int32         `mapstructure:"DB_MIN_CONNS"`
	DefaultClinic              string        `mapstructure:"DEFAULT_CLINIC"`
	CORSOrigins                []string      `mapstructure:"CORS_ORIGINS"`
	JWTSigningKey              string        `mapstructure:"JWT_SIGNING_KEY"`
	AuthIssuer                 string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience               string        `mapstructure:"AUTH_AUDIENCE"`
	RateLimitRPS               float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst             int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout             time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AMQPURL                    string        `mapstructure:"AMQP_URL"`
	AMQPExchange               string        `mapstructure:"AMQP_EXCHANGE"`
	StatsCacheTTL              time.Duration `mapstructure:"STATS_CACHE_TTL"`
	AppointmentDefaultDuration int           `mapstructure:"APPOINTMENT_DEFAULT_DURATION"`
	PriorityUrgentKeywords     []string      `mapstructure:"PRIORITY_URGENT_KEYWORDS"`
	PriorityImportantKeywords  []string      `mapstructure:"PRIORITY_IMPORTANT_KEYWORDS"`
}

// Keyword defaults for the consultation priority classifier. Order inside a
// list does not change the outcome.
const (
	defaultUrgentKeywords    = "urgent,urgence,grave,critique,douleur,saignement,inconscient"
	defaultImportantKeywords = "suivi,post-opératoire,hospitalisation,traitement urgence"
)

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DEFAULT_CLINIC", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("AMQP_EXCHANGE", "clinic.events")
	v.SetDefault("STATS_CACHE_TTL", "30s")
	v.SetDefault("APPOINTMENT_DEFAULT_DURATION", 30)
	v.SetDefault("PRIORITY_URGENT_KEYWORDS", defaultUrgentKeywords)
	v.SetDefault("PRIORITY_IMPORTANT_KEYWORDS", defaultImportantKeywords)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"DEFAULT_CLINIC", "CORS_ORIGINS", "JWT_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "AMQP_URL", "AMQP_EXCHANGE",
		"STATS_CACHE_TTL", "APPOINTMENT_DEFAULT_DURATION",
		"PRIORITY_URGENT_KEYWORDS", "PRIORITY_IMPORTANT_KEYWORDS",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma separated lists arrive as a single string from the environment.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.PriorityUrgentKeywords = splitList(v.GetString("PRIORITY_URGENT_KEYWORDS"))
	cfg.PriorityImportantKeywords = splitList(v.GetString("PRIORITY_IMPORTANT_KEYWORDS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: requests without a bearer token are served as admin.")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT signing key is mandatory so that bearer tokens are actually verified.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.JWTSigningKey != "" && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 characters, got %d", len(c.JWTSigningKey))
	}
	if len(c.PriorityUrgentKeywords) == 0 {
		return fmt.Errorf("PRIORITY_URGENT_KEYWORDS must not be empty")
	}
	if len(c.PriorityImportantKeywords) == 0 {
		return fmt.Errorf("PRIORITY_IMPORTANT_KEYWORDS must not be empty")
	}
	if c.AppointmentDefaultDuration <= 0 {
		return fmt.Errorf("APPOINTMENT_DEFAULT_DURATION must be positive, got %d", c.AppointmentDefaultDuration)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.StatsCacheTTL < 0 {
		return fmt.Errorf("STATS_CACHE_TTL must not be negative, got %s", c.StatsCacheTTL)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
