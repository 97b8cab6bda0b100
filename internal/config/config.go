package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all configuration required by the cdrgen process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Generation GenerationConfig
	Staging    StagingConfig
	Export     ExportConfig
	Publisher  PublisherConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool
}

type RedisConfig struct {
	Host string
	Port int

	// StreamMaxLen trims the CDR stream approximately; 0 keeps everything.
	StreamMaxLen int64
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type GenerationConfig struct {
	Workers  int
	MinCalls int
	MaxCalls int
	// Timezone defines calendar days for splitting and the wire timestamps.
	Timezone string
	// SeedMSISDNs are inserted into the subscriber directory on startup if missing.
	SeedMSISDNs []string
}

type StagingConfig struct {
	DrainPeriod time.Duration
	BatchMax    int
}

type ExportConfig struct {
	Threshold int
	Period    time.Duration
	// LeaseEnabled guards the periodic tasks with a Redis lease across instances.
	LeaseEnabled bool
}

type PublisherConfig struct {
	Kind       string
	AMQPURL    string
	Exchange   string
	Queue      string
	RoutingKey string

	DeadLetterExchangePostfix   string
	DeadLetterQueuePostfix      string
	DeadLetterRoutingKeyPostfix string
}

const (
	PublisherAMQP  = "amqp"
	PublisherRedis = "redis"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.AutoMigrate, parseErrs = optionalBool(parseErrs, "DB_AUTO_MIGRATE")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = optionalInt(parseErrs, "REDIS_PORT")
	{
		n, errs := optionalInt(parseErrs, "REDIS_STREAM_MAXLEN")
		c.Redis.StreamMaxLen, parseErrs = int64(n), errs
	}

	c.Auth, parseErrs = readAuth(parseErrs)

	c.Generation.Workers, parseErrs = optionalInt(parseErrs, "GEN_WORKERS")
	c.Generation.MinCalls, parseErrs = optionalInt(parseErrs, "GEN_MIN_CALLS")
	c.Generation.MaxCalls, parseErrs = optionalInt(parseErrs, "GEN_MAX_CALLS")
	c.Generation.Timezone = strings.TrimSpace(os.Getenv("GEN_TIMEZONE"))
	c.Generation.SeedMSISDNs = csv(os.Getenv("GEN_SEED_MSISDNS"))

	c.Staging.DrainPeriod, parseErrs = optionalDuration(parseErrs, "STAGING_DRAIN_PERIOD")
	c.Staging.BatchMax, parseErrs = optionalInt(parseErrs, "STAGING_BATCH_MAX")

	c.Export.Threshold, parseErrs = optionalInt(parseErrs, "EXPORT_THRESHOLD")
	c.Export.Period, parseErrs = optionalDuration(parseErrs, "EXPORT_PERIOD")
	c.Export.LeaseEnabled, parseErrs = optionalBool(parseErrs, "TASK_LEASE_ENABLED")

	c.Publisher.Kind = strings.ToLower(strings.TrimSpace(os.Getenv("PUBLISHER_KIND")))
	c.Publisher.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	c.Publisher.Exchange = strings.TrimSpace(os.Getenv("CDR_EXCHANGE_NAME"))
	c.Publisher.Queue = strings.TrimSpace(os.Getenv("CDR_QUEUE_NAME"))
	c.Publisher.RoutingKey = strings.TrimSpace(os.Getenv("CDR_ROUTING_KEY"))
	c.Publisher.DeadLetterExchangePostfix = os.Getenv("DEAD_LETTER_EXCHANGE_POSTFIX")
	c.Publisher.DeadLetterQueuePostfix = os.Getenv("DEAD_LETTER_QUEUE_POSTFIX")
	c.Publisher.DeadLetterRoutingKeyPostfix = os.Getenv("DEAD_LETTER_ROUTING_KEY_POSTFIX")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate fills defaults and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !validPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if !validPort(c.DB.Port) {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	errs = append(errs, c.Auth.validate()...)
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	errs = append(errs, c.validateGeneration()...)
	errs = append(errs, c.validatePipeline()...)
	errs = append(errs, c.validatePublisher()...)

	return joinErrors(errs)
}

// LoadAuth reads only the JWT_* keys, for tools that sign tokens without running the service.
func LoadAuth() (AuthConfig, error) {
	a, parseErrs := readAuth(nil)
	if err := joinErrors(parseErrs); err != nil {
		return AuthConfig{}, err
	}
	if err := joinErrors(a.validate()); err != nil {
		return AuthConfig{}, err
	}
	return a, nil
}

func readAuth(parseErrs []error) (AuthConfig, []error) {
	a := AuthConfig{
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
	}
	// Duration env vars are optional; defaults applied in validate().
	a.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	a.RefreshTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_REFRESH_TTL")
	return a, parseErrs
}

func (a *AuthConfig) validate() []error {
	var errs []error
	if a.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if a.AccessTokenTTL <= 0 {
		a.AccessTokenTTL = 15 * time.Minute
	}
	if a.RefreshTokenTTL <= 0 {
		a.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if a.RefreshTokenTTL <= a.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}
	return errs
}

func (c *Config) validateGeneration() []error {
	var errs []error
	g := &c.Generation
	if g.Workers == 0 {
		g.Workers = 4
	}
	if g.MinCalls == 0 {
		g.MinCalls = 1000
	}
	if g.MaxCalls == 0 {
		g.MaxCalls = 2000
	}
	if g.Timezone == "" {
		g.Timezone = "Europe/Moscow"
	}
	if g.Workers < 1 {
		errs = append(errs, fmt.Errorf("GEN_WORKERS must be >= 1, got %d", g.Workers))
	}
	if g.MinCalls < 1 {
		errs = append(errs, fmt.Errorf("GEN_MIN_CALLS must be >= 1, got %d", g.MinCalls))
	}
	if g.MaxCalls < g.MinCalls {
		errs = append(errs, fmt.Errorf("GEN_MAX_CALLS must be >= GEN_MIN_CALLS, got %d < %d", g.MaxCalls, g.MinCalls))
	}
	if _, err := time.LoadLocation(g.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("GEN_TIMEZONE is not a known zone: %q", g.Timezone))
	}
	return errs
}

func (c *Config) validatePipeline() []error {
	var errs []error
	if c.Staging.DrainPeriod == 0 {
		c.Staging.DrainPeriod = 5 * time.Second
	}
	if c.Staging.BatchMax == 0 {
		c.Staging.BatchMax = 5
	}
	if c.Export.Threshold == 0 {
		c.Export.Threshold = 10
	}
	if c.Export.Period == 0 {
		c.Export.Period = 5 * time.Second
	}
	if c.Staging.DrainPeriod < 0 {
		errs = append(errs, fmt.Errorf("STAGING_DRAIN_PERIOD must be positive, got %s", c.Staging.DrainPeriod))
	}
	if c.Staging.BatchMax < 1 {
		errs = append(errs, fmt.Errorf("STAGING_BATCH_MAX must be >= 1, got %d", c.Staging.BatchMax))
	}
	if c.Export.Threshold < 1 {
		errs = append(errs, fmt.Errorf("EXPORT_THRESHOLD must be >= 1, got %d", c.Export.Threshold))
	}
	if c.Export.Period < 0 {
		errs = append(errs, fmt.Errorf("EXPORT_PERIOD must be positive, got %s", c.Export.Period))
	}
	return errs
}

func (c *Config) validatePublisher() []error {
	var errs []error
	p := &c.Publisher
	if p.Kind == "" {
		p.Kind = PublisherAMQP
	}
	if p.Exchange == "" {
		p.Exchange = "cdr.direct"
	}
	if p.Queue == "" {
		p.Queue = "cdr.queue"
	}
	if p.RoutingKey == "" {
		p.RoutingKey = "cdr.created"
	}
	if p.DeadLetterExchangePostfix == "" {
		p.DeadLetterExchangePostfix = ".dlx"
	}
	if p.DeadLetterQueuePostfix == "" {
		p.DeadLetterQueuePostfix = ".dlq"
	}
	if p.DeadLetterRoutingKeyPostfix == "" {
		p.DeadLetterRoutingKeyPostfix = ".dlr"
	}

	switch p.Kind {
	case PublisherAMQP:
		if p.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required when PUBLISHER_KIND=amqp"))
		}
	case PublisherRedis:
	default:
		errs = append(errs, fmt.Errorf("PUBLISHER_KIND must be one of amqp, redis, got %q", p.Kind))
	}

	if c.NeedsRedis() {
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for the redis publisher or task leases"))
		}
		if !validPort(c.Redis.Port) {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}
	if c.Redis.StreamMaxLen < 0 {
		errs = append(errs, fmt.Errorf("REDIS_STREAM_MAXLEN must be >= 0, got %d", c.Redis.StreamMaxLen))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.Publisher.Kind == PublisherRedis || c.Export.LeaseEnabled
}

// Location resolves GEN_TIMEZONE. Call after Validate.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Generation.Timezone)
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

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string) (int, []error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, errs
	}
	return requiredInt(errs, key)
}

func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration like 5s, got %q", key, v))
	}
	return d, errs
}

func optionalBool(errs []error, key string) (bool, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	return b, errs
}

func csv(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
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
