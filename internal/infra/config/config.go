package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AUTH"

// Supported TTL store backends.
const (
	KVBackendRedis  = "redis"
	KVBackendMemory = "memory"
)

const minSecretLength = 32

type AppConfig struct {
	App           AppSettings           `mapstructure:"app"`
	HTTP          HTTPSettings          `mapstructure:"http"`
	Postgres      PostgresSettings      `mapstructure:"postgres"`
	Redis         RedisSettings         `mapstructure:"redis"`
	KV            KVSettings            `mapstructure:"kv"`
	Kafka         KafkaSettings         `mapstructure:"kafka"`
	JWT           JWTSettings           `mapstructure:"jwt"`
	RateLimit     RateLimitSettings     `mapstructure:"rate_limit"`
	RefreshTokens RefreshTokenSettings  `mapstructure:"refresh_tokens"`
	PasswordReset PasswordResetSettings `mapstructure:"password_reset"`
	Argon2        Argon2Settings        `mapstructure:"argon2"`
	PasswordRules PasswordRuleSettings  `mapstructure:"password_policy"`
	Throttle      ThrottleSettings      `mapstructure:"throttle"`
	Sweeper       SweeperSettings       `mapstructure:"sweeper"`
}

type AppSettings struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IsDevelopment reports whether the service runs with development defaults.
func (s AppSettings) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(s.Env))
	return env == "" || env == "development" || env == "dev" || env == "test"
}

// HTTPSettings configures the HTTP engine. Forwarding headers are honoured only from
// TrustedProxies; when empty the client IP is the connection's remote address.
type HTTPSettings struct {
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// DSN renders the connection string understood by pgx and golang-migrate.
func (s PostgresSettings) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:     "/" + s.Database,
		RawQuery: url.Values{"sslmode": []string{s.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KVSettings selects the TTL store shared by revocation and rate limiting.
type KVSettings struct {
	Backend          string        `mapstructure:"backend"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type JWTSettings struct {
	Secret               string        `mapstructure:"secret"`
	Issuer               string        `mapstructure:"issuer"`
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL      time.Duration `mapstructure:"refresh_token_ttl"`
	RememberMeMultiplier int           `mapstructure:"remember_me_multiplier"`
}

// RateLimitSettings configures the per-client-key login limiter.
type RateLimitSettings struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Window            time.Duration `mapstructure:"window"`
	BlockDuration     time.Duration `mapstructure:"block_duration"`
	DegradationPolicy string        `mapstructure:"degradation_policy"`
}

type RefreshTokenSettings struct {
	MaxPerUser int `mapstructure:"max_per_user"`
}

// PasswordResetSettings configures reset token lifetime and the per-email request limiter.
type PasswordResetSettings struct {
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Window        time.Duration `mapstructure:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// PasswordRuleSettings configures password complexity checks.
type PasswordRuleSettings struct {
	MinLength           int `mapstructure:"min_length"`
	MinCharacterClasses int `mapstructure:"min_character_classes"`
	MinStrengthScore    int `mapstructure:"min_strength_score"`
}

// ThrottleSettings configures the per-IP request throttle in front of the auth routes.
type ThrottleSettings struct {
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
	Burst             int           `mapstructure:"burst"`
}

type SweeperSettings struct {
	Interval time.Duration `mapstructure:"interval"`
}

var configKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.shutdown_timeout",
	"http.trusted_proxies",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"postgres.auto_migrate",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.key_prefix",
	"kv.backend",
	"kv.operation_timeout",
	"kv.cleanup_interval",
	"kafka.enabled",
	"kafka.brokers",
	"kafka.topic_prefix",
	"kafka.publish_timeout",
	"jwt.secret",
	"jwt.issuer",
	"jwt.access_token_ttl",
	"jwt.refresh_token_ttl",
	"jwt.remember_me_multiplier",
	"rate_limit.max_attempts",
	"rate_limit.window",
	"rate_limit.block_duration",
	"rate_limit.degradation_policy",
	"refresh_tokens.max_per_user",
	"password_reset.token_ttl",
	"password_reset.max_attempts",
	"password_reset.window",
	"password_reset.block_duration",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"password_policy.min_length",
	"password_policy.min_character_classes",
	"password_policy.min_strength_score",
	"throttle.requests_per_window",
	"throttle.window",
	"throttle.burst",
	"sweeper.interval",
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, configKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run safely with.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	} else if len(c.JWT.Secret) < minSecretLength && !c.App.IsDevelopment() {
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d bytes outside development", minSecretLength))
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("jwt.issuer is required"))
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("jwt token ttls must be positive"))
	}
	if c.JWT.RememberMeMultiplier < 1 {
		errs = append(errs, errors.New("jwt.remember_me_multiplier must be at least 1"))
	}

	if c.RateLimit.MaxAttempts < 1 || c.RateLimit.Window <= 0 || c.RateLimit.BlockDuration <= 0 {
		errs = append(errs, errors.New("rate_limit max_attempts, window and block_duration must be positive"))
	}
	if c.PasswordReset.TokenTTL <= 0 {
		errs = append(errs, errors.New("password_reset.token_ttl must be positive"))
	}
	if c.PasswordReset.MaxAttempts < 1 || c.PasswordReset.Window <= 0 || c.PasswordReset.BlockDuration <= 0 {
		errs = append(errs, errors.New("password_reset max_attempts, window and block_duration must be positive"))
	}
	if c.RefreshTokens.MaxPerUser < 1 {
		errs = append(errs, errors.New("refresh_tokens.max_per_user must be at least 1"))
	}

	for _, proxy := range c.HTTP.TrustedProxies {
		if !isIPOrCIDR(proxy) {
			errs = append(errs, fmt.Errorf("http.trusted_proxies entry %q is not an IP or CIDR", proxy))
		}
	}

	switch strings.ToLower(c.KV.Backend) {
	case KVBackendRedis, KVBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("kv.backend %q is not supported", c.KV.Backend))
	}

	return errors.Join(errs...)
}

func isIPOrCIDR(value string) bool {
	if net.ParseIP(value) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(value)
	return err == nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "school-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "school")
	v.SetDefault("postgres.password", "school_password")
	v.SetDefault("postgres.database", "school")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "")

	v.SetDefault("kv.backend", KVBackendRedis)
	v.SetDefault("kv.operation_timeout", "500ms")
	v.SetDefault("kv.cleanup_interval", "1m")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "school")
	v.SetDefault("kafka.publish_timeout", "250ms")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "school-auth")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")
	v.SetDefault("jwt.remember_me_multiplier", 7)

	v.SetDefault("rate_limit.max_attempts", 5)
	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("rate_limit.block_duration", "15m")
	v.SetDefault("rate_limit.degradation_policy", "lenient")

	v.SetDefault("refresh_tokens.max_per_user", 5)

	v.SetDefault("password_reset.token_ttl", "1h")
	v.SetDefault("password_reset.max_attempts", 3)
	v.SetDefault("password_reset.window", "15m")
	v.SetDefault("password_reset.block_duration", "15m")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password_policy.min_length", 8)
	v.SetDefault("password_policy.min_character_classes", 3)
	v.SetDefault("password_policy.min_strength_score", 1)

	v.SetDefault("throttle.requests_per_window", 60)
	v.SetDefault("throttle.window", "1m")
	v.SetDefault("throttle.burst", 20)

	v.SetDefault("sweeper.interval", "1h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
