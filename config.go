package authedge

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete engine configuration. Build one with
// [DefaultConfig] and override fields, or load it from the environment
// with [LoadConfig]. Instances are treated as immutable once the engine
// is built.
type Config struct {
	Session   SessionConfig
	Lockout   LockoutConfig
	Reset     CodeConfig
	Verify    CodeConfig
	Transport TransportConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	AWS       AWSConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetimes and the per-account cap.
type SessionConfig struct {
	// TTL is the sliding expiration applied at creation and on refresh.
	TTL time.Duration
	// HardTTL is the absolute ceiling measured from creation. No refresh
	// extends a session past it.
	HardTTL time.Duration
	// MaxPerAccount caps live sessions per account. On overflow the
	// oldest session by creation time is evicted.
	MaxPerAccount int
	// TokenSecret keys the HMAC applied to tokens before persistence.
	TokenSecret string
	// KeyPrefix and AccountKeyPrefix namespace the Redis keys.
	KeyPrefix        string
	AccountKeyPrefix string
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the failed-login counter and account locking.
type LockoutConfig struct {
	// MaxAttempts is the failed-login count at which the next attempt
	// locks the account. Use [Unlimited] to disable counting.
	MaxAttempts int
	// AttemptWindow is the fixed window anchored at the first failure.
	AttemptWindow time.Duration
	// Duration is how long an automatic lock lasts.
	Duration time.Duration
	// KeyPrefix namespaces the attempt counters in Redis.
	KeyPrefix string
}

/*
====================================
CODE CONFIG
====================================
*/

// CodeConfig controls one class of emailed one-time codes (password
// reset or email verification).
type CodeConfig struct {
	// TTL is how long an issued code stays redeemable.
	TTL time.Duration
	// MaxRequests caps code issuance per account per window.
	MaxRequests int
	// RequestWindow is the fixed window for MaxRequests.
	RequestWindow time.Duration
	// MaxAttempts caps redemption attempts per issued code.
	MaxAttempts int
	// KeyPrefix namespaces the code records in Redis.
	KeyPrefix string
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig names the token carriers the HTTP layer looks at. The
// header value may carry a Bearer prefix, which is stripped regardless
// of case.
type TransportConfig struct {
	CookieName   string
	HeaderName   string
	CookieSecure bool
	ListenAddr   string
}

/*
====================================
BACKEND CONFIG
====================================
*/

// RedisConfig is the connection configuration for the session and
// counter store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig is the connection configuration for the account store.
type PostgresConfig struct {
	DSN string
}

// AWSConfig selects the region for SES mail and SNS event delivery.
// Empty Region disables both integrations.
type AWSConfig struct {
	Region         string
	SenderEmail    string
	EventsTopicARN string
}

// DefaultConfig returns the configuration the engine ships with.
// Secrets and connection strings are intentionally empty.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:              15 * time.Minute,
			HardTTL:          24 * time.Hour,
			MaxPerAccount:    5,
			KeyPrefix:        "as:",
			AccountKeyPrefix: "au:",
		},
		Lockout: LockoutConfig{
			MaxAttempts:   5,
			AttemptWindow: 15 * time.Minute,
			Duration:      30 * time.Minute,
			KeyPrefix:     "la:",
		},
		Reset: CodeConfig{
			TTL:           10 * time.Minute,
			MaxRequests:   3,
			RequestWindow: time.Hour,
			MaxAttempts:   5,
			KeyPrefix:     "pr:",
		},
		Verify: CodeConfig{
			TTL:           24 * time.Hour,
			MaxRequests:   3,
			RequestWindow: time.Hour,
			MaxAttempts:   5,
			KeyPrefix:     "ev:",
		},
		Transport: TransportConfig{
			CookieName:   "session",
			HeaderName:   "Authorization",
			CookieSecure: true,
			ListenAddr:   ":8080",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Session.HardTTL < c.Session.TTL {
		return errors.New("session hard ttl must be at least the sliding ttl")
	}
	if c.Session.MaxPerAccount <= 0 {
		return errors.New("session cap must be positive")
	}
	if c.Session.TokenSecret == "" {
		return errors.New("session token secret is required")
	}
	if c.Lockout.MaxAttempts == 0 || c.Lockout.MaxAttempts < Unlimited {
		return errors.New("lockout max attempts must be positive or Unlimited")
	}
	if c.Lockout.MaxAttempts != Unlimited && c.Lockout.AttemptWindow <= 0 {
		return errors.New("lockout attempt window must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	for _, code := range []struct {
		name string
		cfg  CodeConfig
	}{{"reset", c.Reset}, {"verify", c.Verify}} {
		if code.cfg.TTL <= 0 {
			return errors.New(code.name + " code ttl must be positive")
		}
		if code.cfg.MaxAttempts <= 0 {
			return errors.New(code.name + " code max attempts must be positive")
		}
	}
	return nil
}

// LoadConfig reads configuration from the environment, honoring a .env
// file in the working directory when present. Variables use the
// AUTHEDGE_ prefix with underscores, e.g. AUTHEDGE_SESSION_TTL.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("authedge")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	v.SetDefault("session_ttl", cfg.Session.TTL)
	v.SetDefault("session_hard_ttl", cfg.Session.HardTTL)
	v.SetDefault("session_max_per_account", cfg.Session.MaxPerAccount)
	v.SetDefault("lockout_max_attempts", cfg.Lockout.MaxAttempts)
	v.SetDefault("lockout_attempt_window", cfg.Lockout.AttemptWindow)
	v.SetDefault("lockout_duration", cfg.Lockout.Duration)
	v.SetDefault("reset_code_ttl", cfg.Reset.TTL)
	v.SetDefault("verify_code_ttl", cfg.Verify.TTL)
	v.SetDefault("cookie_name", cfg.Transport.CookieName)
	v.SetDefault("header_name", cfg.Transport.HeaderName)
	v.SetDefault("cookie_secure", cfg.Transport.CookieSecure)
	v.SetDefault("listen_addr", cfg.Transport.ListenAddr)
	v.SetDefault("redis_addr", cfg.Redis.Addr)
	v.SetDefault("redis_db", cfg.Redis.DB)

	cfg.Session.TTL = v.GetDuration("session_ttl")
	cfg.Session.HardTTL = v.GetDuration("session_hard_ttl")
	cfg.Session.MaxPerAccount = v.GetInt("session_max_per_account")
	cfg.Session.TokenSecret = v.GetString("session_token_secret")
	cfg.Lockout.MaxAttempts = v.GetInt("lockout_max_attempts")
	cfg.Lockout.AttemptWindow = v.GetDuration("lockout_attempt_window")
	cfg.Lockout.Duration = v.GetDuration("lockout_duration")
	cfg.Reset.TTL = v.GetDuration("reset_code_ttl")
	cfg.Verify.TTL = v.GetDuration("verify_code_ttl")
	cfg.Transport.CookieName = v.GetString("cookie_name")
	cfg.Transport.HeaderName = v.GetString("header_name")
	cfg.Transport.CookieSecure = v.GetBool("cookie_secure")
	cfg.Transport.ListenAddr = v.GetString("listen_addr")
	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")
	cfg.Postgres.DSN = v.GetString("postgres_dsn")
	cfg.AWS.Region = v.GetString("aws_region")
	cfg.AWS.SenderEmail = v.GetString("aws_sender_email")
	cfg.AWS.EventsTopicARN = v.GetString("aws_events_topic_arn")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
