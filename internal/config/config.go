package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nazarhussain/folio-courier/env"
	"github.com/nazarhussain/folio-courier/internal/form"
	"github.com/nazarhussain/folio-courier/internal/ratelimit"
	"github.com/nazarhussain/folio-courier/internal/spam"
)

/*
ENV-ONLY CONFIG (a .env file in the working directory is read first):
  Server:
    LISTEN_ADDR (default ":3000")
    METRICS_ADDR (default ":9090", empty disables)
    LOG_LEVEL, LOG_FORMAT ("json" or text)
    MAX_BODY_KB (default 64)
    ALLOW_JSON, ALLOW_FORM (default "true")
    ALLOWED_ORIGINS="https://a.com,https://b.com" or "*"
    TRUST_PROXY (default false; when true X-Forwarded-For picks the client)
    ADMIN_TOKEN (empty disables GET /api/admin/messages)
    ADMIN_RATE_LIMIT (requests per minute per address, default 30)

  Rate limit:
    RATE_LIMIT_MAX (default 5)
    RATE_LIMIT_WINDOW (default "1h")
    RATE_LIMIT_BACKEND ("memory" or "redis")
    REDIS_ADDR, REDIS_PASSWORD, REDIS_DB

  Storage:
    STORE_DRIVER ("memory" or "postgres")
    DATABASE_URL (required for postgres)

  Notification (empty SMTP_HOST disables email):
    SMTP_HOST, SMTP_PORT (587), SMTP_USER, SMTP_PASS, SMTP_SSL
    NOTIFY_TO (required with SMTP_HOST), NOTIFY_FROM (default SMTP_USER)
    SUBJECT_PREFIX (default "Website Contact Form:")
    NOTIFY_TIMEOUT (default "10s")

  Content policy (comma-separated, unset keeps the defaults):
    RESTRICTED_NAME_TERMS, BLOCKED_EMAIL_DOMAINS
    SPAM_TRIGGER_WORDS, SPAM_EMAIL_PREFIXES
*/

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type SmtpCfg struct {
	Host string
	Port int
	User string
	Pass string
	SSL  bool
}

type NotifyCfg struct {
	SMTP          SmtpCfg
	To            string
	From          string
	SubjectPrefix string
	Timeout       time.Duration
}

// Enabled reports whether a mail server is configured.
func (n NotifyCfg) Enabled() bool { return n.SMTP.Host != "" }

type RateLimitCfg struct {
	Max           int
	Window        time.Duration
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type StoreCfg struct {
	Driver      string
	DatabaseURL string
}

type Config struct {
	ListenAddr     string
	MetricsAddr    string
	LogLevel       string
	LogFormat      string
	MaxBodyKB      int
	AllowJSON      bool
	AllowForm      bool
	AllowedOrigins []string
	TrustProxy     bool
	AdminToken     string
	AdminPerMinute int

	RateLimit RateLimitCfg
	Store     StoreCfg
	Notify    NotifyCfg
	Rules     form.Rules
	Spam      spam.Policy
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	rules := form.DefaultRules()
	rules.RestrictedTerms = env.EnvList("RESTRICTED_NAME_TERMS", rules.RestrictedTerms)
	rules.BlockedDomains = env.EnvList("BLOCKED_EMAIL_DOMAINS", rules.BlockedDomains)

	policy := spam.DefaultPolicy()
	policy.TriggerWords = env.EnvList("SPAM_TRIGGER_WORDS", policy.TriggerWords)
	policy.EmailPrefixes = env.EnvList("SPAM_EMAIL_PREFIXES", policy.EmailPrefixes)
	policy.EmailDomains = rules.BlockedDomains

	smtpCfg := SmtpCfg{
		Host: env.Env("SMTP_HOST", ""),
		Port: env.EnvInt("SMTP_PORT", 587),
		User: env.Env("SMTP_USER", ""),
		Pass: env.Env("SMTP_PASS", ""),
		SSL:  env.EnvBool("SMTP_SSL", false),
	}

	c := &Config{
		ListenAddr:     env.Env("LISTEN_ADDR", ":3000"),
		MetricsAddr:    env.Env("METRICS_ADDR", ":9090"),
		LogLevel:       env.Env("LOG_LEVEL", "info"),
		LogFormat:      env.Env("LOG_FORMAT", "text"),
		MaxBodyKB:      env.EnvInt("MAX_BODY_KB", 64),
		AllowJSON:      env.EnvBool("ALLOW_JSON", true),
		AllowForm:      env.EnvBool("ALLOW_FORM", true),
		AllowedOrigins: env.EnvList("ALLOWED_ORIGINS", nil),
		TrustProxy:     env.EnvBool("TRUST_PROXY", false),
		AdminToken:     env.Env("ADMIN_TOKEN", ""),
		AdminPerMinute: env.EnvInt("ADMIN_RATE_LIMIT", 30),
		RateLimit: RateLimitCfg{
			Max:           env.EnvInt("RATE_LIMIT_MAX", ratelimit.DefaultMax),
			Window:        env.EnvDuration("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
			Backend:       strings.ToLower(env.Env("RATE_LIMIT_BACKEND", BackendMemory)),
			RedisAddr:     env.Env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env.Env("REDIS_PASSWORD", ""),
			RedisDB:       env.EnvInt("REDIS_DB", 0),
		},
		Store: StoreCfg{
			Driver:      strings.ToLower(env.Env("STORE_DRIVER", DriverMemory)),
			DatabaseURL: env.Env("DATABASE_URL", ""),
		},
		Notify: NotifyCfg{
			SMTP:          smtpCfg,
			To:            env.Env("NOTIFY_TO", ""),
			From:          env.Env("NOTIFY_FROM", smtpCfg.User),
			SubjectPrefix: env.Env("SUBJECT_PREFIX", "Website Contact Form:"),
			Timeout:       env.EnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Rules: rules,
		Spam:  policy,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxBodyKB <= 0 {
		errs = append(errs, errors.New("MAX_BODY_KB must be positive"))
	}
	if !c.AllowJSON && !c.AllowForm {
		errs = append(errs, errors.New("at least one of ALLOW_JSON and ALLOW_FORM must be true"))
	}
	if c.AdminPerMinute < 0 {
		errs = append(errs, errors.New("ADMIN_RATE_LIMIT must not be negative"))
	}
	if c.RateLimit.Max <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RateLimit.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Notify.Enabled() {
		if c.Notify.To == "" {
			errs = append(errs, errors.New("NOTIFY_TO is required when SMTP_HOST is set"))
		}
		if c.Notify.From == "" {
			errs = append(errs, errors.New("NOTIFY_FROM or SMTP_USER is required when SMTP_HOST is set"))
		}
	}
	return errors.Join(errs...)
}
