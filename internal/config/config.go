package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	AdminPasswordHash  string `env:"ADMIN_PASSWORD_HASH"`
	AdminSessionSecret string `env:"ADMIN_SESSION_SECRET"`

	BotAPIURL         string `env:"BOT_API_URL"`
	BotAPIKey         string `env:"BOT_API_KEY"`
	BotModel          string `env:"BOT_MODEL" envDefault:"gpt-4o-mini"`
	BotSystemPrompt   string `env:"BOT_SYSTEM_PROMPT" envDefault:"You are a friendly support assistant for an artisan bakery. Answer questions about products, delivery and custom orders. Keep replies short."`
	BotTimeoutSeconds int    `env:"BOT_TIMEOUT_SECONDS" envDefault:"20"`
	BotHistoryLimit   int    `env:"BOT_HISTORY_LIMIT" envDefault:"50"`

	WhatsappWebhookURL string `env:"WHATSAPP_WEBHOOK_URL"`

	EscalationPhrases []string `env:"ESCALATION_PHRASES" envSeparator:"," envDefault:"speak to a person,speak to a human,talk to a human,talk to a person,human please"`

	WidgetRateLimitPerMin int    `env:"WIDGET_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	ResolvedRetentionDays int    `env:"RESOLVED_RETENTION_DAYS" envDefault:"0"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) BotTimeout() time.Duration {
	return time.Duration(c.BotTimeoutSeconds) * time.Second
}

// ResolvedRetention returns how long resolved sessions are kept before the
// cleanup job purges them. Zero disables purging.
func (c *Config) ResolvedRetention() time.Duration {
	return time.Duration(c.ResolvedRetentionDays) * 24 * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if isProduction {
		if err := validateSecret("ADMIN_SESSION_SECRET", c.AdminSessionSecret); err != nil {
			return err
		}

		if c.BotAPIURL == "" {
			log.Warn().Msg("BOT_API_URL is empty in production: bot replies disabled, messages go unanswered until an agent takes over")
		}
		if c.WhatsappWebhookURL == "" {
			log.Warn().Msg("WHATSAPP_WEBHOOK_URL is empty in production: escalation notifications will only be logged")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
