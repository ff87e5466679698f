package config

import "strings"

// Environment variable names for secrets. Secrets never live in the config file.
const (
	EnvAzurePAT      = "AZURE_PAT"
	EnvSlackWebhook  = "SLACK_WEBHOOK"
	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvDebugToken    = "DEBUG_TOKEN"
)

// Secrets are read once at startup.
type Secrets struct {
	AzurePAT      string
	SlackWebhook  string
	TelegramToken string
	DebugToken    string // optional
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadSecrets reads the required secrets via lookup. A missing or blank
// AZURE_PAT or SLACK_WEBHOOK is a ConfigError; TELEGRAM_TOKEN is only
// required when the Telegram sink is enabled.
func LoadSecrets(cfg *Config, lookup LookupFunc) (Secrets, error) {
	get := func(key string) (string, error) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return "", &ConfigError{Field: key, Msg: "required environment variable is not set"}
		}
		return v, nil
	}

	var (
		s   Secrets
		err error
	)
	if s.AzurePAT, err = get(EnvAzurePAT); err != nil {
		return Secrets{}, err
	}
	if s.SlackWebhook, err = get(EnvSlackWebhook); err != nil {
		return Secrets{}, err
	}
	if cfg != nil && cfg.Notifier.Telegram.Enabled {
		if s.TelegramToken, err = get(EnvTelegramToken); err != nil {
			return Secrets{}, err
		}
	}
	if v, ok := lookup(EnvDebugToken); ok {
		s.DebugToken = strings.TrimSpace(v)
	}
	return s, nil
}
