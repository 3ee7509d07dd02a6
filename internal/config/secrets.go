package config

import "slices"

const mask = "***"

func (c *Config) secretFields() []*string {
	return []*string{
		&c.Goldsky.APIKey,
		&c.Postgres.DSN,
		&c.Postgres.Password,
		&c.Redis.Password,
		&c.S3.AccessKey,
		&c.S3.SecretKey,
		&c.Notify.TelegramToken,
		&c.Notify.DiscordWebhookURL,
		&c.Server.APIKey,
	}
}

// Redacted returns a copy that is safe to log: credentials that are set
// read "***" and slices no longer alias c.
func (c *Config) Redacted() Config {
	out := *c
	for _, s := range out.secretFields() {
		if *s != "" {
			*s = mask
		}
	}
	out.Notify.Events = slices.Clone(c.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(c.Server.CORSOrigins)
	return out
}
