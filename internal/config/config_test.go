package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "imap.gmail.com", cfg.IMAP.Host)
	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.True(t, cfg.IMAP.UseSSL)
	assert.Equal(t, 30*time.Second, cfg.IMAP.CheckInterval())

	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.UseStartTLS)

	assert.Equal(t, 4, cfg.Approval.UrgencyThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Approval.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Approval.SweepInterval())
	assert.Equal(t, 256, cfg.Approval.MaxPending)

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "data/email_automation.db", cfg.Database.Path)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
imap:
  host: mail.corp.example
  port: 143
  email: bot@corp.example
  useSSL: false
  checkIntervalSeconds: 60
approval:
  urgencyThreshold: 5
  timeoutMinutes: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	assert.Equal(t, "mail.corp.example", cfg.IMAP.Host)
	assert.Equal(t, 143, cfg.IMAP.Port)
	assert.False(t, cfg.IMAP.UseSSL)
	assert.Equal(t, time.Minute, cfg.IMAP.CheckInterval())
	assert.Equal(t, 5, cfg.Approval.UrgencyThreshold)
	assert.Equal(t, 3*time.Minute, cfg.Approval.Timeout())

	// untouched sections keep their defaults
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv(imapPasswordEnv, "imap-secret")
	t.Setenv(smtpPasswordEnv, "smtp-secret")
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(openAIModelEnv, "gpt-4o-mini")
	t.Setenv(googleChatWebhookEnv, "https://chat.example/webhook")
	t.Setenv(databasePathEnv, "/tmp/test.db")
	t.Setenv(httpAddrEnv, ":9999")

	cfg := Load()
	assert.Equal(t, "imap-secret", cfg.IMAP.Password)
	assert.Equal(t, "smtp-secret", cfg.SMTP.Password)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "https://chat.example/webhook", cfg.GoogleChat.WebhookURL)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestValidate(t *testing.T) {
	valid := defaultConfig()
	valid.IMAP.Email = "bot@corp.example"
	valid.IMAP.Password = "secret"
	valid.SMTP.Email = "bot@corp.example"
	valid.SMTP.Password = "secret"
	valid.OpenAI.APIKey = "sk-test"
	valid.GoogleChat.WebhookURL = "https://chat.example/webhook"

	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing imap password", func(c *Config) { c.IMAP.Password = "" }},
		{"missing smtp host", func(c *Config) { c.SMTP.Host = "" }},
		{"missing api key", func(c *Config) { c.OpenAI.APIKey = "" }},
		{"missing webhook", func(c *Config) { c.GoogleChat.WebhookURL = "" }},
		{"bad imap email", func(c *Config) { c.IMAP.Email = "not-an-email" }},
		{"bad smtp email", func(c *Config) { c.SMTP.Email = "also@bad" }},
		{"imap port out of range", func(c *Config) { c.IMAP.Port = 70000 }},
		{"smtp port out of range", func(c *Config) { c.SMTP.Port = 0 }},
		{"threshold too low", func(c *Config) { c.Approval.UrgencyThreshold = 0 }},
		{"threshold too high", func(c *Config) { c.Approval.UrgencyThreshold = 6 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
