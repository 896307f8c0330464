package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv        = "EMAIL_AUTOMATION_CONFIG"
	imapPasswordEnv      = "IMAP_PASSWORD"
	smtpPasswordEnv      = "SMTP_PASSWORD"
	openAIAPIKeyEnv      = "OPENAI_API_KEY"
	openAIModelEnv       = "OPENAI_MODEL"
	googleChatWebhookEnv = "GOOGLE_CHAT_WEBHOOK_URL"
	databasePathEnv      = "DATABASE_PATH"
	httpAddrEnv          = "HTTP_ADDR"
)

var emailExpr = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	IMAP       IMAPConfig       `yaml:"imap"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	GoogleChat GoogleChatConfig `yaml:"googleChat"`
	Approval   ApprovalConfig   `yaml:"approval"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
}

// LoggingConfig controls log verbosity and the optional log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// IMAPConfig describes the mailbox that is polled for inbound messages.
type IMAPConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	Email                string `yaml:"email"`
	Password             string `yaml:"password"`
	UseSSL               bool   `yaml:"useSSL"`
	CheckIntervalSeconds int    `yaml:"checkIntervalSeconds"`
}

// CheckInterval returns the mailbox polling cadence.
func (c IMAPConfig) CheckInterval() time.Duration {
	if c.CheckIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// Addr returns host:port for dialing.
func (c IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SMTPConfig describes the outbound mail relay.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	UseStartTLS bool   `yaml:"useStartTLS"`
}

// Addr returns host:port for dialing.
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OpenAIConfig defines how to contact the chat-completions API.
type OpenAIConfig struct {
	Endpoint          string `yaml:"endpoint"`
	Model             string `yaml:"model"`
	APIKey            string `yaml:"apiKey"`
	MaxResponseTokens int    `yaml:"maxResponseTokens"`
	ResponseTone      string `yaml:"responseTone"`
}

// GoogleChatConfig wires the operator notification webhook.
type GoogleChatConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
}

// ApprovalConfig controls escalation and human-approval routing.
type ApprovalConfig struct {
	UrgencyThreshold     int      `yaml:"urgencyThreshold"`
	TimeoutMinutes       int      `yaml:"timeoutMinutes"`
	SweepIntervalSeconds int      `yaml:"sweepIntervalSeconds"`
	RequireForExternal   bool     `yaml:"requireForExternal"`
	AllowedSenders       []string `yaml:"allowedSenders"`
	BlockedSenders       []string `yaml:"blockedSenders"`
	MaxPending           int      `yaml:"maxPending"`
}

// Timeout returns the deadline applied to every pending decision.
func (c ApprovalConfig) Timeout() time.Duration {
	if c.TimeoutMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// SweepInterval returns how often expired pending decisions are collected.
func (c ApprovalConfig) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// HTTPConfig describes the operator API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig describes the local processed-message store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load reads an optional .env file, then YAML configuration (if present), and
// finally applies environment overrides on top.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(imapPasswordEnv); v != "" {
		c.IMAP.Password = v
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.SMTP.Password = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(googleChatWebhookEnv); v != "" {
		c.GoogleChat.WebhookURL = v
	}

	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate checks required fields and value ranges before startup.
func (c Config) Validate() error {
	if c.IMAP.Host == "" || c.IMAP.Email == "" || c.IMAP.Password == "" {
		return fmt.Errorf("imap host, email, and password are required")
	}
	if c.SMTP.Host == "" || c.SMTP.Email == "" || c.SMTP.Password == "" {
		return fmt.Errorf("smtp host, email, and password are required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key is required")
	}
	if c.GoogleChat.WebhookURL == "" {
		return fmt.Errorf("google chat webhook url is required")
	}

	if !emailExpr.MatchString(c.IMAP.Email) {
		return fmt.Errorf("invalid imap email address: %s", c.IMAP.Email)
	}
	if !emailExpr.MatchString(c.SMTP.Email) {
		return fmt.Errorf("invalid smtp email address: %s", c.SMTP.Email)
	}

	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("imap port out of range: %d", c.IMAP.Port)
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp port out of range: %d", c.SMTP.Port)
	}

	if c.Approval.UrgencyThreshold < 1 || c.Approval.UrgencyThreshold > 5 {
		return fmt.Errorf("urgency threshold must be between 1 and 5, got %d", c.Approval.UrgencyThreshold)
	}

	return nil
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		IMAP: IMAPConfig{
			Host:                 "imap.gmail.com",
			Port:                 993,
			UseSSL:               true,
			CheckIntervalSeconds: 30,
		},
		SMTP: SMTPConfig{
			Host:        "smtp.gmail.com",
			Port:        587,
			UseStartTLS: true,
		},
		OpenAI: OpenAIConfig{
			Endpoint:          "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o",
			MaxResponseTokens: 500,
			ResponseTone:      "professional",
		},
		Approval: ApprovalConfig{
			UrgencyThreshold:     4,
			TimeoutMinutes:       10,
			SweepIntervalSeconds: 30,
			RequireForExternal:   true,
			MaxPending:           256,
		},
		HTTP:     HTTPConfig{Addr: ":8000"},
		Database: DatabaseConfig{Path: "data/email_automation.db"},
	}
}
