package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "EMAIL_MANAGER_CONFIG"
	smtpServerEnv      = "SMTP_SERVER"
	smtpPortEnv        = "SMTP_PORT"
	emailAddressEnv    = "EMAIL_ADDRESS"
	emailPasswordEnv   = "EMAIL_PASSWORD"
	gmailCredsEnv      = "GMAIL_CREDENTIALS_PATH"
	gmailTokenEnv      = "GMAIL_TOKEN_PATH"
	groqAPIKeyEnv      = "GROQ_API_KEY"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	llmModelEnv        = "LLM_MODEL"
	reportRecipientEnv = "REPORT_RECIPIENT_EMAIL"
	debugEnv           = "DEBUG"
	hostEnv            = "HOST"
	portEnv            = "PORT"
	logLevelEnv        = "LOG_LEVEL"
	auditDSNEnv        = "AUDIT_DSN"

	openAIEndpoint = "https://api.openai.com/v1/"
)

// Duration decodes YAML strings such as "24h" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds high-level settings required across the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Mailbox   MailboxConfig   `yaml:"mailbox"`
	LLM       LLMConfig       `yaml:"llm"`
	Report    ReportConfig    `yaml:"report"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr joins host and port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SMTPConfig describes the outbound relay.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	TLS      string   `yaml:"tls"`
	Timeout  Duration `yaml:"timeout"`
}

// Sender returns the From address, defaulting to the login name.
func (s SMTPConfig) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

// MailboxConfig selects and configures the mailbox provider.
type MailboxConfig struct {
	Provider    string      `yaml:"provider"`
	Since       Duration    `yaml:"since"`
	MaxMessages int         `yaml:"maxMessages"`
	Timeout     Duration    `yaml:"timeout"`
	Gmail       GmailConfig `yaml:"gmail"`
	IMAP        IMAPConfig  `yaml:"imap"`
}

// GmailConfig points at the OAuth client secret and cached token.
type GmailConfig struct {
	CredentialsPath string `yaml:"credentialsPath"`
	TokenPath       string `yaml:"tokenPath"`
	Query           string `yaml:"query"`
}

// IMAPConfig describes an IMAP account.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Mailbox  string `yaml:"mailbox"`
	TLS      string `yaml:"tls"`
}

// LLMConfig defines how to contact the OpenAI-compatible chat API.
type LLMConfig struct {
	Endpoint            string   `yaml:"endpoint"`
	Model               string   `yaml:"model"`
	APIKey              string   `yaml:"apiKey"`
	SystemPrompt        string   `yaml:"systemPrompt"`
	Temperature         float64  `yaml:"temperature"`
	MaxCompletionTokens int      `yaml:"maxCompletionTokens"`
	MaxBodyChars        int      `yaml:"maxBodyChars"`
	MaxPromptChars      int      `yaml:"maxPromptChars"`
	Timeout             Duration `yaml:"timeout"`
}

// ReportConfig is the daily report destination.
type ReportConfig struct {
	Recipient string `yaml:"recipient"`
	Subject   string `yaml:"subject"`
}

// SchedulerConfig defines when the report should run.
type SchedulerConfig struct {
	Disabled     bool     `yaml:"disabled"`
	Interval     Duration `yaml:"interval"`
	RunOnStart   bool     `yaml:"runOnStart"`
	StartupDelay Duration `yaml:"startupDelay"`
}

// AuditConfig enables the SQLite delivery log when DSN is set.
type AuditConfig struct {
	DSN string `yaml:"dsn"`
}

// Load reads .env, YAML configuration (if present) and applies environment overrides.
// An explicit path wins over the EMAIL_MANAGER_CONFIG variable.
func Load(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports settings the service cannot run without.
func (c Config) Validate() error {
	var problems []string
	if c.SMTP.Host == "" || c.SMTP.Port == 0 {
		problems = append(problems, "smtp host/port")
	}
	if c.SMTP.Sender() == "" {
		problems = append(problems, "smtp sender address")
	}
	if !c.Scheduler.Disabled && c.Report.Recipient == "" {
		problems = append(problems, "report recipient")
	}
	if c.Scheduler.Interval.Std() <= 0 {
		problems = append(problems, "scheduler interval")
	}
	switch c.Mailbox.Provider {
	case "gmail":
		if c.Mailbox.Gmail.CredentialsPath == "" || c.Mailbox.Gmail.TokenPath == "" {
			problems = append(problems, "gmail credentials/token paths")
		}
	case "imap":
		if c.Mailbox.IMAP.Host == "" || c.Mailbox.IMAP.Username == "" {
			problems = append(problems, "imap host/username")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown mailbox provider %q", c.Mailbox.Provider))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: missing or invalid %s", strings.Join(problems, ", "))
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(smtpServerEnv); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		} else {
			log.Printf("config: ignoring %s=%q: %v", smtpPortEnv, v, err)
		}
	}
	if v := os.Getenv(emailAddressEnv); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv(emailPasswordEnv); v != "" {
		c.SMTP.Password = v
	}

	if v := os.Getenv(gmailCredsEnv); v != "" {
		c.Mailbox.Gmail.CredentialsPath = v
	}
	if v := os.Getenv(gmailTokenEnv); v != "" {
		c.Mailbox.Gmail.TokenPath = v
	}

	if v := os.Getenv(groqAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	} else if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
		c.LLM.Endpoint = openAIEndpoint
		c.LLM.Model = "gpt-4o-mini"
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(reportRecipientEnv); v != "" {
		c.Report.Recipient = v
	}

	if v := os.Getenv(hostEnv); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(portEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		} else {
			log.Printf("config: ignoring %s=%q: %v", portEnv, v, err)
		}
	}

	if strings.EqualFold(os.Getenv(debugEnv), "true") {
		c.Scheduler.RunOnStart = true
		c.Logging.Level = "debug"
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(auditDSNEnv); v != "" {
		c.Audit.DSN = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Host != "" {
		base.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		base.Server.Port = override.Server.Port
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.SMTP.Host != "" {
		base.SMTP.Host = override.SMTP.Host
	}
	if override.SMTP.Port != 0 {
		base.SMTP.Port = override.SMTP.Port
	}
	if override.SMTP.Username != "" {
		base.SMTP.Username = override.SMTP.Username
	}
	if override.SMTP.Password != "" {
		base.SMTP.Password = override.SMTP.Password
	}
	if override.SMTP.From != "" {
		base.SMTP.From = override.SMTP.From
	}
	if override.SMTP.TLS != "" {
		base.SMTP.TLS = override.SMTP.TLS
	}
	if override.SMTP.Timeout != 0 {
		base.SMTP.Timeout = override.SMTP.Timeout
	}

	if override.Mailbox.Provider != "" {
		base.Mailbox.Provider = override.Mailbox.Provider
	}
	if override.Mailbox.Since != 0 {
		base.Mailbox.Since = override.Mailbox.Since
	}
	if override.Mailbox.MaxMessages != 0 {
		base.Mailbox.MaxMessages = override.Mailbox.MaxMessages
	}
	if override.Mailbox.Timeout != 0 {
		base.Mailbox.Timeout = override.Mailbox.Timeout
	}
	if override.Mailbox.Gmail.CredentialsPath != "" {
		base.Mailbox.Gmail.CredentialsPath = override.Mailbox.Gmail.CredentialsPath
	}
	if override.Mailbox.Gmail.TokenPath != "" {
		base.Mailbox.Gmail.TokenPath = override.Mailbox.Gmail.TokenPath
	}
	if override.Mailbox.Gmail.Query != "" {
		base.Mailbox.Gmail.Query = override.Mailbox.Gmail.Query
	}
	if override.Mailbox.IMAP.Host != "" {
		base.Mailbox.IMAP = mergeIMAP(base.Mailbox.IMAP, override.Mailbox.IMAP)
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.Temperature != 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxCompletionTokens != 0 {
		base.LLM.MaxCompletionTokens = override.LLM.MaxCompletionTokens
	}
	if override.LLM.MaxBodyChars != 0 {
		base.LLM.MaxBodyChars = override.LLM.MaxBodyChars
	}
	if override.LLM.MaxPromptChars != 0 {
		base.LLM.MaxPromptChars = override.LLM.MaxPromptChars
	}
	if override.LLM.Timeout != 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}

	if override.Report.Recipient != "" {
		base.Report.Recipient = override.Report.Recipient
	}
	if override.Report.Subject != "" {
		base.Report.Subject = override.Report.Subject
	}

	if override.Scheduler.Disabled {
		base.Scheduler.Disabled = true
	}
	if override.Scheduler.RunOnStart {
		base.Scheduler.RunOnStart = true
	}
	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.StartupDelay != 0 {
		base.Scheduler.StartupDelay = override.Scheduler.StartupDelay
	}

	if override.Audit.DSN != "" {
		base.Audit.DSN = override.Audit.DSN
	}

	return base
}

func mergeIMAP(base, override IMAPConfig) IMAPConfig {
	base.Host = override.Host
	if override.Port != 0 {
		base.Port = override.Port
	}
	if override.Username != "" {
		base.Username = override.Username
	}
	if override.Password != "" {
		base.Password = override.Password
	}
	if override.Mailbox != "" {
		base.Mailbox = override.Mailbox
	}
	if override.TLS != "" {
		base.TLS = override.TLS
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8000},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			TLS:     "starttls",
			Timeout: Duration(30 * time.Second),
		},
		Mailbox: MailboxConfig{
			Provider:    "gmail",
			Since:       Duration(24 * time.Hour),
			MaxMessages: 100,
			Timeout:     Duration(60 * time.Second),
			Gmail: GmailConfig{
				CredentialsPath: "credentials.json",
				TokenPath:       "token.json",
			},
			IMAP: IMAPConfig{Port: 993, Mailbox: "INBOX", TLS: "implicit"},
		},
		LLM: LLMConfig{
			Endpoint:            "https://api.groq.com/openai/v1/",
			Model:               "llama-3.3-70b-versatile",
			SystemPrompt:        "You are a helpful personal assistant that summarizes emails.",
			Temperature:         0.3,
			MaxCompletionTokens: 1024,
			MaxBodyChars:        1500,
			MaxPromptChars:      48000,
			Timeout:             Duration(60 * time.Second),
		},
		Report: ReportConfig{Subject: "Daily Email Summary Report"},
		Scheduler: SchedulerConfig{
			Interval:     Duration(24 * time.Hour),
			StartupDelay: Duration(time.Minute),
		},
	}
}
