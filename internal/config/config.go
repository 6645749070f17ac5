// Package config loads the run configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFrom     = "Chiquita"
	DefaultSubject  = "You have pending work on Github"
	DefaultSMTPPort = 587
	DefaultTimeout  = 10 * time.Minute

	// TokenEnv is read when github.token is left empty.
	TokenEnv = "GITHUB_ACCESS_TOKEN"
)

// Config is the root configuration structure. It is read-only once loaded.
type Config struct {
	Repositories []string          `yaml:"repositories"`
	Users        map[string]string `yaml:"users,omitempty"`
	Mail         MailConfig        `yaml:"mail"`
	SMTP         SMTPConfig        `yaml:"smtp"`
	GitHub       GitHubConfig      `yaml:"github"`
	Tasks        []TaskConfig      `yaml:"tasks,omitempty"`

	// Concurrency caps parallel repository scans and deliveries. 0 means no cap.
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// MailConfig holds message metadata.
type MailConfig struct {
	From    string `yaml:"from"`
	Subject string `yaml:"subject"`
}

// SMTPConfig holds the mail transport settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	UseTLS   bool   `yaml:"use_tls,omitempty"`
}

// GitHubConfig holds the API credential and endpoint.
type GitHubConfig struct {
	Token           string `yaml:"token"`
	BaseURL         string `yaml:"base_url,omitempty"`
	WaitOnRateLimit bool   `yaml:"wait_on_rate_limit,omitempty"`
}

// TaskConfig declares one built-in rule.
type TaskConfig struct {
	Kind     string   `yaml:"kind"`
	Rule     string   `yaml:"rule"`
	Message  string   `yaml:"message,omitempty"`
	Assignee string   `yaml:"assignee,omitempty"`
	Labels   []string `yaml:"labels,omitempty"`
	Days     int      `yaml:"days,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
}

// LoadDotEnv loads a .env file into the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads a config file from the given path and expands environment variables.
// $VAR and ${VAR} are replaced by the variable's value; write $$ for a literal $
// (for example "pa$$word" in smtp.password).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnv is os.ExpandEnv with $$ standing for a literal $.
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
}

// applyDefaults sets default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Mail.From == "" {
		c.Mail.From = DefaultFrom
	}
	if c.Mail.Subject == "" {
		c.Mail.Subject = DefaultSubject
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = DefaultSMTPPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv(TokenEnv)
	}
	if c.Users == nil {
		c.Users = map[string]string{}
	}
}

// Validate checks the fields the run cannot do without.
func (c *Config) Validate() error {
	if len(c.Repositories) == 0 {
		return errors.New("no repositories configured")
	}
	for _, repo := range c.Repositories {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("invalid repository %q: expected 'owner/repo'", repo)
		}
	}
	if c.GitHub.Token == "" {
		return fmt.Errorf("github token is not set (config github.token or %s)", TokenEnv)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	return nil
}

// ContactFor returns the configured address override for login.
func (c *Config) ContactFor(login string) (string, bool) {
	email, ok := c.Users[login]
	return email, ok && email != ""
}
