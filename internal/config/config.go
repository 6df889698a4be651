package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models atelier.yml.
type Config struct {
	Studio struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"studio"`
	Notify  NotifyConfig `yaml:"notify"`
	Billing struct {
		DefaultTaxRateBP int    `yaml:"default_tax_rate_bp"`
		InvoiceDueDays   int    `yaml:"invoice_due_days"`
		NumberPrefix     string `yaml:"number_prefix"`
	} `yaml:"billing"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type NotifyConfig struct {
	GatewayURL        string `yaml:"gateway_url"`
	FromAddress       string `yaml:"from_address"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	Retries           int    `yaml:"retries"`
	ConfirmBeforeSend *bool  `yaml:"confirm_before_send"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Studio.Name == "" {
		return fmt.Errorf("config.studio.name is required")
	}
	if c.Notify.TimeoutSeconds < 0 {
		return fmt.Errorf("config.notify.timeout_seconds must not be negative")
	}
	if c.Notify.Retries < 0 {
		return fmt.Errorf("config.notify.retries must not be negative")
	}
	if c.Billing.DefaultTaxRateBP < 0 || c.Billing.DefaultTaxRateBP > 10000 {
		return fmt.Errorf("config.billing.default_tax_rate_bp must be between 0 and 10000")
	}
	if c.Billing.InvoiceDueDays < 0 {
		return fmt.Errorf("config.billing.invoice_due_days must not be negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// ConfirmBeforeSend reports whether completion notifications should ask for
// confirmation before emailing downstream assignees. Defaults to true.
func (c *Config) ConfirmBeforeSend() bool {
	if c.Notify.ConfirmBeforeSend == nil {
		return true
	}
	return *c.Notify.ConfirmBeforeSend
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "atelier.yml")
}

// Load reads and validates config from workspace, falling back to defaults
// when no atelier.yml exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML for bootstrap.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `studio:
  name: Atelier
  timezone: America/New_York

notify:
  gateway_url: ""
  from_address: studio@example.com
  timeout_seconds: 10
  retries: 2
  confirm_before_send: true

billing:
  default_tax_rate_bp: 825
  invoice_due_days: 30
  number_prefix: INV
`
