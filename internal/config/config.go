package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mailbox delivery modes. "single" surfaces only the newest pending mission
// per owner; "fifo" drains pending missions oldest-first.
const (
	MailboxSingle = "single"
	MailboxFIFO   = "fifo"
)

// Duration unmarshals from YAML strings like "10m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	JWT       JWTConfig       `yaml:"jwt"`
	Pairing   PairingConfig   `yaml:"pairing"`
	Mailbox   MailboxConfig   `yaml:"mailbox"`
	Inference InferenceConfig `yaml:"inference"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AWSConfig holds object-storage configuration. Endpoint allows pointing at
// any S3-compatible provider.
type AWSConfig struct {
	Region     string `yaml:"region"`
	S3Bucket   string `yaml:"s3_bucket"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Endpoint   string `yaml:"endpoint"`
	PublicBase string `yaml:"public_base"` // base URL for public object links
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// PairingConfig holds pairing-code parameters
type PairingConfig struct {
	CodeTTL Duration `yaml:"code_ttl"`
}

// MailboxConfig selects the mission-delivery semantics
type MailboxConfig struct {
	Mode string `yaml:"mode"`
}

// InferenceConfig holds the external model-runner configuration
type InferenceConfig struct {
	Python    string        `yaml:"python"`
	Script    string        `yaml:"script"`
	ModelPath string        `yaml:"model_path"`
	InputSize string        `yaml:"input_size"`
	Timeout   Duration `yaml:"timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Mailbox.Mode != MailboxSingle && cfg.Mailbox.Mode != MailboxFIFO {
		return nil, fmt.Errorf("invalid mailbox mode %q", cfg.Mailbox.Mode)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pairing.CodeTTL == 0 {
		c.Pairing.CodeTTL = Duration(10 * time.Minute)
	}
	if c.Mailbox.Mode == "" {
		c.Mailbox.Mode = MailboxSingle
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = Duration(60 * time.Second)
	}
	if c.Inference.InputSize == "" {
		c.Inference.InputSize = "224,224"
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
