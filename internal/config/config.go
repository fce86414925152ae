// Package config loads wqguard settings from file, environment and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/wqguard/pkg/registry"
)

// envReplacer maps nested keys to env names: models.s3.bucket -> WQGUARD_MODELS_S3_BUCKET.
var envReplacer = strings.NewReplacer(".", "_")

// Config is the global configuration.
type Config struct {
	Models    Models    `mapstructure:"models" yaml:"models"`
	Normalize Normalize `mapstructure:"normalize" yaml:"normalize"`
	Report    Report    `mapstructure:"report" yaml:"report"`
	Server    Server    `mapstructure:"server" yaml:"server"`
}

// Models locates the pre-trained artifacts.
type Models struct {
	// Source is "file" or "s3".
	Source  string `mapstructure:"source" yaml:"source"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Variant string `mapstructure:"variant" yaml:"variant"`
	S3      S3     `mapstructure:"s3" yaml:"s3"`
}

type S3 struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Secure    bool   `mapstructure:"secure" yaml:"secure"`
}

type Normalize struct {
	// Aliases enables snake_case header aliases; false accepts canonical names only.
	Aliases bool `mapstructure:"aliases" yaml:"aliases"`
}

type Report struct {
	PreviewRows int `mapstructure:"preview_rows" yaml:"preview_rows"`
}

type Server struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	CORSOrigins string `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A missing config file is not an
// error; an explicit cfgFile that cannot be read is.
func Load(cfgFile string) (*Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("WQGUARD")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	v.SetDefault("models.source", "file")
	v.SetDefault("models.dir", "models")
	v.SetDefault("models.variant", string(registry.Auto))
	v.SetDefault("models.s3.endpoint", "")
	v.SetDefault("models.s3.bucket", "")
	v.SetDefault("models.s3.prefix", "")
	v.SetDefault("models.s3.access_key", "")
	v.SetDefault("models.s3.secret_key", "")
	v.SetDefault("models.s3.secure", false)
	v.SetDefault("normalize.aliases", true)
	v.SetDefault("report.preview_rows", 5)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.max_upload_mb", 32)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("wqguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wqguard"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Models.Source {
	case "file":
		if c.Models.Dir == "" {
			return fmt.Errorf("models.dir is required for the file source")
		}
	case "s3":
		if c.Models.S3.Endpoint == "" || c.Models.S3.Bucket == "" {
			return fmt.Errorf("models.s3.endpoint and models.s3.bucket are required for the s3 source")
		}
	default:
		return fmt.Errorf("invalid models.source %q (use file or s3)", c.Models.Source)
	}
	if _, err := registry.ParseSelection(c.Models.Variant); err != nil {
		return err
	}
	if c.Report.PreviewRows < 0 {
		return fmt.Errorf("report.preview_rows must not be negative")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	return nil
}

// Save writes c as YAML to path.
func Save(c *Config, path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
