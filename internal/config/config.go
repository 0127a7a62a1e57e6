// Package config loads the settings of a synchronisation run from a YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ralt/rpmsync/internal/fragment"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/utils"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store types
const (
	StoreFS     = "fs"
	StoreMemory = "memory"
)

// Environment variables overriding the configuration file
const (
	EnvRepoType  = "REPO_TYPE"
	EnvUploadDir = "UPLOAD_DIRECTORY"
	EnvRoot      = "REPO_ROOT"
	EnvStorePath = "REPO_STORE_PATH"
)

// Default values
const (
	DefaultLogLevel         = "info"
	DefaultRetries          = 3
	DefaultBreakerThreshold = 5
)

// Config is the configuration of a run
type Config struct {
	Mode      string `yaml:"mode"`
	Root      string `yaml:"root"`
	UploadDir string `yaml:"upload_directory"`
	WorkDir   string `yaml:"work_dir,omitempty"`
	LogLevel  string `yaml:"log_level"`

	Store   StoreConfig   `yaml:"store"`
	Tool    ToolConfig    `yaml:"tool"`
	Signing SigningConfig `yaml:"signing"`
}

// StoreConfig selects the object store
type StoreConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`

	// Retries is the number of retries of a transient failure
	Retries int `yaml:"retries"`

	// BreakerThreshold is the number of consecutive failures after which
	// calls fail fast. A negative value disables retries and the breaker.
	BreakerThreshold int `yaml:"breaker_threshold"`
}

// ToolConfig selects the metadata tool
type ToolConfig struct {
	Type         string        `yaml:"type"`
	Createrepo   string        `yaml:"createrepo"`
	Mergerepo    string        `yaml:"mergerepo"`
	Timeout      time.Duration `yaml:"timeout"`
	CompressType string        `yaml:"compress_type"`
}

// SigningConfig holds the optional key signing merged metadata
type SigningConfig struct {
	GPGKey        string `yaml:"gpg_key,omitempty"`
	GPGPassphrase string `yaml:"gpg_passphrase,omitempty"`
}

// Default returns a configuration with defaults applied
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the configuration file at path, then applies defaults and
// the environment. An empty path skips the file. The result is not
// validated so that command line flags can still override it.
func Load(path string) (*Config, error) {
	if path == "" {
		c := Default()
		c.ApplyEnv()
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewError(models.ErrInvalidConfig, path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, models.NewError(models.ErrInvalidConfig, path, err)
	}
	return c, nil
}

// LoadFromReader reads a YAML configuration from r
func LoadFromReader(r io.Reader) (*Config, error) {
	var c Config
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	c.applyDefaults()
	c.ApplyEnv()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = layout.ModeDistribution
	}
	if c.UploadDir == "" {
		c.UploadDir = layout.DefaultUploadDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreFS
	}
	if c.Store.Retries == 0 {
		c.Store.Retries = DefaultRetries
	}
	if c.Store.BreakerThreshold == 0 {
		c.Store.BreakerThreshold = DefaultBreakerThreshold
	}
	if c.Tool.Type == "" {
		c.Tool.Type = fragment.TypeCreaterepo
	}
	if c.Tool.Createrepo == "" {
		c.Tool.Createrepo = fragment.DefaultCreaterepo
	}
	if c.Tool.Mergerepo == "" {
		c.Tool.Mergerepo = fragment.DefaultMergerepo
	}
	if c.Tool.Timeout == 0 {
		c.Tool.Timeout = fragment.DefaultTimeout
	}
	if c.Tool.CompressType == "" {
		c.Tool.CompressType = utils.CompressionGzip
	}
}

// ApplyEnv overrides settings with the environment variables that are set
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvRepoType); ok && v != "" {
		c.Mode = v
	}
	if v, ok := os.LookupEnv(EnvUploadDir); ok && v != "" {
		c.UploadDir = v
	}
	if v, ok := os.LookupEnv(EnvRoot); ok {
		c.Root = v
	}
	if v, ok := os.LookupEnv(EnvStorePath); ok && v != "" {
		c.Store.Path = v
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var err error
	switch {
	case c.Mode != layout.ModeDistribution && c.Mode != layout.ModeFlat:
		err = fmt.Errorf("invalid repo type: %s", c.Mode)
	case c.Store.Type != StoreFS && c.Store.Type != StoreMemory:
		err = fmt.Errorf("invalid store type: %s", c.Store.Type)
	case c.Store.Type == StoreFS && c.Store.Path == "":
		err = fmt.Errorf("store.path is required for the %s store", StoreFS)
	case c.Store.Retries < 0:
		err = fmt.Errorf("store.retries must not be negative")
	case c.Tool.Type != fragment.TypeCreaterepo && c.Tool.Type != fragment.TypeNative:
		err = fmt.Errorf("invalid tool type: %s", c.Tool.Type)
	case c.Tool.CompressType != utils.CompressionGzip && c.Tool.CompressType != utils.CompressionXz:
		err = fmt.Errorf("invalid compress type: %s", c.Tool.CompressType)
	case c.Tool.Timeout < 0:
		err = fmt.Errorf("tool.timeout must not be negative")
	}
	if err == nil {
		_, err = logrus.ParseLevel(c.LogLevel)
	}
	if err != nil {
		return models.NewError(models.ErrInvalidConfig, "", err)
	}
	return nil
}
