// Package config loads ~/.itms/config.yaml. Every client run gets a data
// directory holding the config file, the journal database and the log.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"github.com/itmstools/itms_console/pkg/api"
)

const (
	// DirName is the data directory created in the user's home
	DirName = ".itms"
	// FileName is the config file inside the data directory
	FileName = "config.yaml"
)

// Environment overrides, also read from a .env file in the working directory.
const (
	EnvAPIURL    = "ITMS_API_URL"
	EnvImageHost = "ITMS_IMAGE_HOST"
	EnvLogLevel  = "ITMS_LOG_LEVEL"
	EnvDataDir   = "ITMS_DATA_DIR"
)

const defaultConfigYAML = `# itms console configuration

api:
  # Review administration backend.
  base_url: http://localhost:5000
  # Host that relative review image paths resolve against. Defaults to base_url.
  # image_host: https://images.example.com
  timeout: 15s
  # Route overrides. {id} is replaced with the review ID.
  # endpoints:
  #   reviews: /api/dashboard/reviews
  #   review_detail: /api/dashboard/reviews/{id}

export:
  # Where the CSV download is saved.
  dir: .
  file_name: reviews.csv

log:
  level: info

ui:
  redirect: /dashboard
  toast_duration: 4s
`

// APIConfig locates the backend
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" default:"http://localhost:5000" validate:"required,url"`
	ImageHost string        `yaml:"image_host" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
	Endpoints api.Endpoints `yaml:"endpoints"`
}

// ExportConfig controls where downloads land
type ExportConfig struct {
	Dir      string `yaml:"dir" default:"."`
	FileName string `yaml:"file_name" default:"reviews.csv" validate:"required,excludesall=/\\"`
}

// LogConfig controls the file logger
type LogConfig struct {
	Level string `yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error"`
}

// UIConfig holds presentation preferences
type UIConfig struct {
	Redirect      string        `yaml:"redirect" default:"/dashboard" validate:"startswith=/"`
	ToastDuration time.Duration `yaml:"toast_duration" default:"4s" validate:"gt=0"`
	HideSidebar   bool          `yaml:"hide_sidebar"`
}

// Config holds the runtime configuration
type Config struct {
	API    APIConfig    `yaml:"api"`
	Export ExportConfig `yaml:"export"`
	Log    LogConfig    `yaml:"log"`
	UI     UIConfig     `yaml:"ui"`

	// DataDir is where the config, journal and logs live
	DataDir string `yaml:"-"`
	// Path is the config file that was loaded
	Path string `yaml:"-"`
}

// DefaultDataDir returns ~/.itms, or ITMS_DATA_DIR when set
func DefaultDataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Clean(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Load reads the config from dataDir, creating a commented default file on
// first run. An empty dataDir uses DefaultDataDir.
func Load(dataDir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	if strings.TrimSpace(dataDir) == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "logs"), 0o700); err != nil {
		return nil, fmt.Errorf("config: ensure data dir: %w", err)
	}
	path := filepath.Join(dataDir, FileName)
	if err := ensureConfigFile(path); err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	return cfg, nil
}

// LoadFile reads one config file and applies defaults, environment overrides
// and validation. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	defaults.SetDefaults(&cfg)
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Path = path
	cfg.DataDir = filepath.Dir(path)
	return &cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	var cfg Config
	defaults.SetDefaults(&cfg)
	cfg.normalize()
	return &cfg
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImageHost)); v != "" {
		c.API.ImageHost = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) normalize() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.API.ImageHost = strings.TrimRight(strings.TrimSpace(c.API.ImageHost), "/")
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Export.FileName = strings.TrimSpace(c.Export.FileName)
	c.Export.Dir = resolveHome(strings.TrimSpace(c.Export.Dir))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config against its field rules
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fieldPath(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ExportPath returns where the CSV download is written
func (c *Config) ExportPath() string {
	return filepath.Join(c.Export.Dir, c.Export.FileName)
}

// JournalPath returns the sqlite journal location
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "itms.db")
}

// ImageHost returns the host images resolve against
func (c *Config) ImageHost() string {
	if c.API.ImageHost != "" {
		return c.API.ImageHost
	}
	return c.API.BaseURL
}

// fieldPath turns "Config.API.BaseURL" into "API.BaseURL"
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func resolveHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
