package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server Server `yaml:"server"`
}

type Server struct {
	Title               string   `yaml:"title"`
	URLPrefix           string   `yaml:"urlPrefix"`
	DefaultTheme        string   `yaml:"defaultTheme" validate:"oneof=light dark"`
	ClusterPagesEnabled *bool    `yaml:"clusterPagesEnabled"`
	SessionTTL          string   `yaml:"sessionTTL"`
	Upstream            Upstream `yaml:"upstream"`
	Feeds               Feeds    `yaml:"feeds"`
	PrefDB              PrefDB   `yaml:"prefdb"`
}

// Upstream describes where the status backend lives. BaseURL overrides the
// base derived from PageURL.
type Upstream struct {
	BaseURL            string `yaml:"baseURL" validate:"omitempty,url"`
	PageURL            string `yaml:"pageURL" validate:"omitempty,url"`
	StatusPath         string `yaml:"statusPath"`
	FallbackStatusPath string `yaml:"fallbackStatusPath"`
	ClusterUsagePath   string `yaml:"clusterUsagePath"`
	RefreshPath        string `yaml:"refreshPath"`
	MarkdownPath       string `yaml:"markdownPath"`
	Timeout            string `yaml:"timeout"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type Feeds struct {
	StatusRetry    string `yaml:"statusRetry"`
	StatusRefresh  string `yaml:"statusRefresh"`
	ClusterRetry   string `yaml:"clusterRetry"`
	ClusterRefresh string `yaml:"clusterRefresh"`
}

// PrefDB configures the optional MySQL store for theme preferences. An empty
// Host keeps preferences in memory.
type PrefDB struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	Charset         string `yaml:"charset"`
	ParseTime       bool   `yaml:"parseTime"`
	Loc             string `yaml:"loc"`
	TLS             string `yaml:"tls"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime string `yaml:"connMaxLifetime"`
}

// Load reads a YAML config file from the given path, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse unmarshals YAML bytes into Config.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	s := &c.Server
	setDefault(&s.Title, "HPC Status")
	if s.DefaultTheme == "" {
		s.DefaultTheme = "dark"
	}
	if s.ClusterPagesEnabled == nil {
		enabled := true
		s.ClusterPagesEnabled = &enabled
	}
	if s.SessionTTL == "" {
		s.SessionTTL = "30m"
	}

	u := &s.Upstream
	if u.BaseURL == "" && u.PageURL == "" {
		u.PageURL = "http://127.0.0.1:8080/"
	}
	setDefault(&u.StatusPath, "api/status")
	setDefault(&u.FallbackStatusPath, "data/status.json")
	setDefault(&u.ClusterUsagePath, "data/cluster_usage.json")
	setDefault(&u.RefreshPath, "api/refresh")
	setDefault(&u.MarkdownPath, "api/system-markdown")
	setDefault(&u.Timeout, "20s")

	f := &s.Feeds
	setDefault(&f.StatusRetry, "15s")
	setDefault(&f.StatusRefresh, "3m")
	setDefault(&f.ClusterRetry, "60s")
	setDefault(&f.ClusterRefresh, "5m")

	if s.PrefDB.Host != "" {
		if s.PrefDB.Port == 0 {
			s.PrefDB.Port = 3306
		}
		setDefault(&s.PrefDB.Charset, "utf8mb4")
	}
}

// Validate validates the config using go-playground/validator.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v.Struct(c)
}

// ClusterPages reports whether the quota/queue pages and the cluster feed are on.
func (s Server) ClusterPages() bool {
	return s.ClusterPagesEnabled == nil || *s.ClusterPagesEnabled
}

// ParseDuration returns fallback on empty or invalid duration strings.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
