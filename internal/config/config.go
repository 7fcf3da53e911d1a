package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/scribeflow/scribeflow/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Auth       AuthConfig       `yaml:"auth"`
	Generation GenerationConfig `yaml:"generation"`
	Stream     StreamConfig     `yaml:"stream"`
	Publisher  PublisherConfig  `yaml:"publisher"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// GenerationConfig points at the async content generation backend. The
// backend scales to zero and may need waking before job polls succeed.
type GenerationConfig struct {
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token"`
	RequestTimeout  string `yaml:"request_timeout"`
	WakeMaxAttempts int    `yaml:"wake_max_attempts"`
}

// StreamConfig bounds the per-client status stream loop.
type StreamConfig struct {
	PollInterval string `yaml:"poll_interval"`
	Timeout      string `yaml:"timeout"`
}

type PublisherConfig struct {
	Webflow   WebflowConfig   `yaml:"webflow"`
	WordPress WordPressConfig `yaml:"wordpress"`
}

type WebflowConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIToken string `yaml:"api_token"`
	BaseURL  string `yaml:"base_url"`
}

type WordPressConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"app_password"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5340
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Generation.RequestTimeout == "" {
		cfg.Generation.RequestTimeout = "30s"
	}
	if cfg.Generation.WakeMaxAttempts == 0 {
		cfg.Generation.WakeMaxAttempts = 4
	}
	if cfg.Stream.PollInterval == "" {
		cfg.Stream.PollInterval = "2s"
	}
	if cfg.Stream.Timeout == "" {
		cfg.Stream.Timeout = "10m"
	}
	if cfg.Publisher.Webflow.BaseURL == "" {
		cfg.Publisher.Webflow.BaseURL = "https://api.webflow.com/v2"
	}

	return cfg, nil
}
