package structures

import "time"

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"required|in:postgres,sqlite"`
	DSN             string        `yaml:"dsn" validate:"required"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type DormancyConfig struct {
	MinAgeDays int   `yaml:"minAgeDays"`
	WindowDays int   `yaml:"windowDays"`
	MaxGain    int64 `yaml:"maxGain"`
}

type RefreshConfig struct {
	Enabled       bool              `yaml:"enabled"`
	At            string            `yaml:"at"`
	MaxRetries    int               `yaml:"maxRetries" validate:"min:0"`
	RetryDelay    time.Duration     `yaml:"retryDelay"`
	MaxConcurrent int               `yaml:"maxConcurrent" validate:"min:0"`
	ProviderRate  float64           `yaml:"providerRate"`
	AdminToken    string            `yaml:"adminToken"`
	Providers     map[string]string `yaml:"providers"`
	Dormancy      DormancyConfig    `yaml:"dormancy"`
}

type RankingsConfig struct {
	DefaultMaxEntries int `yaml:"defaultMaxEntries"`
	MaxMaxEntries     int `yaml:"maxMaxEntries"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	WebServer Server         `yaml:"webServer"`
	Database  DatabaseConfig `yaml:"database"`
	Logger    LoggerConfig   `yaml:"logger"`
	Refresh   RefreshConfig  `yaml:"refresh"`
	Rankings  RankingsConfig `yaml:"rankings"`
	Cache     CacheConfig    `yaml:"cache"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}
