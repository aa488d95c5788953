package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"vocarank/internal/structures"

	"github.com/spf13/viper"
)

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 30*time.Minute)
	v.SetDefault("refresh.at", "04:00")
	v.SetDefault("refresh.maxRetries", 5)
	v.SetDefault("refresh.retryDelay", time.Second)
	v.SetDefault("refresh.maxConcurrent", 15)
	v.SetDefault("rankings.defaultMaxEntries", 50)
	v.SetDefault("rankings.maxMaxEntries", 200)
	v.SetDefault("cache.ttl", 10*time.Minute)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")
	setConfigDefaults(v)

	_ = v.BindEnv("logger.level", "VOCARANK_LOG_LEVEL")
	_ = v.BindEnv("database.driver", "VOCARANK_DB_DRIVER")
	_ = v.BindEnv("database.dsn", "VOCARANK_DB_DSN")
	_ = v.BindEnv("refresh.enabled", "VOCARANK_REFRESH_ENABLED")
	_ = v.BindEnv("refresh.maxConcurrent", "VOCARANK_REFRESH_CONCURRENCY")
	_ = v.BindEnv("refresh.adminToken", "VOCARANK_REFRESH_TOKEN")
	_ = v.BindEnv("cache.enabled", "VOCARANK_CACHE_ENABLED")
	_ = v.BindEnv("cache.size", "VOCARANK_CACHE_SIZE")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "VocaRank"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
