// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList           []string      `mapstructure:"rpc_list"`
	WebSocketURL      string        `mapstructure:"websocket_url"`
	Commitment        string        `mapstructure:"commitment"`
	DropTimeout       time.Duration `mapstructure:"drop_timeout"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	HistoryMaxEntries int           `mapstructure:"history_max_entries"`
	RPCRateLimit      float64       `mapstructure:"rpc_rate_limit"`
	RPCBurst          int           `mapstructure:"rpc_burst"`
	Retries           int           `mapstructure:"retries"`
	MaxParallelSends  int           `mapstructure:"max_parallel_sends"`
	TxVersion         string        `mapstructure:"tx_version"`
	ComputeUnitPrice  uint64        `mapstructure:"compute_unit_price"`
	RedisAddr         string        `mapstructure:"redis_addr"`
	PostgresURL       string        `mapstructure:"postgres_url"`
	LogFile           string        `mapstructure:"log_file"`
	DebugLogging      bool          `mapstructure:"debug_logging"`
}

const (
	EnvPrefix = "TXFLOW"

	DefaultCommitment        = "processed"
	DefaultDropTimeout       = 5 * time.Minute
	DefaultRefreshInterval   = 30 * time.Second
	DefaultHistoryMaxEntries = 19
	DefaultRPCRateLimit      = 10.0
	DefaultRPCBurst          = 5
	DefaultRetries           = 3
	DefaultMaxParallelSends  = 8
	DefaultTxVersion         = "legacy"
	DefaultLogFile           = "txflow.log"
)

var defaults = map[string]interface{}{
	"rpc_list":            []string{},
	"websocket_url":       "",
	"commitment":          DefaultCommitment,
	"drop_timeout":        DefaultDropTimeout,
	"refresh_interval":    DefaultRefreshInterval,
	"history_max_entries": DefaultHistoryMaxEntries,
	"rpc_rate_limit":      DefaultRPCRateLimit,
	"rpc_burst":           DefaultRPCBurst,
	"retries":             DefaultRetries,
	"max_parallel_sends":  DefaultMaxParallelSends,
	"tx_version":          DefaultTxVersion,
	"compute_unit_price":  0,
	"redis_addr":          "",
	"postgres_url":        "",
	"log_file":            DefaultLogFile,
	"debug_logging":       false,
}

// LoadConfig reads path (json, yaml or toml) and applies TXFLOW_* environment overrides.
// An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	loadRPCList(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURLWithCache(cfg.WebSocketURL, "ws"); err != nil {
			return errors.New("invalid WebSocket URL protocol")
		}
	}

	switch cfg.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	switch cfg.TxVersion {
	case "legacy", "v0":
	default:
		return fmt.Errorf("invalid tx_version %q", cfg.TxVersion)
	}

	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.DropTimeout <= 0 {
		return errors.New("invalid drop_timeout")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("invalid refresh_interval")
	}
	if cfg.HistoryMaxEntries <= 0 {
		return errors.New("invalid history_max_entries")
	}
	if cfg.RPCRateLimit <= 0 || cfg.RPCBurst <= 0 {
		return errors.New("invalid rpc rate limit")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.MaxParallelSends < 0 {
		return errors.New("invalid max_parallel_sends")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// loadRPCList accepts TXFLOW_RPC_LIST as a comma separated list.
func loadRPCList(v *viper.Viper, cfg *Config) {
	raw := v.GetString("rpc_list")
	if raw == "" {
		return
	}
	var clean []string
	for _, rpc := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(rpc); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) > 0 {
		cfg.RPCList = clean
	}
}
