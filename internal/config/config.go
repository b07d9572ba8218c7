package config

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Data          DataConfig          `mapstructure:"data"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path of the SQLite database; ":memory:" keeps the dataset for the session only.
	Path string `mapstructure:"path"`
}

type DataConfig struct {
	GPSPath        string `mapstructure:"gps_path"`
	DistrictsPath  string `mapstructure:"districts_path"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// AnalysisConfig holds the tunables of the analysis modules. It is re-read on
// every request so edits to the config file apply without a restart.
type AnalysisConfig struct {
	DBSCANEps         float64 `mapstructure:"dbscan_eps"`
	DBSCANMinSamples  int     `mapstructure:"dbscan_min_samples"`
	PageRankDamping   float64 `mapstructure:"pagerank_damping"`
	PageRankTolerance float64 `mapstructure:"pagerank_tolerance"`
	LouvainResolution float64 `mapstructure:"louvain_resolution"`
	LouvainSeed       uint64  `mapstructure:"louvain_seed"`
	TopN              int     `mapstructure:"top_n"`
	Workers           int     `mapstructure:"workers"`
	HeatmapS2Level    int     `mapstructure:"heatmap_s2_level"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type AuthConfig struct {
	// JWTSecret enables bearer authentication of the dataset mutation endpoints.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// AnalysisSettings supplies the current analysis configuration.
type AnalysisSettings interface {
	Analysis() AnalysisConfig
}

// Manager owns the viper instance and the latest decoded configuration.
type Manager struct {
	v   *viper.Viper
	mu  sync.RWMutex
	cfg *Config
}

// Load 加载配置: defaults, then the optional file, then GEODASH_* environment variables.
func Load(configFile string) (*Manager, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GEODASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	m := &Manager{v: v}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) reload() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.mu.Lock()
	m.cfg = &cfg
	m.mu.Unlock()
	return nil
}

// Current returns the latest configuration snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Analysis implements AnalysisSettings.
func (m *Manager) Analysis() AnalysisConfig {
	return m.Current().Analysis
}

// Watch reloads the configuration when the config file changes. onChange
// receives the new snapshot, or the reload error.
func (m *Manager) Watch(onChange func(cfg *Config, err error)) {
	if m.v.ConfigFileUsed() == "" {
		return
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		err := m.reload()
		if onChange != nil {
			onChange(m.Current(), err)
		}
	})
	m.v.WatchConfig()
}

// Static wraps a fixed configuration, mainly for tests and the CLI.
type Static AnalysisConfig

func (s Static) Analysis() AnalysisConfig { return AnalysisConfig(s) }

// Defaults returns the built-in configuration without reading files or env.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.path", ":memory:")

	v.SetDefault("data.gps_path", "./data/fake_hcmc_road_gps_data.csv")
	v.SetDefault("data.districts_path", "./data/SGDistrict.geo.json")
	v.SetDefault("data.max_upload_bytes", 256<<20)

	v.SetDefault("analysis.dbscan_eps", 0.01)
	v.SetDefault("analysis.dbscan_min_samples", 5)
	v.SetDefault("analysis.pagerank_damping", 0.85)
	v.SetDefault("analysis.pagerank_tolerance", 1e-6)
	v.SetDefault("analysis.louvain_resolution", 1.0)
	v.SetDefault("analysis.louvain_seed", 1)
	v.SetDefault("analysis.top_n", 5)
	v.SetDefault("analysis.workers", runtime.NumCPU())
	v.SetDefault("analysis.heatmap_s2_level", 0)

	v.SetDefault("cache.size", 64)
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 120)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("observability.service_name", "geo-dashboard")
	v.SetDefault("observability.service_version", "0.1.0")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.enable_tracing", false)
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if cfg.Analysis.DBSCANEps <= 0 {
		return fmt.Errorf("analysis.dbscan_eps must be positive")
	}
	if cfg.Analysis.DBSCANMinSamples < 1 {
		return fmt.Errorf("analysis.dbscan_min_samples must be at least 1")
	}
	if cfg.Analysis.PageRankDamping <= 0 || cfg.Analysis.PageRankDamping >= 1 {
		return fmt.Errorf("analysis.pagerank_damping must be in (0, 1)")
	}
	if cfg.Analysis.PageRankTolerance <= 0 {
		return fmt.Errorf("analysis.pagerank_tolerance must be positive")
	}
	if cfg.Analysis.HeatmapS2Level < 0 || cfg.Analysis.HeatmapS2Level > 30 {
		return fmt.Errorf("analysis.heatmap_s2_level must be in [0, 30]")
	}
	if cfg.Analysis.Workers < 1 {
		cfg.Analysis.Workers = 1
	}
	if cfg.Analysis.TopN < 1 {
		cfg.Analysis.TopN = 5
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.Limit < 1 || cfg.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit.limit and rate_limit.window must be positive")
	}
	return nil
}
