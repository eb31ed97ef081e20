package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBenchmarks is the benchmark suite offered in the view selectors.
var DefaultBenchmarks = []string{
	"Bounce", "CD", "DeltaBlue", "Havlak", "Json", "List", "Mandelbrot",
	"NBody", "Permute", "Queens", "Richards", "Sieve", "Storage", "Towers",
}

// Config is the resolved dashboard configuration.
type Config struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	ResultsDir string   `mapstructure:"results_dir"`
	Extension  string   `mapstructure:"extension"`
	Benchmarks []string `mapstructure:"benchmarks"`

	Engine string       `mapstructure:"engine"`
	Script ScriptConfig `mapstructure:"script"`

	LegacyCommitRoutes bool      `mapstructure:"legacy_commit_routes"`
	Git                GitConfig `mapstructure:"git"`

	Metrics MetricsConfig `mapstructure:"metrics"`

	LogFile string `mapstructure:"log_file"`
	Verbose bool   `mapstructure:"verbose"`
}

// ScriptConfig configures the external plotting script engine.
type ScriptConfig struct {
	Interpreter string        `mapstructure:"interpreter"`
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GitConfig configures commit metadata lookups for legacy result files.
type GitConfig struct {
	Repo     string        `mapstructure:"repo"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("host", "127.0.0.1")
	viper.SetDefault("port", 3000)
	viper.SetDefault("results_dir", "./results")
	viper.SetDefault("extension", ".data")
	viper.SetDefault("benchmarks", DefaultBenchmarks)

	viper.SetDefault("engine", "native")
	viper.SetDefault("script.interpreter", "Rscript")
	viper.SetDefault("script.path", "plotting.R")
	viper.SetDefault("script.timeout", 60*time.Second)

	viper.SetDefault("legacy_commit_routes", false)
	viper.SetDefault("git.repo", ".")
	viper.SetDefault("git.timeout", 10*time.Second)
	viper.SetDefault("git.cache_ttl", time.Hour)

	viper.SetDefault("metrics.enabled", true)

	viper.SetDefault("log_file", "")
	viper.SetDefault("verbose", false)
}

// Load reads the configuration from cfgFile (or ./config.yaml when empty), a
// .env file and PERFDASH_* environment variables, in increasing precedence.
// Flags bound to viper by the caller take precedence over all of them.
func Load(cfgFile string) (Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("PERFDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
