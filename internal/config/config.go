// Package config loads gokanplan settings from a YAML file, GOKANPLAN_*
// environment variables and built-in defaults, in that order of precedence
// (environment wins over the file).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every environment override, e.g.
// GOKANPLAN_SOLVER_TIME_BUDGET=30s.
const EnvPrefix = "GOKANPLAN"

// maxDefaultWorkers caps the auto-detected portfolio size.
const maxDefaultWorkers = 4

type (
	// Config is the full set of runtime settings.
	Config struct {
		Logger Logger `mapstructure:"logger"`
		Solver Solver `mapstructure:"solver"`
		HTTP   HTTP   `mapstructure:"http"`
		NATS   NATS   `mapstructure:"nats"`
	}

	Logger struct {
		Level    string `mapstructure:"level"`
		Encoding string `mapstructure:"encoding"`
	}

	// Solver tunes the engine. Workers <= 0 means auto-detect.
	Solver struct {
		TimeBudget time.Duration `mapstructure:"time_budget"`
		Workers    int           `mapstructure:"workers"`
		NodeLimit  int           `mapstructure:"node_limit"`
		Verify     bool          `mapstructure:"verify"`
	}

	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		RequestTimeout  time.Duration `mapstructure:"request_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	}

	NATS struct {
		Enabled        bool          `mapstructure:"enabled"`
		URL            string        `mapstructure:"url"`
		SubjectPrefix  string        `mapstructure:"subject_prefix"`
		QueueGroup     string        `mapstructure:"queue_group"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
	}
)

// Loader owns one viper instance bound to an optional config file.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader prepares a loader. An empty path means defaults and
// environment only.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	return &Loader{v: v, path: path}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("solver.time_budget", 10*time.Second)
	v.SetDefault("solver.workers", 0)
	v.SetDefault("solver.node_limit", 0)
	v.SetDefault("solver.verify", false)

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.request_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", "schedule")
	v.SetDefault("nats.queue_group", "gokanplan")
	v.SetDefault("nats.request_timeout", 30*time.Second)
}

// Path is the config file in use, or "".
func (l *Loader) Path() string { return l.path }

// Load reads the file (if any) and decodes the merged settings.
func (l *Loader) Load() (*Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Solver.Workers <= 0 {
		cfg.Solver.Workers = DefaultWorkers()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls fn with the re-decoded config every time the file changes.
// It is a no-op without a config file.
func (l *Loader) Watch(fn func(*Config, error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(l.decode())
	})
	l.v.WatchConfig()
}

// Validate reports every bad setting at once.
func (c *Config) Validate() error {
	var err error
	if _, perr := zapcore.ParseLevel(c.Logger.Level); perr != nil {
		err = multierr.Append(err, fmt.Errorf("logger.level: %w", perr))
	}
	if c.Logger.Encoding != "json" && c.Logger.Encoding != "console" {
		err = multierr.Append(err, fmt.Errorf("logger.encoding %q: want json or console", c.Logger.Encoding))
	}
	if c.Solver.TimeBudget <= 0 {
		err = multierr.Append(err, fmt.Errorf("solver.time_budget must be positive, got %s", c.Solver.TimeBudget))
	}
	if c.Solver.NodeLimit < 0 {
		err = multierr.Append(err, errors.New("solver.node_limit must not be negative"))
	}
	if c.HTTP.Addr == "" {
		err = multierr.Append(err, errors.New("http.addr is empty"))
	}
	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			err = multierr.Append(err, errors.New("nats.url is empty"))
		}
		if c.NATS.SubjectPrefix == "" {
			err = multierr.Append(err, errors.New("nats.subject_prefix is empty"))
		}
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DefaultWorkers is the logical CPU count, capped at 4. It falls back to
// one worker when the count cannot be read.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return min(n, maxDefaultWorkers)
}
