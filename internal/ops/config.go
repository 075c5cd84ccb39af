package ops

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"pxfeed/internal/dispatch"
	"pxfeed/internal/model"
	"pxfeed/internal/pxdata"
	"pxfeed/internal/replay"
	"pxfeed/pkg/conn"
	"pxfeed/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "PXFEED_"

	defaultStatsInterval = 30 * time.Second
	defaultDuration      = "1 D"
	defaultBarSize       = "1 min"
)

// FileConfig mirrors the YAML config layout.
type FileConfig struct {
	Debounce      string               `yaml:"debounce"`
	Capacity      int                  `yaml:"capacity"`
	Dispatch      DispatchConfig       `yaml:"dispatch"`
	Replay        ReplayConfig         `yaml:"replay"`
	Postgres      PostgresConfig       `yaml:"postgres"`
	Pyroscope     PyroscopeConfig      `yaml:"pyroscope"`
	StatsInterval string               `yaml:"stats_interval"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// DispatchConfig describes the delivery worker pool.
type DispatchConfig struct {
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
	Overflow  string `yaml:"overflow"`
}

// ReplayConfig points at a recorded provider feed.
type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
}

// PostgresConfig enables the bar store.
type PostgresConfig struct {
	Enabled  bool              `yaml:"enabled"`
	DSN      string            `yaml:"dsn"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Database string            `yaml:"database"`
	SSLMode  string            `yaml:"sslmode"`
	Params   map[string]string `yaml:"params"`
}

// PyroscopeConfig enables continuous profiling when Addr is set.
type PyroscopeConfig struct {
	Addr        string `yaml:"addr"`
	Application string `yaml:"application"`
}

// SubscriptionConfig is one instrument to subscribe at startup.
type SubscriptionConfig struct {
	Spec     model.ContractSpec `yaml:"spec"`
	Duration string             `yaml:"duration"`
	BarSize  string             `yaml:"bar_size"`
}

// Config is the resolved configuration ready for use.
type Config struct {
	Pxdata        pxdata.Config
	Replay        replay.Config
	Postgres      PostgresConfig
	Pyroscope     PyroscopeConfig
	StatsInterval time.Duration
	Subscriptions []SubscriptionConfig
}

// Option converts the YAML block into connection options.
func (p PostgresConfig) Option() conn.Option {
	return conn.Option{
		Host:       p.Host,
		Port:       p.Port,
		User:       p.User,
		Password:   p.Password,
		Database:   p.Database,
		SSLMode:    p.SSLMode,
		Params:     p.Params,
		ConnString: p.DSN,
	}
}

var dotenvOnce sync.Once

// loadDotenv reads .env (or ENV_FILE) once. Existing variables win.
func loadDotenv() {
	dotenvOnce.Do(func() {
		if os.Getenv("NO_DOTENV") == "1" {
			return
		}
		if path := os.Getenv("ENV_FILE"); path != "" {
			_ = godotenv.Load(path)
			return
		}
		_ = godotenv.Load()
	})
}

// Load reads a YAML config file. An empty path yields the defaults plus env overrides.
func Load(path string) (Config, error) {
	loadDotenv()
	if path == "" {
		return resolve(FileConfig{})
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config").With("path", path)
	}
	defer file.Close()
	return LoadFromReader(file)
}

// LoadFromReader builds a Config from YAML content.
func LoadFromReader(r io.Reader) (Config, error) {
	loadDotenv()
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, errors.Wrap(exception.ErrConfigInvalid, err.Error())
	}
	return resolve(fc)
}

func resolve(fc FileConfig) (Config, error) {
	if err := fc.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	fc.expandEnv()
	fc = fc.withDefaults()
	if err := fc.Validate(); err != nil {
		return Config{}, err
	}

	debounce, err := parseDuration("debounce", fc.Debounce)
	if err != nil {
		return Config{}, err
	}
	stats, err := parseDuration("stats_interval", fc.StatsInterval)
	if err != nil {
		return Config{}, err
	}
	overflow, err := dispatch.ParseOverflowPolicy(fc.Dispatch.Overflow)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Pxdata: pxdata.Config{
			DebounceWindow: debounce,
			Capacity:       fc.Capacity,
			Dispatch: dispatch.Config{
				Workers:   fc.Dispatch.Workers,
				QueueSize: fc.Dispatch.QueueSize,
				Overflow:  overflow,
			},
		},
		Replay:        replay.Config{Path: fc.Replay.Path, Speed: fc.Replay.Speed},
		Postgres:      fc.Postgres,
		Pyroscope:     fc.Pyroscope,
		StatsInterval: stats,
		Subscriptions: fc.Subscriptions,
	}, nil
}

func (c FileConfig) withDefaults() FileConfig {
	if c.Debounce == "" {
		c.Debounce = pxdata.DefaultDebounceWindow.String()
	}
	if c.StatsInterval == "" {
		c.StatsInterval = defaultStatsInterval.String()
	}
	if c.Pyroscope.Application == "" {
		c.Pyroscope.Application = "pxfeed"
	}
	subs := make([]SubscriptionConfig, len(c.Subscriptions))
	for i, sub := range c.Subscriptions {
		if sub.Duration == "" {
			sub.Duration = defaultDuration
		}
		if sub.BarSize == "" {
			sub.BarSize = defaultBarSize
		}
		subs[i] = sub
	}
	c.Subscriptions = subs
	return c
}

// Validate checks if the config is usable.
func (c FileConfig) Validate() error {
	if c.Capacity < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "capacity must be >= 0")
	}
	if c.Dispatch.Workers < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "dispatch workers must be >= 0")
	}
	if c.Dispatch.QueueSize < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "dispatch queue_size must be >= 0")
	}
	if c.Replay.Speed < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "replay speed must be >= 0")
	}
	for i, sub := range c.Subscriptions {
		if sub.Spec.Empty() {
			return errors.Wrapf(exception.ErrConfigInvalid, "subscription %d has no symbol or conId", i)
		}
	}
	return nil
}

func (c *FileConfig) expandEnv() {
	c.Replay.Path = strings.TrimSpace(os.ExpandEnv(c.Replay.Path))
	c.Postgres.DSN = strings.TrimSpace(os.ExpandEnv(c.Postgres.DSN))
	c.Postgres.Host = strings.TrimSpace(os.ExpandEnv(c.Postgres.Host))
	c.Postgres.User = strings.TrimSpace(os.ExpandEnv(c.Postgres.User))
	c.Postgres.Password = os.ExpandEnv(c.Postgres.Password)
	c.Postgres.Database = strings.TrimSpace(os.ExpandEnv(c.Postgres.Database))
	c.Pyroscope.Addr = strings.TrimSpace(os.ExpandEnv(c.Pyroscope.Addr))
}

// applyEnv overlays PXFEED_* variables on top of the file values.
func (c *FileConfig) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(exception.ErrConfigInvalid, "%s%s: %s", envPrefix, key, v)
		}
		*dst = n
		return nil
	}

	str("DEBOUNCE", &c.Debounce)
	str("STATS_INTERVAL", &c.StatsInterval)
	str("OVERFLOW", &c.Dispatch.Overflow)
	str("REPLAY_PATH", &c.Replay.Path)
	str("PG_DSN", &c.Postgres.DSN)
	str("PYROSCOPE_ADDR", &c.Pyroscope.Addr)
	if err := num("CAPACITY", &c.Capacity); err != nil {
		return err
	}
	if err := num("WORKERS", &c.Dispatch.Workers); err != nil {
		return err
	}
	if err := num("QUEUE_SIZE", &c.Dispatch.QueueSize); err != nil {
		return err
	}
	if v, ok := lookup(envPrefix + "REPLAY_SPEED"); ok {
		speed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.Wrapf(exception.ErrConfigInvalid, "%sREPLAY_SPEED: %s", envPrefix, v)
		}
		c.Replay.Speed = speed
	}
	if _, ok := lookup(envPrefix + "PG_DSN"); ok {
		c.Postgres.Enabled = true
	}
	return nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrapf(exception.ErrConfigInvalid, "%s: %q", field, raw)
	}
	if d <= 0 {
		return 0, errors.Wrapf(exception.ErrConfigInvalid, "%s must be positive, got %s", field, d)
	}
	return d, nil
}
