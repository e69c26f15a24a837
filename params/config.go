// Package params holds the runtime configuration: a yaml file read through
// viper, with .env / environment overrides on top.
package params

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Symbol struct {
	Name            string `mapstructure:"name"`
	Day             string `mapstructure:"day"` // first replay day, "2006-01-02" (UTC)
	Days            int    `mapstructure:"days"`
	LookbackMinutes int    `mapstructure:"lookback_minutes"`
	SpeedFactor     int    `mapstructure:"speed_factor"`
	Cache           bool   `mapstructure:"cache"`
}

type Data struct {
	Path string `mapstructure:"path"` // tick store directory
}

type Viewer struct {
	Addr string `mapstructure:"addr"`
}

type Ops struct {
	Addr string `mapstructure:"addr"`
}

type Account struct {
	Balance float64 `mapstructure:"balance"`
}

type Log struct {
	File string `mapstructure:"file"` // optional tee target
}

type Config struct {
	Symbols []Symbol `mapstructure:"symbols"`
	Data    Data     `mapstructure:"data"`
	Viewer  Viewer   `mapstructure:"viewer"`
	Ops     Ops      `mapstructure:"ops"`
	Account Account  `mapstructure:"account"`
	Log     Log      `mapstructure:"log"`
}

func Default() Config {
	return Config{
		Data:    Data{Path: "data/ticks"},
		Viewer:  Viewer{Addr: ":7010"},
		Ops:     Ops{Addr: ":7011"},
		Account: Account{Balance: 10000},
	}
}

// Load reads the yaml file at path over the defaults, then applies .env /
// environment overrides. Priority: ENV > .env file > yaml > defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("params: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("params: parse %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReplayDay parses the symbol's configured first day.
func (s Symbol) ReplayDay() (time.Time, error) {
	day, err := time.Parse("2006-01-02", s.Day)
	if err != nil {
		return time.Time{}, fmt.Errorf("params: symbol %s: bad day %q: %w", s.Name, s.Day, err)
	}
	return day, nil
}

func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("params: no symbols configured")
	}
	for _, s := range c.Symbols {
		if s.Name == "" {
			return fmt.Errorf("params: symbol without name")
		}
		if _, err := s.ReplayDay(); err != nil {
			return err
		}
	}
	if c.Data.Path == "" {
		return fmt.Errorf("params: data.path is required")
	}
	return nil
}

func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	if p := os.Getenv("FXSIM_DATA_PATH"); p != "" {
		cfg.Data.Path = p
	}
	if a := os.Getenv("FXSIM_VIEWER_ADDR"); a != "" {
		cfg.Viewer.Addr = a
	}
	if a := os.Getenv("FXSIM_OPS_ADDR"); a != "" {
		cfg.Ops.Addr = a
	}
	if f := os.Getenv("FXSIM_LOG_FILE"); f != "" {
		cfg.Log.File = f
	}
	if b := os.Getenv("FXSIM_BALANCE"); b != "" {
		if v, err := strconv.ParseFloat(b, 64); err == nil {
			cfg.Account.Balance = v
		}
	}
}
