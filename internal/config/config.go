package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all patina configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Filter    FilterConfig    `toml:"filter"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ScoringConfig struct {
	GrowthRate        float64 `toml:"growth_rate"`         // save/cite accrual multiplier
	DecayRate         float64 `toml:"decay_rate"`          // per-day reaction decay
	EscrowPeriodHours float64 `toml:"escrow_period_hours"` // age at which stakes mature
	MaturityThreshold float64 `toml:"maturity_threshold"`  // quality needed to yield
	MaxROI            float64 `toml:"max_roi"`             // payout cap multiple; <=0 disables
	BatchSize         int     `toml:"batch_size"`          // content items per scoring pass
	IntervalMinutes   int     `toml:"interval_minutes"`    // scoring pass period
}

type ReconcileConfig struct {
	IntervalMinutes int `toml:"interval_minutes"` // settlement pass period
	Workers         int `toml:"workers"`          // parallel settlements per pass
	SettleRetries   int `toml:"settle_retries"`   // attempts before leaving a stake for the next pass
}

type FilterConfig struct {
	VelocityLikesThreshold int     `toml:"velocity_likes_threshold"`
	VelocityWindowMinutes  float64 `toml:"velocity_window_minutes"`
	QualitySuppressBelow   float64 `toml:"quality_suppress_below"`
}

// Default returns a Config with production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37881,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Scoring: ScoringConfig{
			GrowthRate:        1.5,
			DecayRate:         0.5,
			EscrowPeriodHours: 72,
			MaturityThreshold: 1.0,
			MaxROI:            10,
			BatchSize:         1000,
			IntervalMinutes:   15,
		},
		Reconcile: ReconcileConfig{
			IntervalMinutes: 30,
			Workers:         4,
			SettleRetries:   3,
		},
		Filter: FilterConfig{
			VelocityLikesThreshold: 100,
			VelocityWindowMinutes:  10,
			QualitySuppressBelow:   0.5,
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file (or empty
// path) is not an error — defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
