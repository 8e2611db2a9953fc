package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SimConfig configures the development candle simulator. It shares
// REDIS_ADDR, SQLITE_PATH, CHART_TOKEN and CHART_TF with the chart service
// so both processes agree on the channel and table.
type SimConfig struct {
	Base *Config

	Interval    time.Duration // SIM_TICK_MS
	SeedCandles int           // SIM_SEED_CANDLES, 0 disables seeding
	Sessions    bool          // SIM_SESSIONS, follow exchange hours
	Seed        int64         // SIM_SEED, 0 picks a time-based seed
	StartPrice  int64         // SIM_START_PRICE in paise, 0 uses the token default
}

// LoadSim reads the simulator configuration.
func LoadSim() *SimConfig {
	return &SimConfig{
		Base:        Load(),
		Interval:    time.Duration(getEnvInt("SIM_TICK_MS", 500)) * time.Millisecond,
		SeedCandles: getEnvInt("SIM_SEED_CANDLES", 1000),
		Sessions:    getEnvBool("SIM_SESSIONS", false),
		Seed:        int64(getEnvInt("SIM_SEED", 0)),
		StartPrice:  int64(getEnvInt("SIM_START_PRICE", 0)),
	}
}

// Validate checks the simulator settings and the shared base settings.
func (c *SimConfig) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if c.Base.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required by the simulator")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("SIM_TICK_MS must be positive")
	}
	if c.SeedCandles < 0 {
		return fmt.Errorf("SIM_SEED_CANDLES cannot be negative")
	}
	if c.StartPrice < 0 {
		return fmt.Errorf("SIM_START_PRICE cannot be negative")
	}
	return nil
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
