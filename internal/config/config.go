// Package config loads and validates the engine's tunable configuration.
// It uses plain encoding/json against a JSON file, logged on load, rather
// than a config library (see DESIGN.md for why).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Config holds every tunable the closure pipeline reads, plus the broker
// connection details (Login/Password/Server/DefaultSymbol).
type Config struct {
	// Broker connection.
	Login         int    `json:"login"`
	Password      string `json:"password"`
	Server        string `json:"server"`
	DefaultSymbol string `json:"defaultSymbol"`

	// Magic-number allow-list: positions outside this set are visible in
	// snapshots but never selected into a closure candidate. Empty means
	// "manage everything" (single-strategy deployments).
	AllowedMagics []int `json:"allowedMagics"`

	MinNetProfit            float64       `json:"minNetProfit"`
	EmergencyMinNetProfit   float64       `json:"emergencyMinNetProfit"`
	ClosingCooldownSeconds  int           `json:"closingCooldownSeconds"`
	TickBudgetMS            int           `json:"tickBudgetMs"`
	ZoneWidth               float64       `json:"zoneWidth"`
	MaxHelpers              int           `json:"maxHelpers"`
	HelperDistanceMaxPips   float64       `json:"helperDistanceMaxPips"`
	HeavyLossThreshold      float64       `json:"heavyLossThreshold"`
	ProfitTakeThreshold     float64       `json:"profitTakeThreshold"`
	ProblemLossThreshold    float64       `json:"problemLossThreshold"`
	TrendFollowMinStrength  float64       `json:"trendFollowMinStrength"`
	WorkerPoolSize          int           `json:"workerPoolSize"`
	BrokerTimeoutMS         int           `json:"brokerTimeoutMs"`
	BrokerRetries           int           `json:"brokerRetries"`
	PurposeUpdateCooldown   time.Duration `json:"purposeUpdateCooldown"`

	// Cost model.
	DefaultSpreadPoints     float64 `json:"defaultSpreadPoints"`
	CommissionPerStdLot     float64 `json:"commissionPerStdLot"`
	SlippagePerStdLot       float64 `json:"slippagePerStdLot"`
	BufferPerStdLot         float64 `json:"bufferPerStdLot"`
	PointValue              float64 `json:"pointValue"`

	// Hedge pair finder tuning.
	CrossZoneMinNetProfit   float64 `json:"crossZoneMinNetProfit"`
	HelperEarlyExitFactor   float64 `json:"helperEarlyExitFactor"`
	MaxCombinationSize      int     `json:"maxCombinationSize"`
	ReattemptDistanceFactor float64 `json:"reattemptDistanceFactor"`
}

// Default returns the configuration with every documented default value
// applied.
func Default() Config {
	return Config{
		DefaultSymbol: "XAUUSD",

		MinNetProfit:           0.05,
		EmergencyMinNetProfit:  0.01,
		ClosingCooldownSeconds: 30,
		TickBudgetMS:           2000,
		ZoneWidth:              3.0,
		MaxHelpers:             10,
		HelperDistanceMaxPips:  100,
		HeavyLossThreshold:     -50,
		ProfitTakeThreshold:    5,
		ProblemLossThreshold:   -5,
		TrendFollowMinStrength: 65,
		WorkerPoolSize:         4,
		BrokerTimeoutMS:        5000,
		BrokerRetries:          3,
		PurposeUpdateCooldown:  180 * time.Second,

		DefaultSpreadPoints: 1.50,
		CommissionPerStdLot: 0.30,
		SlippagePerStdLot:   1.50,
		BufferPerStdLot:     1.00,
		PointValue:          1.0,

		CrossZoneMinNetProfit:   2.0,
		HelperEarlyExitFactor:   1.2,
		MaxCombinationSize:      30,
		ReattemptDistanceFactor: 1.5,
	}
}

// Load reads a JSON config file, merges it onto Default(), and clamps
// anything out of range to a valid range with a warning, never crashing.
func Load(filename string, log *zap.Logger) (Config, error) {
	cfg := Default()

	file, err := os.Open(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config load error: %w", err)
	}
	defer file.Close()

	log.Info("loading config", zap.String("path", filename))

	decoder := json.NewDecoder(file)
	raw := cfg // start from defaults so omitted fields keep their default
	if err := decoder.Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("config decode error: %w", err)
	}

	clamp(&raw, log)

	log.Info("config loaded",
		zap.Int("login", raw.Login),
		zap.String("server", raw.Server),
		zap.String("symbol", raw.DefaultSymbol),
		zap.Float64("minNetProfit", raw.MinNetProfit),
	)

	return raw, nil
}

// clamp enforces sane bounds on every tunable, warning (never erroring) for
// each field that needed adjustment.
func clamp(c *Config, log *zap.Logger) {
	warn := func(field string, got, fallback float64) {
		log.Warn("config value out of range, clamped",
			zap.String("field", field),
			zap.Float64("got", got),
			zap.Float64("clampedTo", fallback),
		)
	}

	if c.MinNetProfit < 0 {
		warn("minNetProfit", c.MinNetProfit, 0.05)
		c.MinNetProfit = 0.05
	}
	if c.EmergencyMinNetProfit < 0 || c.EmergencyMinNetProfit > c.MinNetProfit {
		warn("emergencyMinNetProfit", c.EmergencyMinNetProfit, 0.01)
		c.EmergencyMinNetProfit = 0.01
	}
	if c.ClosingCooldownSeconds < 0 {
		warn("closingCooldownSeconds", float64(c.ClosingCooldownSeconds), 30)
		c.ClosingCooldownSeconds = 30
	}
	if c.TickBudgetMS <= 0 {
		warn("tickBudgetMs", float64(c.TickBudgetMS), 2000)
		c.TickBudgetMS = 2000
	}
	if c.ZoneWidth <= 0 {
		warn("zoneWidth", c.ZoneWidth, 3.0)
		c.ZoneWidth = 3.0
	}
	if c.MaxHelpers < 0 {
		warn("maxHelpers", float64(c.MaxHelpers), 10)
		c.MaxHelpers = 10
	}
	if c.HelperDistanceMaxPips < 0 {
		warn("helperDistanceMaxPips", c.HelperDistanceMaxPips, 100)
		c.HelperDistanceMaxPips = 100
	}
	if c.WorkerPoolSize < 1 {
		warn("workerPoolSize", float64(c.WorkerPoolSize), 2)
		c.WorkerPoolSize = 2
	}
	if c.WorkerPoolSize > 4 {
		warn("workerPoolSize", float64(c.WorkerPoolSize), 4)
		c.WorkerPoolSize = 4
	}
	if c.BrokerTimeoutMS <= 0 {
		warn("brokerTimeoutMs", float64(c.BrokerTimeoutMS), 5000)
		c.BrokerTimeoutMS = 5000
	}
	if c.BrokerRetries < 0 {
		warn("brokerRetries", float64(c.BrokerRetries), 3)
		c.BrokerRetries = 3
	}
	if c.DefaultSpreadPoints <= 0 {
		warn("defaultSpreadPoints", c.DefaultSpreadPoints, 1.50)
		c.DefaultSpreadPoints = 1.50
	}
	if c.MaxCombinationSize < 2 {
		warn("maxCombinationSize", float64(c.MaxCombinationSize), 30)
		c.MaxCombinationSize = 30
	}
	if c.ReattemptDistanceFactor < 1 {
		warn("reattemptDistanceFactor", c.ReattemptDistanceFactor, 1.5)
		c.ReattemptDistanceFactor = 1.5
	}
}
