// Package scenario defines the YAML-loadable scenario manifest the CLI
// driver reads to parametrize a run: which exchanges/brokers/traders take
// part, the traded pairs' lifetimes, and the synthetic history generator's
// parameters.
package scenario

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/andrewsonin/simkernel/internal/latency"
)

// Config holds every parameter needed to construct and run a simulation.
// Generalized from the teacher's scenario.Config (Name/Seed/Duration plus a
// fixed FastTrader/SlowTrader pair) to an arbitrary roster of exchanges,
// brokers and traders, since this core's spec makes no assumption about how
// many agents of each kind a run wires together.
type Config struct {
	Name     string `yaml:"name" json:"name"`
	Seed     int64  `yaml:"seed" json:"seed"`
	Duration int64  `yaml:"duration_ns" json:"duration_ns"`

	Exchanges []ExchangeConfig `yaml:"exchanges" json:"exchanges"`
	Brokers   []BrokerConfig   `yaml:"brokers" json:"brokers"`
	Traders   []TraderConfig   `yaml:"traders" json:"traders"`

	Generator GeneratorParams `yaml:"generator" json:"generator"`
}

// ExchangeConfig names one exchange and the traded pairs it lists, each
// with its own session/lifecycle schedule.
type ExchangeConfig struct {
	ID          string             `yaml:"id" json:"id"`
	OpenDT      int64              `yaml:"open_dt_ns" json:"open_dt_ns"`
	CloseDT     int64              `yaml:"close_dt_ns" json:"close_dt_ns"`
	TradedPairs []TradedPairConfig `yaml:"traded_pairs" json:"traded_pairs"`
}

// TradedPairConfig describes one instrument's trading lifetime on an
// exchange. PriceStep is kept as decimal text (e.g. "0.01") rather than a
// float so the manifest round-trips through domain.NewPriceStep without
// precision loss. StopDT is a pointer so "trades never stop" (the teacher's
// default for calm/thin/spike) can be expressed without a sentinel value.
type TradedPairConfig struct {
	Symbol    string `yaml:"symbol" json:"symbol"`
	PriceStep string `yaml:"price_step" json:"price_step"`
	StartDT   int64  `yaml:"start_dt_ns" json:"start_dt_ns"`
	StopDT    *int64 `yaml:"stop_dt_ns,omitempty" json:"stop_dt_ns,omitempty"`
}

// Decimal parses PriceStep's decimal text. Called by internal/sim.Runner
// when constructing the exchange's traded-pair lifetimes; panics on a
// malformed manifest value since that is a construction-time config bug.
func (p TradedPairConfig) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(p.PriceStep)
	if err != nil {
		panic(fmt.Sprintf("scenario: invalid price_step %q for %s: %v", p.PriceStep, p.Symbol, err))
	}
	return d
}

// BrokerConfig names a broker and the exchanges it connects to.
type BrokerConfig struct {
	ID        string   `yaml:"id" json:"id"`
	Exchanges []string `yaml:"exchanges" json:"exchanges"`
}

// TraderConfig mirrors the teacher's TraderConfig (ID/BaseLatencyMs/
// JitterMs), adding the broker/exchange/pair a trader quotes on since the
// teacher hardcoded exactly two traders against one fixed pair.
type TraderConfig struct {
	ID            string `yaml:"id" json:"id"`
	BrokerID      string `yaml:"broker_id" json:"broker_id"`
	ExchangeID    string `yaml:"exchange_id" json:"exchange_id"`
	TradedPair    string `yaml:"traded_pair" json:"traded_pair"`
	BaseLatencyMs int64  `yaml:"base_latency_ms" json:"base_latency_ms"`
	JitterMs      int64  `yaml:"jitter_ms" json:"jitter_ms"`

	RequoteIntervalNs int64 `yaml:"requote_interval_ns,omitempty" json:"requote_interval_ns,omitempty"`
	CancelTimeoutNs   int64 `yaml:"cancel_timeout_ns,omitempty" json:"cancel_timeout_ns,omitempty"`
	TargetSize        int64 `yaml:"target_size,omitempty" json:"target_size,omitempty"`
}

// GeneratorParams holds the background order flow parameters, grounded on
// the teacher's ScenarioParams (same field set; MarketOrderRatio/CancelRate/
// ObSnapshotPeriodNs drive internal/replay.SyntheticStream and
// PeriodicObSnapshotDelay). InitialMidPrice/InitialSpread are plain counts
// of price-step units (domain.Price's own representation), not decimal
// quoted prices — the traded pair's PriceStep (TradedPairConfig) supplies
// the scale that turns them into a quoted value.
type GeneratorParams struct {
	InitialMidPrice    int64   `yaml:"initial_mid_price" json:"initial_mid_price"`
	InitialSpread      int64   `yaml:"initial_spread" json:"initial_spread"`
	PriceTickSize      int64   `yaml:"price_tick_size" json:"price_tick_size"`
	OrderIntervalNs    int64   `yaml:"order_interval_ns" json:"order_interval_ns"`
	MarketOrderRatio   float64 `yaml:"market_order_ratio" json:"market_order_ratio"`
	CancelRate         float64 `yaml:"cancel_rate" json:"cancel_rate"`
	MinOrderSize       int64   `yaml:"min_order_size" json:"min_order_size"`
	MaxOrderSize       int64   `yaml:"max_order_size" json:"max_order_size"`
	MaxPriceLevels     int     `yaml:"max_price_levels" json:"max_price_levels"`
	ObSnapshotPeriodNs int64   `yaml:"ob_snapshot_period_ns" json:"ob_snapshot_period_ns"`
}

// Load reads and validates a YAML scenario manifest from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario manifest: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse scenario manifest: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario manifest %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the manifest references are internally consistent: every
// broker's exchanges exist, and every trader's broker/exchange/pair exist.
func (c *Config) Validate() error {
	exchangeIDs := make(map[string]bool, len(c.Exchanges))
	pairsByExchange := make(map[string]map[string]bool, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		exchangeIDs[ex.ID] = true
		pairs := make(map[string]bool, len(ex.TradedPairs))
		for _, p := range ex.TradedPairs {
			pairs[p.Symbol] = true
		}
		pairsByExchange[ex.ID] = pairs
	}

	brokerIDs := make(map[string]bool, len(c.Brokers))
	for _, br := range c.Brokers {
		brokerIDs[br.ID] = true
		for _, exID := range br.Exchanges {
			if !exchangeIDs[exID] {
				return fmt.Errorf("broker %q references unknown exchange %q", br.ID, exID)
			}
		}
	}

	for _, tr := range c.Traders {
		if !brokerIDs[tr.BrokerID] {
			return fmt.Errorf("trader %q references unknown broker %q", tr.ID, tr.BrokerID)
		}
		if !exchangeIDs[tr.ExchangeID] {
			return fmt.Errorf("trader %q references unknown exchange %q", tr.ID, tr.ExchangeID)
		}
		if !pairsByExchange[tr.ExchangeID][tr.TradedPair] {
			return fmt.Errorf("trader %q references pair %q not listed on exchange %q", tr.ID, tr.TradedPair, tr.ExchangeID)
		}
	}
	return nil
}

// DefaultCalm mirrors the teacher's DefaultCalm: one exchange, one pair,
// two traders (fast/slow) sharing one broker.
func DefaultCalm(seed int64) *Config {
	return singleExchangeTwoTraders("calm", seed, GeneratorParams{
		InitialMidPrice:    10_000,
		InitialSpread:      2,
		PriceTickSize:      1,
		OrderIntervalNs:    latency.MsToNs(5),
		MarketOrderRatio:   0.15,
		CancelRate:         0.10,
		MinOrderSize:       1,
		MaxOrderSize:       10,
		MaxPriceLevels:     5,
		ObSnapshotPeriodNs: latency.MsToNs(200),
	})
}

// DefaultThin mirrors the teacher's DefaultThin: wider spread, thinner
// book, longer inter-arrival, higher cancel/market-order rates.
func DefaultThin(seed int64) *Config {
	return singleExchangeTwoTraders("thin", seed, GeneratorParams{
		InitialMidPrice:    10_000,
		InitialSpread:      5,
		PriceTickSize:      1,
		OrderIntervalNs:    latency.MsToNs(20),
		MarketOrderRatio:   0.25,
		CancelRate:         0.15,
		MinOrderSize:       1,
		MaxOrderSize:       5,
		MaxPriceLevels:     3,
		ObSnapshotPeriodNs: latency.MsToNs(200),
	})
}

// DefaultSpike mirrors the teacher's DefaultSpike: a busier flow than calm
// (wider spread, larger orders, higher market-order and cancel rates,
// more frequent snapshots) standing in for the original's burst-window
// multipliers; its inter-arrival is 8ms against calm's 5ms.
func DefaultSpike(seed int64) *Config {
	return singleExchangeTwoTraders("spike", seed, GeneratorParams{
		InitialMidPrice:    10_000,
		InitialSpread:      3,
		PriceTickSize:      1,
		OrderIntervalNs:    latency.MsToNs(8),
		MarketOrderRatio:   0.20,
		CancelRate:         0.25,
		MinOrderSize:       1,
		MaxOrderSize:       15,
		MaxPriceLevels:     5,
		ObSnapshotPeriodNs: latency.MsToNs(150),
	})
}

func singleExchangeTwoTraders(name string, seed int64, gen GeneratorParams) *Config {
	const exchangeID = "ex1"
	const brokerID = "br1"
	const pairSymbol = "ABC"

	return &Config{
		Name:     name,
		Seed:     seed,
		Duration: latency.MsToNs(10_000),
		Exchanges: []ExchangeConfig{
			{
				ID:      exchangeID,
				OpenDT:  0,
				CloseDT: latency.MsToNs(10_000),
				TradedPairs: []TradedPairConfig{
					{Symbol: pairSymbol, PriceStep: "0.01", StartDT: 0},
				},
			},
		},
		Brokers: []BrokerConfig{
			{ID: brokerID, Exchanges: []string{exchangeID}},
		},
		Traders: []TraderConfig{
			{ID: "fast", BrokerID: brokerID, ExchangeID: exchangeID, TradedPair: pairSymbol, BaseLatencyMs: 1, JitterMs: 0},
			{ID: "slow", BrokerID: brokerID, ExchangeID: exchangeID, TradedPair: pairSymbol, BaseLatencyMs: 50, JitterMs: 10},
		},
		Generator: gen,
	}
}

// GetConfig returns the default config for a named scenario, or nil if name
// is unknown.
func GetConfig(name string, seed int64) *Config {
	switch name {
	case "calm":
		return DefaultCalm(seed)
	case "thin":
		return DefaultThin(seed)
	case "spike":
		return DefaultSpike(seed)
	default:
		return nil
	}
}
