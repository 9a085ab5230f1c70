package app

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"moex-trader/internal/config"
	"moex-trader/internal/strategy"
)

func testConfig() *config.Config {
	return &config.Config{
		MarketData: config.MarketDataConfig{
			Driver:     "moex",
			Instrument: "SBER",
			Period:     time.Hour,
			Buffer:     8,
			Moex: config.MoexConfig{
				BaseURL: "https://iss.moex.com",
				Timeout: 10 * time.Second,
				Retry: config.RetryConfig{
					MaxAttempts: 3,
					MinDelay:    100 * time.Millisecond,
					MaxDelay:    time.Second,
				},
			},
		},
		Strategy: config.StrategyConfig{
			Name:       "threshold",
			Threshold:  250,
			FastPeriod: 5,
			SlowPeriod: 20,
		},
	}
}

func TestBuildSource_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.MarketData.Driver = "bloomberg"
	a := New(cfg, zap.NewNop(), nil)

	if _, err := a.buildSource(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestBuildSource_Moex(t *testing.T) {
	a := New(testConfig(), zap.NewNop(), nil)

	source, err := a.buildSource()
	if err != nil {
		t.Fatalf("buildSource returned error: %v", err)
	}
	if source == nil {
		t.Fatal("expected a market data source")
	}
}

func TestBuildStrategy_Selection(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
		check   func(strategy.Strategy) bool
	}{
		{"threshold", false, func(s strategy.Strategy) bool {
			_, ok := s.(*strategy.Threshold)
			return ok
		}},
		{"sma_cross", false, func(s strategy.Strategy) bool {
			_, ok := s.(*strategy.SMACross)
			return ok
		}},
		{"astrology", true, nil},
	}

	for _, tc := range cases {
		cfg := testConfig()
		cfg.Strategy.Name = tc.name
		a := New(cfg, zap.NewNop(), nil)

		strat, err := a.buildStrategy()
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: buildStrategy returned error: %v", tc.name, err)
			continue
		}
		if !tc.check(strat) {
			t.Errorf("%s: unexpected strategy type %T", tc.name, strat)
		}
	}
}
