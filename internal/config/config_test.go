package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.OrderMaxAttempts != 5 {
		t.Errorf("OrderMaxAttempts = %d, want 5", cfg.OrderMaxAttempts)
	}
	if cfg.QuoteTimeout != 3*time.Second {
		t.Errorf("QuoteTimeout = %s, want 3s", cfg.QuoteTimeout)
	}
	if !cfg.StartingBalanceDecimal().Equal(decimal.NewFromInt(500)) {
		t.Errorf("starting balance = %s, want 500", cfg.StartingBalanceDecimal())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ORDER_MAX_ATTEMPTS", "3")
	t.Setenv("STARTING_BALANCE", "500000")
	t.Setenv("STREAM_INTERVAL", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.OrderMaxAttempts != 3 {
		t.Errorf("OrderMaxAttempts = %d, want 3", cfg.OrderMaxAttempts)
	}
	if !cfg.StartingBalanceDecimal().Equal(decimal.NewFromInt(500000)) {
		t.Errorf("starting balance = %s, want 500000", cfg.StartingBalanceDecimal())
	}
	if cfg.StreamInterval != time.Second {
		t.Errorf("StreamInterval = %s, want 1s", cfg.StreamInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("zero attempts", func(t *testing.T) {
		t.Setenv("ORDER_MAX_ATTEMPTS", "0")
		if _, err := Load(); err == nil {
			t.Error("expected error for ORDER_MAX_ATTEMPTS=0")
		}
	})

	t.Run("bad balance", func(t *testing.T) {
		t.Setenv("STARTING_BALANCE", "lots")
		if _, err := Load(); err == nil {
			t.Error("expected error for non-numeric STARTING_BALANCE")
		}
	})

	t.Run("negative balance", func(t *testing.T) {
		t.Setenv("STARTING_BALANCE", "-5")
		if _, err := Load(); err == nil {
			t.Error("expected error for negative STARTING_BALANCE")
		}
	})
}
