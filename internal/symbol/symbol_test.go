package symbol

import (
	"errors"
	"testing"
)

func TestNormalize_Valid(t *testing.T) {
	cases := map[string]string{
		"AAPL":     "AAPL",
		"aapl":     "AAPL",
		" msft ":   "MSFT",
		"BRK.B":    "BRK.B",
		"brk.b":    "BRK.B",
		"RDS-A":    "RDS-A",
		"GOOGL":    "GOOGL",
		"x":        "X",
		"ABCDEFGH": "ABCDEFGH",
	}
	for raw, want := range cases {
		got, err := Normalize(raw)
		if err != nil {
			t.Errorf("Normalize(%q) unexpected error: %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"AAPL123",
		"TOOLONGSYMBOL",
		"AA PL",
		".AAPL",
		"AAPL.",
		"AAPL.TOOLONG",
		"aapl$",
	} {
		if _, err := Normalize(raw); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("Normalize(%q): expected ErrInvalidSymbol, got %v", raw, err)
		}
	}
}
