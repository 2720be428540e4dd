package config_test

import (
	"testing"

	"github.com/micro-nova/modcfg/internal/config"
)

func TestRangeValidator(t *testing.T) {
	v := config.NewRangeValidator(
		config.Rule{Index: 0, Min: 1, Max: 10},
		config.Rule{Index: 2, Min: 0x20, Max: 0x20},
	)
	tests := []struct {
		index int
		value byte
		want  bool
	}{
		{0, 0, false},
		{0, 1, true},
		{0, 10, true},
		{0, 11, false},
		{1, 0, true}, // no rule
		{1, 0xFF, true},
		{2, 0x20, true},
		{2, 0x21, false},
	}
	for _, tc := range tests {
		if got := v.Validate(tc.index, tc.value); got != tc.want {
			t.Errorf("Validate(%d, %d) = %v, want %v", tc.index, tc.value, got, tc.want)
		}
	}
}

func TestRangeValidator_LaterRuleWins(t *testing.T) {
	v := config.NewRangeValidator(
		config.Rule{Index: 0, Min: 0, Max: 1},
		config.Rule{Index: 0, Min: 5, Max: 6},
	)
	if v.Validate(0, 1) {
		t.Error("Validate(0, 1) = true, want false after rule replaced")
	}
	if !v.Validate(0, 5) {
		t.Error("Validate(0, 5) = false, want true")
	}
}

func TestAllOf(t *testing.T) {
	nonZero := config.ValidatorFunc(func(_ int, v byte) bool { return v != 0 })
	small := config.NewRangeValidator(config.Rule{Index: 0, Min: 0, Max: 9})
	v := config.AllOf(nonZero, small)

	if v.Validate(0, 0) {
		t.Error("AllOf accepted 0")
	}
	if v.Validate(0, 10) {
		t.Error("AllOf accepted 10")
	}
	if !v.Validate(0, 9) {
		t.Error("AllOf rejected 9")
	}
	if !config.AllOf().Validate(3, 3) {
		t.Error("empty AllOf should accept everything")
	}
}
