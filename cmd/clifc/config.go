package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is clifc's TOML configuration (spec.md §6.3): target ISA, calling
// convention, optimization level, and CPU feature flags. Grounded on
// lookbusy1344-arm_emulator/config/config.go's DefaultConfig/LoadFrom
// pattern: a fully-populated default, overridden field-by-field by whatever
// the TOML file supplies, falling back to defaults entirely when no file
// exists rather than erroring.
type Config struct {
	ISA      string `toml:"isa"`       // "amd64" | "arm64"
	CallConv string `toml:"call_conv"` // "SystemV" | "WindowsFastcall" | "AppleAarch64"
	OptLevel string `toml:"opt_level"` // "None" | "Speed"

	CPUFeatures struct {
		AVX    bool `toml:"avx"`
		AVX2   bool `toml:"avx2"`
		AVX512 bool `toml:"avx512"`
		BMI    bool `toml:"bmi"`
		SSE42  bool `toml:"sse4_2"`
		Popcnt bool `toml:"popcnt"`
		Neon   bool `toml:"neon"`
	} `toml:"cpu_features"`
}

// DefaultConfig returns the configuration clifc uses when no TOML file is
// given: the host-native-ish baseline (amd64/SystemV, no optimization, no
// CPU features beyond the architectural minimum).
func DefaultConfig() *Config {
	cfg := &Config{ISA: "amd64", CallConv: "SystemV", OptLevel: "None"}
	return cfg
}

// LoadConfig reads path as a TOML file layered over DefaultConfig; a path
// that does not exist is not an error; returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("clifc: parsing config %s: %w", path, err)
	}
	return cfg, nil
}
