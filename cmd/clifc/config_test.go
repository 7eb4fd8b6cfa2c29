package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_TOMLFileOverridesDefaultsFieldByField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clifc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
isa = "arm64"
call_conv = "AppleAarch64"

[cpu_features]
neon = true
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "arm64", cfg.ISA)
	require.Equal(t, "AppleAarch64", cfg.CallConv)
	require.Equal(t, "None", cfg.OptLevel) // untouched by the file, stays at the default
	require.True(t, cfg.CPUFeatures.Neon)
	require.False(t, cfg.CPUFeatures.AVX)
}

func TestLoadConfig_MalformedTOMLReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clifc.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is not [valid toml"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
