package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/gamegate/core"
	"github.com/layer-3/gamegate/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, datadir string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("datadir", datadir, "")
	fs.String("listen", DefaultListen, "")
	fs.Int("difficulty", DefaultDifficulty, "")
	fs.Duration("timeout", DefaultTimeout, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t, t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultDifficulty, cfg.Difficulty)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultGasPrice, cfg.GasPrice)
	assert.Equal(t, DefaultVariant, cfg.Variant)
	assert.Equal(t, DefaultSolveKind, cfg.Solve.Kind)
	assert.Equal(t, DefaultSolveName, cfg.Solve.Name)
	assert.Equal(t, DefaultEventsTopic, cfg.Events.Topic)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := `
listen = "127.0.0.1:4000"
difficulty = 20
timeout = "30s"
variant = "extended"
aes-key = "000102030405060708090a0b0c0d0e0f"

[solve]
kind = "event"
name = "SendFlag"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gamegate.toml"), []byte(file), 0600))

	cfg, err := Load(newFlags(t, dir))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", cfg.Listen)
	assert.Equal(t, 20, cfg.Difficulty)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "extended", cfg.Variant)
	assert.Equal(t, "event", cfg.Solve.Kind)
	assert.Equal(t, "SendFlag", cfg.Solve.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "000102030405060708090a0b0c0d0e0f", cfg.Keys.AESKey)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gamegate.toml"), []byte("difficulty = 20\n"), 0600))

	fs := newFlags(t, dir)
	require.NoError(t, fs.Parse([]string{"--difficulty", "5"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Difficulty)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("GAMEGATE_GAS_PRICE", "1000")
	t.Setenv("GAMEGATE_SOLVE_NAME", "isSolved")

	cfg, err := Load(newFlags(t, t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, "1000", cfg.GasPrice)
	assert.Equal(t, "isSolved", cfg.Solve.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative difficulty", func(c *Config) { c.Difficulty = -1 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"bad gas price", func(c *Config) { c.GasPrice = "abc" }},
		{"zero gas price", func(c *Config) { c.GasPrice = "0" }},
		{"unknown variant", func(c *Config) { c.Variant = "deluxe" }},
		{"unknown solve kind", func(c *Config) { c.Solve.Kind = "storage" }},
		{"empty solve name", func(c *Config) { c.Solve.Name = "" }},
		{"short ops secret", func(c *Config) { c.Ops.Listen = ":9000"; c.Ops.Secret = "short" }},
	}

	require.NoError(t, NewDefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSecrets(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		cfg := NewDefaultConfig()
		enc, mac, err := cfg.Secrets()
		require.NoError(t, err)
		assert.Len(t, enc, 16)
		assert.Len(t, mac, 32)

		enc2, _, err := cfg.Secrets()
		require.NoError(t, err)
		assert.NotEqual(t, enc, enc2)
	})

	t.Run("configured", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Keys.AESKey = "0x" + strings.Repeat("ab", 32)
		cfg.Keys.HMACKey = strings.Repeat("cd", 48)
		enc, mac, err := cfg.Secrets()
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("ab", 32), hex.EncodeToString(enc))
		assert.Len(t, mac, 48)
	})

	t.Run("rejected", func(t *testing.T) {
		for _, keys := range []KeyConfig{
			{AESKey: "zz"},
			{AESKey: strings.Repeat("ab", 20)},
			{HMACKey: strings.Repeat("ab", 16)},
		} {
			cfg := NewDefaultConfig()
			cfg.Keys = keys
			_, _, err := cfg.Secrets()
			assert.Error(t, err, "%+v", keys)
		}
	})
}

func TestGameConfig(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "Game.sol")
	flag := filepath.Join(dir, "flag.txt")
	require.NoError(t, os.WriteFile(source, []byte("contract Game {}\n"), 0600))
	require.NoError(t, os.WriteFile(flag, []byte("flag{test}\n"), 0600))

	cfg := NewDefaultConfig()
	cfg.SourceFile = source
	cfg.FlagFile = flag
	cfg.Variant = string(service.VariantExtended)
	cfg.Solve.Kind = string(core.SolveByEvent)

	game, err := cfg.GameConfig()
	require.NoError(t, err)
	assert.Equal(t, "contract Game {}", game.Source)
	assert.Equal(t, "flag{test}", game.Flag)
	assert.Equal(t, DefaultBanner, game.Banner)
	assert.Equal(t, "2000000000", game.DefaultGasPrice.String())
	assert.Equal(t, service.VariantExtended, game.Variant)
	assert.Equal(t, core.SolveByEvent, game.SolveKind)
	assert.Equal(t, DefaultTimeout, game.StepTimeout)

	cfg.FlagFile = filepath.Join(dir, "missing")
	_, err = cfg.GameConfig()
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Log.Format = "xml"
	_, err = cfg.Logger()
	assert.Error(t, err)

	cfg.Log.Format = "text"
	cfg.Log.Level = "loud"
	_, err = cfg.Logger()
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(24)
	require.NoError(t, err)
	assert.Len(t, key, 48)
}
