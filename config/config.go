package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/layer-3/gamegate/core"
	"github.com/layer-3/gamegate/service"
	"github.com/sirupsen/logrus"
)

// Default configuration values.
const (
	DefaultListen       = "0.0.0.0:12345"
	DefaultDifficulty   = 18
	DefaultTimeout      = 120 * time.Second
	DefaultGasPrice     = "2000000000"
	DefaultRPCURL       = "http://127.0.0.1:8545"
	DefaultSolc         = "solc"
	DefaultSourceFile   = "/app/Game.sol"
	DefaultContractName = "Game"
	DefaultFlagFile     = "/app/flag.txt"
	DefaultVariant      = string(service.VariantBasic)
	DefaultSolveKind    = string(core.SolveByVariable)
	DefaultSolveName    = "sendFlag"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultEventsTopic  = "gamegate.events"
	DefaultBanner       = "=== gamegate ==="
)

// Config contains all the configuration properties of a game server.
type Config struct {
	// DataDir is where the optional gamegate.{toml,yaml,json} is looked up
	DataDir string `mapstructure:"datadir"`

	// Listen is the address players connect to
	Listen string `mapstructure:"listen"`

	// Difficulty is the number of leading zero bits the proof of work needs
	Difficulty int `mapstructure:"difficulty"`

	// Timeout is the per-connection idle timeout
	Timeout time.Duration `mapstructure:"timeout"`

	// GasPrice is the default gas price in wei offered to players
	GasPrice string `mapstructure:"gas-price"`

	RPCURL       string `mapstructure:"rpc-url"`
	Solc         string `mapstructure:"solc"`
	SourceFile   string `mapstructure:"source-file"`
	ContractName string `mapstructure:"contract-name"`

	// Placeholder is replaced by a random number in every deployed copy of
	// the source, and by 0 in the listing
	Placeholder string `mapstructure:"placeholder"`

	FlagFile   string `mapstructure:"flag-file"`
	BannerFile string `mapstructure:"banner-file"`
	Network    string `mapstructure:"network"`
	Variant    string `mapstructure:"variant"`

	Solve  SolveConfig  `mapstructure:"solve"`
	Keys   KeyConfig    `mapstructure:",squash"`
	Log    LogConfig    `mapstructure:"log"`
	Events EventsConfig `mapstructure:"events"`
	Ops    OpsConfig    `mapstructure:"ops"`
}

// SolveConfig selects the solved-state predicate
type SolveConfig struct {
	Kind string `mapstructure:"kind"`
	Name string `mapstructure:"name"`
}

// KeyConfig holds the hex encoded token secrets; empty values are generated
type KeyConfig struct {
	AESKey  string `mapstructure:"aes-key"`
	HMACKey string `mapstructure:"hmac-key"`
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EventsConfig configures the audit event publisher
type EventsConfig struct {
	RedisURL string `mapstructure:"redis-url"`
	Topic    string `mapstructure:"topic"`
}

// OpsConfig configures the operator HTTP endpoint
type OpsConfig struct {
	Listen string `mapstructure:"listen"`
	Secret string `mapstructure:"secret"`
}

// NewDefaultConfig returns a config object with default values
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:      ".",
		Listen:       DefaultListen,
		Difficulty:   DefaultDifficulty,
		Timeout:      DefaultTimeout,
		GasPrice:     DefaultGasPrice,
		RPCURL:       DefaultRPCURL,
		Solc:         DefaultSolc,
		SourceFile:   DefaultSourceFile,
		ContractName: DefaultContractName,
		FlagFile:     DefaultFlagFile,
		Variant:      DefaultVariant,
		Solve: SolveConfig{
			Kind: DefaultSolveKind,
			Name: DefaultSolveName,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Events: EventsConfig{
			Topic: DefaultEventsTopic,
		},
	}
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Difficulty < 0 || c.Difficulty > 256 {
		return fmt.Errorf("difficulty must be between 0 and 256")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if _, err := c.DefaultGasPrice(); err != nil {
		return err
	}
	switch service.Variant(c.Variant) {
	case service.VariantBasic, service.VariantExtended:
	default:
		return fmt.Errorf("unknown variant %q", c.Variant)
	}
	switch core.SolveKind(c.Solve.Kind) {
	case core.SolveByVariable, core.SolveByEvent:
	default:
		return fmt.Errorf("unknown solve kind %q", c.Solve.Kind)
	}
	if c.Solve.Name == "" {
		return fmt.Errorf("solve name is required")
	}
	if c.Ops.Listen != "" && len(c.Ops.Secret) < 32 {
		return fmt.Errorf("ops secret must be at least 32 characters")
	}
	return nil
}

// DefaultGasPrice parses GasPrice
func (c *Config) DefaultGasPrice() (*big.Int, error) {
	price, ok := new(big.Int).SetString(c.GasPrice, 10)
	if !ok || price.Sign() <= 0 {
		return nil, fmt.Errorf("invalid gas price %q", c.GasPrice)
	}
	return price, nil
}

// Secrets decodes the AES and HMAC keys, generating fresh ones when unset
func (c *Config) Secrets() (encKey, macKey []byte, err error) {
	encKey, err = decodeOrGenerate(c.Keys.AESKey, 16)
	if err != nil {
		return nil, nil, fmt.Errorf("aes-key: %w", err)
	}
	switch len(encKey) {
	case 16, 24, 32:
	default:
		return nil, nil, fmt.Errorf("aes-key must be 16, 24 or 32 bytes")
	}

	macKey, err = decodeOrGenerate(c.Keys.HMACKey, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("hmac-key: %w", err)
	}
	if len(macKey) < 32 {
		return nil, nil, fmt.Errorf("hmac-key must be at least 32 bytes")
	}
	return encKey, macKey, nil
}

// GameConfig reads the files the game needs and assembles its settings
func (c *Config) GameConfig() (service.GameConfig, error) {
	gasPrice, err := c.DefaultGasPrice()
	if err != nil {
		return service.GameConfig{}, err
	}
	source, err := os.ReadFile(c.SourceFile)
	if err != nil {
		return service.GameConfig{}, fmt.Errorf("failed to read contract source: %w", err)
	}
	flag, err := os.ReadFile(c.FlagFile)
	if err != nil {
		return service.GameConfig{}, fmt.Errorf("failed to read flag: %w", err)
	}
	banner := DefaultBanner
	if c.BannerFile != "" {
		b, err := os.ReadFile(c.BannerFile)
		if err != nil {
			return service.GameConfig{}, fmt.Errorf("failed to read banner: %w", err)
		}
		banner = string(b)
	}

	return service.GameConfig{
		Variant:         service.Variant(c.Variant),
		Banner:          banner,
		Network:         c.Network,
		Source:          strings.TrimSpace(string(source)),
		ContractName:    c.ContractName,
		Placeholder:     c.Placeholder,
		Flag:            strings.TrimSpace(string(flag)),
		DefaultGasPrice: gasPrice,
		SolveKind:       core.SolveKind(c.Solve.Kind),
		SolveName:       c.Solve.Name,
		StepTimeout:     c.Timeout,
	}, nil
}

// Logger builds the root logger
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	switch c.Log.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return logger, nil
}

// GenerateKey returns n random bytes hex encoded
func GenerateKey(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func decodeOrGenerate(value string, size int) ([]byte, error) {
	if value == "" {
		buf := make([]byte, size)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return hex.DecodeString(strings.TrimPrefix(value, "0x"))
}
