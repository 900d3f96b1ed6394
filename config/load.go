package config

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GAMEGATE_AES_KEY
const EnvPrefix = "GAMEGATE"

// Load layers flags, environment and the optional config file over the
// defaults. Flags that were set explicitly win over the file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	cfg := NewDefaultConfig()

	setDefaults(v, cfg, flags)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gamegate")
	v.AddConfigPath(v.GetString("datadir"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// setDefaults registers every key so that AutomaticEnv can see it. Keys
// backed by a flag keep the flag's default, which viper consults last.
func setDefaults(v *viper.Viper, cfg *Config, flags *pflag.FlagSet) {
	defaults := map[string]interface{}{
		"datadir":          cfg.DataDir,
		"listen":           cfg.Listen,
		"difficulty":       cfg.Difficulty,
		"timeout":          cfg.Timeout,
		"gas-price":        cfg.GasPrice,
		"rpc-url":          cfg.RPCURL,
		"solc":             cfg.Solc,
		"source-file":      cfg.SourceFile,
		"contract-name":    cfg.ContractName,
		"placeholder":      cfg.Placeholder,
		"flag-file":        cfg.FlagFile,
		"banner-file":      cfg.BannerFile,
		"network":          cfg.Network,
		"variant":          cfg.Variant,
		"solve.kind":       cfg.Solve.Kind,
		"solve.name":       cfg.Solve.Name,
		"aes-key":          cfg.Keys.AESKey,
		"hmac-key":         cfg.Keys.HMACKey,
		"log.level":        cfg.Log.Level,
		"log.format":       cfg.Log.Format,
		"events.redis-url": cfg.Events.RedisURL,
		"events.topic":     cfg.Events.Topic,
		"ops.listen":       cfg.Ops.Listen,
		"ops.secret":       cfg.Ops.Secret,
	}
	for key, value := range defaults {
		if flags != nil && flags.Lookup(key) != nil {
			continue
		}
		v.SetDefault(key, value)
	}
}
