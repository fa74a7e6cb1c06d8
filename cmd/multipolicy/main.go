package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cartridge/multipolicy/internal/config"
	"github.com/cartridge/multipolicy/internal/logging"
)

// newRootCmd builds the command tree around a fresh viper instance so that
// configuration never carries over between executions.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "multipolicy",
		Short: "Cartridge multi-policy module with a shared encoder",
		Long: `Runs forward passes for several policy heads that share one
observation encoder.

Each policy's observations go through the shared encoder once; the
resulting features feed that policy's head, which produces action
distribution inputs (logits).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfg := config.Default()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&configFile, "config", "", "Path to a YAML config file")

	// Network settings
	flags.Int("obs-dim", cfg.ObsDim, "Observation dimension")
	flags.Int("feature-dim", cfg.FeatureDim, "Shared encoder output dimension")
	flags.Int("hidden-dim", cfg.HiddenDim, "Default policy head hidden dimension")
	flags.Int64("seed", cfg.Seed, "Weight initialisation seed")

	// Dispatch settings
	flags.Int("parallelism", cfg.Parallelism, "Maximum concurrent policy passes per call")

	// Logging
	flags.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", cfg.LogFormat, "Log format (json, console)")

	for key, flag := range map[string]string{
		"obs_dim":     "obs-dim",
		"feature_dim": "feature-dim",
		"hidden_dim":  "hidden-dim",
		"seed":        "seed",
		"parallelism": "parallelism",
		"log_level":   "log-level",
		"log_format":  "log-format",
	} {
		mustBind(v, key, flags.Lookup(flag))
	}

	v.SetEnvPrefix("MULTIPOLICY")
	v.AutomaticEnv()

	var load configLoader = func() (*config.Config, zerolog.Logger, error) {
		return loadConfig(v, configFile)
	}
	rootCmd.AddCommand(newServeCmd(v, load), newForwardCmd(load))
	return rootCmd
}

// configLoader resolves the merged configuration once flags are parsed.
type configLoader func() (*config.Config, zerolog.Logger, error)

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// loadConfig reads the optional config file and returns the merged config
// with a logger built from it.
func loadConfig(v *viper.Viper, configFile string) (*config.Config, zerolog.Logger, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
