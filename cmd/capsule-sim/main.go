package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/filecoin-project/go-state-types/rt"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin"
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/actors/builtin/system"
	"github.com/DianaJonathan/timecapsule/client/config"
)

func main() {
	var (
		configPath    string
		logLevel      string
		actorLogLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "capsule-sim",
		Short: "Time capsule simulator",
		Long:  "Runs capsule stores on a local single-node ledger and drives capsules through their lifecycle.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logging.LevelFromString(logLevel)
			if err != nil {
				return err
			}
			logging.SetAllLoggers(lvl)
			if actorLogLevel == "" {
				return nil
			}
			actorLvl, err := parseActorLogLevel(actorLogLevel)
			if err != nil {
				return err
			}
			builtin.SetActorsLogLevel(actorLvl, capsule.Actor{}, system.Actor{})
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&actorLogLevel, "actor-log-level", "", "Level at which actor methods log, overriding their defaults")

	loadConfig := func() (config.Config, error) {
		if configPath == "" {
			return config.DefaultConfig(), nil
		}
		return config.Load(configPath)
	}

	rootCmd.AddCommand(runCmd(loadConfig))
	rootCmd.AddCommand(soakCmd(loadConfig))
	rootCmd.AddCommand(configCmd(loadConfig))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func parseActorLogLevel(s string) (rt.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return rt.DEBUG, nil
	case "info":
		return rt.INFO, nil
	case "warn":
		return rt.WARN, nil
	case "error":
		return rt.ERROR, nil
	}
	return 0, xerrors.Errorf("unknown actor log level %q", s)
}
