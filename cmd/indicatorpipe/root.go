package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nulllvoid/indicatorpipe/config"
)

var (
	cfgFile string
	v       = viper.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "indicatorpipe",
	Short: "Attach a per-country indicator to a tabular dataset",
	Long: `Fetch one World Bank indicator per country key, build an ordered indicator
table, and left-join it onto a delimited dataset whose nationality column
encodes the position of each key in the request list.`,
	SilenceUsage: true,
}

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().String("indicator", defaults.Indicator.Code, "indicator code")
	rootCmd.PersistentFlags().Int("year", defaults.Indicator.Year, "observation year")
	rootCmd.PersistentFlags().StringSlice("keys", defaults.Indicator.Keys, "ISO-3166 alpha-3 keys in dataset encoding order")
	rootCmd.PersistentFlags().Int("workers", defaults.Indicator.MaxWorkers, "concurrent fetches")
	rootCmd.PersistentFlags().String("overrides", "", "CSV of key,value overrides consulted before the API")

	mustBind("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBind("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	mustBind("indicator.code", rootCmd.PersistentFlags().Lookup("indicator"))
	mustBind("indicator.year", rootCmd.PersistentFlags().Lookup("year"))
	mustBind("indicator.keys", rootCmd.PersistentFlags().Lookup("keys"))
	mustBind("indicator.max_workers", rootCmd.PersistentFlags().Lookup("workers"))
	mustBind("indicator.overrides", rootCmd.PersistentFlags().Lookup("overrides"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fetchCmd)
}

func mustBind(key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Errorf("failed to bind flag %s: %w", key, err))
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
