package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jpersist",
	Short: "jpersist writes JSON documents into relational tables",
	Long: `jpersist maps JSON objects onto the tables described by a YAML schema and
writes them, nested relations and collections included, in one transaction per document.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./jpersist.yaml or $HOME/jpersist.yaml)")
	flags.String("driver", "sqlite3", "database driver (sqlite3, sqlite, mysql, postgres, pgx, sqlserver)")
	flags.String("dsn", "", "data source name")
	flags.String("schema", "", "YAML schema describing the record types")
	flags.String("log-level", "info", "log level (silent, error, warn, info, debug)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Int("max-open-conns", 0, "maximum number of open connections (0 is unlimited)")
	flags.Bool("wal", true, "use write-ahead journaling for SQLite databases")
	flags.Duration("slow-threshold", 0, "log statements slower than this (0 disables)")
	flags.String("slow-log", "", "append slow statements to this file instead of the log")
	flags.Int("breaker-threshold", 0, "consecutive failures that stop statements being sent (0 disables)")
	flags.Duration("breaker-reset", 30*time.Second, "time before a stopped circuit lets a trial statement through")
	flags.String("metrics-file", "", "write Prometheus metrics to this file on exit")

	for _, name := range []string{
		"driver", "dsn", "schema", "log-level", "log-format", "max-open-conns", "wal",
		"slow-threshold", "slow-log", "breaker-threshold", "breaker-reset", "metrics-file",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func initConfig() {
	if err := configure(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configure reads the config file, if any, and enables JPERSIST_* environment
// overrides on v.
func configure(v *viper.Viper, file string) error {
	setDefaults(v)
	v.SetEnvPrefix("jpersist")
	v.SetEnvKeyReplacer(envKeys)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName("jpersist")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}
