package main

import (
	"github.com/spf13/cobra"

	"github.com/tinydb-go/tinydb/internal/config"
)

var (
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "tinydb",
	Short: "tinydb - an embedded single-file relational SQL engine",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the database file (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); empty disables logging")
	_ = rootCmd.MarkPersistentFlagRequired("db")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(statsCmd)
}

// openOptions builds the config.Options the current --log-level flag
// describes.
func openOptions() *config.Options {
	return &config.Options{LogLevel: logLevel}
}
