package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinydb-go/tinydb"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the database's SHOW STATS row",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := tinydb.Open(dbPath, tinydb.WithOptions(openOptions()))
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	out, err := db.Execute(`SHOW STATS`)
	if err != nil {
		return err
	}
	for _, row := range out.([]map[string]any) {
		for k, v := range row {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", k, v)
		}
	}
	return nil
}
