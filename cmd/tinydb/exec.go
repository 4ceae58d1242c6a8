package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinydb-go/tinydb"
)

var execCmd = &cobra.Command{
	Use:   "exec <script.sql>",
	Short: "Run every statement in a SQL script against the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	db, err := tinydb.Open(dbPath, tinydb.WithOptions(openOptions()))
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	for _, stmt := range splitStatements(string(data)) {
		out, err := db.Execute(stmt)
		if err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
		printResult(cmd, out)
	}
	return nil
}

func printResult(cmd *cobra.Command, out any) {
	switch v := out.(type) {
	case []map[string]any:
		for _, row := range v {
			fmt.Fprintln(cmd.OutOrStdout(), row)
		}
	default:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
}
