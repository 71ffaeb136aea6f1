package main

import (
	"fmt"
	"os"

	"tickettriage/cmd/cli/tickets"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func init() {
	// The .env file is optional; the analyze command needs OPENAI_API_KEY
	// from somewhere, but the storage commands run without it.
	_ = godotenv.Load()

	rootCmd.AddGroup(tickets.Group)
	rootCmd.AddCommand(
		tickets.StoreCmd,
		tickets.GetCmd,
		tickets.ListCmd,
		tickets.SearchCmd,
		tickets.DeleteCmd,
		tickets.DeleteAllCmd,
		tickets.StatsCmd,
		tickets.TimelineCmd,
		tickets.ExportCmd,
		tickets.AnalyzeCmd,
	)
}

var rootCmd = &cobra.Command{
	Use:  "tickettriage",
	Long: `Command line utilities for the ticket triage store`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
