// Package tickets holds the CLI commands operating on the ticket store.
package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"tickettriage/internal/ai"
	"tickettriage/internal/models"
	"tickettriage/internal/store"

	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "tickets",
	Title: "Ticket storage",
}

var (
	storageDir string
	limit      int
	inputPath  string
	outputPath string
)

func init() {
	for _, cmd := range []*cobra.Command{
		StoreCmd, GetCmd, ListCmd, SearchCmd, DeleteCmd, DeleteAllCmd, StatsCmd, TimelineCmd, ExportCmd, AnalyzeCmd,
	} {
		cmd.Flags().StringVar(&storageDir, "dir", "ticket_storage", "storage directory")
	}
	ListCmd.Flags().IntVar(&limit, "limit", 50, "maximum number of tickets")
	SearchCmd.Flags().IntVar(&limit, "limit", 10, "maximum number of matches")
	StoreCmd.Flags().StringVarP(&inputPath, "file", "f", "", "path to ticket JSON file (default stdin)")
	AnalyzeCmd.Flags().StringVarP(&inputPath, "file", "f", "", "path to ticket JSON file (default stdin)")
	ExportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default stdout)")
}

func openStore(ctx context.Context) (*store.Store, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	return store.New(ctx, storageDir, logger)
}

func readTicket() (models.Ticket, error) {
	var (
		ticket models.Ticket
		data   []byte
		err    error
	)
	if inputPath == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(inputPath)
	}
	if err != nil {
		return ticket, err
	}
	err = json.Unmarshal(data, &ticket)
	return ticket, err
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Encode error: %v\n", err)
	}
}

var StoreCmd = &cobra.Command{
	Use:     "store",
	GroupID: "tickets",
	Short:   "Store a ticket",
	Long:    "Stores a ticket record (JSON from --file or stdin) with its analysis, questions, and test cases",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		ticket, err := readTicket()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Read ticket error: %v\n", err)
			return
		}
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		id, err := s.Store(ctx, ticket)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Store error: %v\n", err)
			return
		}
		fmt.Println(id)
	},
}

var GetCmd = &cobra.Command{
	Use:     "get [id]",
	GroupID: "tickets",
	Short:   "Fetch a ticket by identity",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		ticket, err := s.Get(ctx, args[0])
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Get error: %v\n", err)
			return
		}
		printJSON(ticket)
	},
}

var ListCmd = &cobra.Command{
	Use:     "list",
	GroupID: "tickets",
	Short:   "List tickets, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		summaries, err := s.List(ctx, limit)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "List error: %v\n", err)
			return
		}
		printJSON(summaries)
	},
}

var SearchCmd = &cobra.Command{
	Use:     "search [query]",
	GroupID: "tickets",
	Short:   "Search tickets by substring",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		matches, err := s.Search(ctx, args[0], limit)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			return
		}
		printJSON(matches)
	},
}

var DeleteCmd = &cobra.Command{
	Use:     "delete [id]",
	GroupID: "tickets",
	Short:   "Delete a ticket and its dependents",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		deleted, err := s.Delete(ctx, args[0])
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Delete error: %v\n", err)
			return
		}
		if !deleted {
			fmt.Println("no such ticket")
			return
		}
		fmt.Println("deleted")
	},
}

var DeleteAllCmd = &cobra.Command{
	Use:     "delete-all",
	GroupID: "tickets",
	Short:   "Delete every ticket, question, and test case",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		if err = s.DeleteAll(ctx); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Delete-all error: %v\n", err)
			return
		}
		fmt.Println("deleted all tickets")
	},
}

var StatsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "tickets",
	Short:   "Show storage statistics",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		stats, err := s.Statistics(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Statistics error: %v\n", err)
			return
		}
		printJSON(stats)
	},
}

var TimelineCmd = &cobra.Command{
	Use:     "timeline",
	GroupID: "tickets",
	Short:   "Show ticket creation counts per day",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		points, err := s.Timeline(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Timeline error: %v\n", err)
			return
		}
		printJSON(points)
	},
}

var ExportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "tickets",
	Short:   "Export the whole store as JSON",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		dump, err := s.Export(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Export error: %v\n", err)
			return
		}
		if outputPath == "" {
			printJSON(dump)
			return
		}
		data, err := json.MarshalIndent(dump, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Encode error: %v\n", err)
			return
		}
		if err = os.WriteFile(outputPath, data, 0o644); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			return
		}
		fmt.Printf("exported %d tickets to %s\n", len(dump.Tickets), outputPath)
	},
}

var AnalyzeCmd = &cobra.Command{
	Use:     "analyze",
	GroupID: "tickets",
	Short:   "Generate analysis for a ticket and store it",
	Long:    "Reads a ticket (JSON from --file or stdin), asks the model for questions, risks, and test cases, and stores the result",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		ticket, err := readTicket()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Read ticket error: %v\n", err)
			return
		}
		client := ai.NewClient()
		analysis, testCases, err := client.Analyze(ctx, ticket.Title, ticket.Description)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Analyze error: %v\n", err)
			return
		}
		ticket.Analysis = analysis
		ticket.TestCases = append(ticket.TestCases, testCases...)
		s, err := openStore(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Open store error: %v\n", err)
			return
		}
		defer func() { _ = s.Close() }()
		id, err := s.Store(ctx, ticket)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Store error: %v\n", err)
			return
		}
		fmt.Println(id)
	},
}
