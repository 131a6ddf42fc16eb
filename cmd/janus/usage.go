package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/janus/pkg/cli"
	"mercator-hq/janus/pkg/config"
	"mercator-hq/janus/pkg/usage"
)

var usageFlags struct {
	backend   string
	identity  string
	outcome   string
	timeRange string
	limit     int
	offset    int
	format    string
	output    string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Query the usage database",
	Long: `Query and export usage records for accounting and audit.

The usage command reads the same store the proxy writes to, so it can be
run against a live server (SQLite WAL mode permits concurrent readers).

Subcommands:
  query   - List usage records with filters
  report  - Per-identity summary of authorized and denied requests

Examples:
  # List the most recent records
  janus usage query

  # Filter by identity and time range
  janus usage query --identity alice --time-range "2026-08-01T00:00:00Z/2026-08-30T00:00:00Z"

  # Export to CSV
  janus usage query --format csv --output usage.csv

  # Per-identity totals
  janus usage report`,
}

var usageQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List usage records",
	Long: `List usage records with filters, newest first.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-08-01T00:00:00Z/2026-08-30T00:00:00Z"`,
	RunE: queryUsage,
}

var usageReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Per-identity usage summary",
	Long:  `Print authorized and denied request counts per identity.`,
	RunE:  reportUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageQueryCmd, usageReportCmd)

	for _, cmd := range []*cobra.Command{usageQueryCmd, usageReportCmd} {
		cmd.Flags().StringVar(&usageFlags.backend, "backend", "", "backend: sqlite, memory (uses config if not specified)")
		cmd.Flags().StringVar(&usageFlags.identity, "identity", "", "filter by identity")
		cmd.Flags().StringVar(&usageFlags.outcome, "outcome", "", "filter by outcome (authorized, denied)")
		cmd.Flags().StringVar(&usageFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
		cmd.Flags().StringVar(&usageFlags.format, "format", "text", "output format: text, json, csv")
		cmd.Flags().StringVarP(&usageFlags.output, "output", "o", "", "output file (default: stdout)")
	}
	usageQueryCmd.Flags().IntVar(&usageFlags.limit, "limit", 100, "max results")
	usageQueryCmd.Flags().IntVar(&usageFlags.offset, "offset", 0, "pagination offset")
}

// recordTable renders usage records as CSV.
type recordTable []*usage.Record

func (recordTable) CSVHeader() []string {
	return []string{"id", "timestamp", "identity", "method", "path", "outcome", "remote_addr"}
}

func (t recordTable) CSVRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID,
			r.Timestamp.Format(time.RFC3339),
			r.Identity,
			r.Method,
			r.Path,
			string(r.Outcome),
			r.RemoteAddr,
		})
	}
	return rows
}

// summaryTable renders per-identity summaries as CSV.
type summaryTable []*usage.Summary

func (summaryTable) CSVHeader() []string {
	return []string{"identity", "authorized", "denied", "total"}
}

func (t summaryTable) CSVRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{
			s.Identity,
			strconv.FormatInt(s.Authorized, 10),
			strconv.FormatInt(s.Denied, 10),
			strconv.FormatInt(s.Authorized+s.Denied, 10),
		})
	}
	return rows
}

func queryUsage(cmd *cobra.Command, args []string) error {
	store, err := openUsageStoreForQuery()
	if err != nil {
		return err
	}
	defer store.Close()

	query, err := buildUsageQuery()
	if err != nil {
		return err
	}
	query.Limit = usageFlags.limit
	query.Offset = usageFlags.offset

	records, err := store.Query(context.Background(), query)
	if err != nil {
		return cli.NewCommandError("usage", fmt.Errorf("query failed: %w", err))
	}

	output, cleanup, err := openOutput()
	if err != nil {
		return err
	}
	defer cleanup()

	switch cli.OutputFormat(usageFlags.format) {
	case cli.FormatJSON:
		return cli.NewFormatter(cli.FormatJSON).FormatTo(output, records)
	case cli.FormatCSV:
		return cli.NewFormatter(cli.FormatCSV).FormatTo(output, recordTable(records))
	default:
		return printRecordsText(output, records)
	}
}

func reportUsage(cmd *cobra.Command, args []string) error {
	store, err := openUsageStoreForQuery()
	if err != nil {
		return err
	}
	defer store.Close()

	query, err := buildUsageQuery()
	if err != nil {
		return err
	}

	summaries, err := store.Summarize(context.Background(), query)
	if err != nil {
		return cli.NewCommandError("usage", fmt.Errorf("summarize failed: %w", err))
	}

	output, cleanup, err := openOutput()
	if err != nil {
		return err
	}
	defer cleanup()

	switch cli.OutputFormat(usageFlags.format) {
	case cli.FormatJSON:
		return cli.NewFormatter(cli.FormatJSON).FormatTo(output, summaries)
	case cli.FormatCSV:
		return cli.NewFormatter(cli.FormatCSV).FormatTo(output, summaryTable(summaries))
	default:
		return printSummariesText(output, summaries)
	}
}

// openUsageStoreForQuery opens the usage backend selected by flag or config.
func openUsageStoreForQuery() (usage.Storage, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if usageFlags.backend != "" {
		cfg.Usage.Backend = usageFlags.backend
	}
	return openUsageStorage(&cfg.Usage)
}

// buildUsageQuery converts the shared filter flags into a usage.Query.
func buildUsageQuery() (*usage.Query, error) {
	query := &usage.Query{
		Identity: usageFlags.identity,
		Outcome:  usage.Outcome(usageFlags.outcome),
	}

	if usageFlags.timeRange != "" {
		parts := strings.Split(usageFlags.timeRange, "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid time range format (expected: start/end)")
		}

		startTime, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid start time: %w", err)
		}
		query.StartTime = &startTime

		endTime, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid end time: %w", err)
		}
		query.EndTime = &endTime
	}

	return query, nil
}

func openOutput() (*os.File, func(), error) {
	if usageFlags.output == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(usageFlags.output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func printRecordsText(output *os.File, records []*usage.Record) error {
	fmt.Fprintf(output, "Total records: %d\n\n", len(records))

	if len(records) == 0 {
		fmt.Fprintln(output, "No records found.")
		return nil
	}

	for i, r := range records {
		if i > 0 {
			fmt.Fprintln(output)
		}
		fmt.Fprintf(output, "Record ID: %s\n", r.ID)
		fmt.Fprintf(output, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
		if r.Identity != "" {
			fmt.Fprintf(output, "Identity: %s\n", r.Identity)
		}
		fmt.Fprintf(output, "Request: %s %s\n", r.Method, r.Path)
		fmt.Fprintf(output, "Outcome: %s\n", r.Outcome)
		if r.RemoteAddr != "" {
			fmt.Fprintf(output, "Remote: %s\n", r.RemoteAddr)
		}

		if i >= 9 && len(records) > 10 {
			fmt.Fprintf(output, "\n... and %d more records\n", len(records)-10)
			fmt.Fprintln(output, "Use --limit and --offset for pagination.")
			break
		}
	}

	return nil
}

func printSummariesText(output *os.File, summaries []*usage.Summary) error {
	if len(summaries) == 0 {
		fmt.Fprintln(output, "No usage recorded.")
		return nil
	}

	fmt.Fprintf(output, "%-24s %12s %12s %12s\n", "IDENTITY", "AUTHORIZED", "DENIED", "TOTAL")
	var totalAuthorized, totalDenied int64
	for _, s := range summaries {
		identity := s.Identity
		if identity == "" {
			identity = "(unmatched)"
		}
		fmt.Fprintf(output, "%-24s %12d %12d %12d\n", identity, s.Authorized, s.Denied, s.Authorized+s.Denied)
		totalAuthorized += s.Authorized
		totalDenied += s.Denied
	}
	fmt.Fprintf(output, "%-24s %12d %12d %12d\n", "TOTAL", totalAuthorized, totalDenied, totalAuthorized+totalDenied)

	return nil
}
