package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diagaudit/diagaudit/config"
	"github.com/diagaudit/diagaudit/report"
	"github.com/diagaudit/diagaudit/storage"
)

var (
	reportFormat string
	reportOutput string
	reportRunID  int64
	reportList   bool
	reportLimit  int
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-render a persisted audit run",
	Long: `Re-render a report from the run history store, without touching any
cloud resources. By default the most recent run for the configured
environment is rendered; a specific run can be selected by ID.

Rendering is deterministic: the same run always produces byte-identical
output, so re-rendered artifacts can be diffed against archived ones.`,
	Example: `  diagaudit report                         # Latest run as JSON to stdout
  diagaudit report --format html -o out.html
  diagaudit report --run 42                # A specific run
  diagaudit report --list                  # Recent runs, newest first`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "json", "Output format: json, html")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write to file instead of stdout")
	reportCmd.Flags().Int64Var(&reportRunID, "run", 0, "Run ID to render (default: latest)")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "List recent runs instead of rendering")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "Maximum runs to list")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Output.History == "" {
		return fmt.Errorf("no history store configured: set output.history in %s", configPath)
	}

	history, err := storage.NewHistoryStore(cfg.Output.History)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() { _ = history.Close() }()

	if reportList {
		return listRuns(history)
	}

	var r *report.Report
	if reportRunID > 0 {
		r, err = history.GetRun(reportRunID)
	} else {
		r, err = history.LastRun(cfg.Environment)
	}
	if err != nil {
		return err
	}

	var data []byte
	switch reportFormat {
	case "json":
		data, err = report.RenderJSON(r)
	case "html":
		data, err = report.RenderHTML(r)
	default:
		return fmt.Errorf("unsupported format %q", reportFormat)
	}
	if err != nil {
		return err
	}

	if reportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(reportOutput, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Report written: %s\n", reportOutput)
	return nil
}

func listRuns(history *storage.HistoryStore) error {
	records := history.ListRuns(reportLimit)
	if len(records) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Printf("%-6s %-12s %-22s %8s %14s\n", "RUN", "ENVIRONMENT", "TIMESTAMP", "TOTAL", "NON-COMPLIANT")
	for _, rec := range records {
		fmt.Printf("%-6d %-12s %-22s %8d %14d\n",
			rec.RunID, rec.Environment, rec.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			rec.Total, rec.NonCompliant)
	}
	return nil
}
