// Package cli formats API responses for the ruiji command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

const pathWidth = 100

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteProgress writes job progress to w.
func WriteProgress(w io.Writer, p *models.ProgressResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, p)
	}
	fmt.Fprintf(w, "State:     %s\n", p.State)
	if p.Root != "" {
		fmt.Fprintf(w, "Folder:    %s\n", p.Root)
	}
	fmt.Fprintf(w, "Progress:  %d%% (%d/%d, %d failed)\n", p.Progress, p.Processed, p.Total, p.Failed)
	if p.Processing {
		fmt.Fprintf(w, "Time left: %s\n", p.TimeLeft)
	}
	if p.Stale {
		fmt.Fprintln(w, "The folder changed since this job ran; start a new job to refresh.")
	}
	return nil
}

// WriteClusters writes similarity groups to w.
func WriteClusters(w io.Writer, resp *models.ClustersResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d clusters at threshold %.2f\n", resp.Count, resp.Threshold)
	for i, c := range resp.Clusters {
		fmt.Fprintf(w, "\n--- Cluster %d (%d images) ---\n", i+1, len(c))
		for _, img := range c {
			fmt.Fprintf(w, "  %s\n", utils.Truncate(img.RelPath, pathWidth))
		}
	}
	return nil
}

// WriteUnclustered writes the images outside every cluster to w.
func WriteUnclustered(w io.Writer, resp *models.UnclusteredResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%d unclustered images at threshold %.2f (sorted by %s)\n\n", resp.Count, resp.Threshold, resp.SortBy)
	for _, img := range resp.Images {
		fmt.Fprintf(w, "  %s\n", utils.Truncate(img.RelPath, pathWidth))
	}
	return nil
}

// WriteExport writes an export report to w.
func WriteExport(w io.Writer, resp *models.ExportResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s %d copied to %s\n", resp.Status, resp.Copied, resp.ExportFolder)
	if len(resp.Failed) > 0 {
		fmt.Fprintf(w, "%d failed:\n", len(resp.Failed))
		for _, f := range resp.Failed {
			fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Error)
		}
	}
	return nil
}

// WriteFailures writes the files the job could not embed to w.
func WriteFailures(w io.Writer, resp *models.FailuresResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if resp.Count == 0 {
		fmt.Fprintln(w, "No failures.")
		return nil
	}
	fmt.Fprintf(w, "%d files could not be embedded:\n", resp.Count)
	for _, f := range resp.Failures {
		fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Error)
	}
	return nil
}

// WriteHistory writes recent job runs to w.
func WriteHistory(w io.Writer, resp *models.HistoryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "Runs: %d total\n", resp.TotalRuns)
	if resp.DiskUsageBytes != nil {
		fmt.Fprintf(w, "History size: %s\n", FormatBytes(*resp.DiskUsageBytes))
	}
	for _, run := range resp.Runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s  %-9s  %d/%d (%d failed)  %s  %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Status, run.Processed, run.Total, run.Failed, finished,
			utils.Truncate(run.Root, pathWidth))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
