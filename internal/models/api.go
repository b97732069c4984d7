package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extensions is a file extension allow-list. In JSON it may be given either as a
// list or as a single comma-separated string (".png, .jpg").
type Extensions []string

// UnmarshalJSON accepts a string array, a comma-separated string, or null.
func (e *Extensions) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*e = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("extensions must be a list or a comma-separated string")
	}
	*e = nil
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*e = append(*e, part)
		}
	}
	return nil
}

// JobRequest starts an embedding job over Folder.
type JobRequest struct {
	Folder     string     `json:"folder"`
	Extensions Extensions `json:"extensions,omitempty"`
}

// Validate trims the folder and rejects an empty one.
func (r *JobRequest) Validate() error {
	r.Folder = strings.TrimSpace(r.Folder)
	if r.Folder == "" {
		return fmt.Errorf("folder cannot be empty")
	}
	return nil
}

// JobResponse acknowledges an accepted job.
type JobResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
	Root   string `json:"root"`
}

// ProgressResponse is the progress of the current (or last) job.
type ProgressResponse struct {
	Progress   int    `json:"progress"`
	Processing bool   `json:"processing"`
	TimeLeft   string `json:"time_left"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Failed     int    `json:"failed"`
	State      string `json:"state"`
	Stale      bool   `json:"stale"`
	Root       string `json:"root,omitempty"`
}

// ClustersResponse lists similarity groups at Threshold, smallest first.
type ClustersResponse struct {
	Threshold float64      `json:"threshold"`
	Count     int          `json:"count"`
	Clusters  [][]ImageRef `json:"clusters"`
}

// UnclusteredResponse lists images that belong to no cluster at Threshold.
type UnclusteredResponse struct {
	Threshold float64    `json:"threshold"`
	SortBy    string     `json:"sort_by"`
	Count     int        `json:"count"`
	Images    []ImageRef `json:"images"`
}

// ExportRequest names the images to copy. Entries are absolute paths or paths
// relative to the job root.
type ExportRequest struct {
	Selected []string `json:"selected"`
}

// Validate drops blank entries and rejects an empty selection.
func (r *ExportRequest) Validate() error {
	kept := r.Selected[:0]
	for _, s := range r.Selected {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	r.Selected = kept
	if len(r.Selected) == 0 {
		return fmt.Errorf("no images selected")
	}
	return nil
}

// ExportFailure is a selected file that could not be copied.
type ExportFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ExportResponse reports where the selection was copied.
type ExportResponse struct {
	Status       string          `json:"status"`
	ExportFolder string          `json:"export_folder"`
	Copied       int             `json:"copied"`
	Failed       []ExportFailure `json:"failed"`
}

// FileFailure is a file the current job could not embed.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// FailuresResponse lists per-file failures of the current job.
type FailuresResponse struct {
	Count    int           `json:"count"`
	Failures []FileFailure `json:"failures"`
}

// HistoryResponse lists recent job runs, newest first.
type HistoryResponse struct {
	Runs           []*JobRun `json:"runs"`
	TotalRuns      int64     `json:"total_runs"`
	DiskUsageBytes *int64    `json:"disk_usage_bytes,omitempty"`
}
