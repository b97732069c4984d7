// Package models defines the data structures shared by the job runner, run history,
// HTTP API and CLI.
package models

import "time"

// RunStatus is the lifecycle state of a recorded job run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	// RunCancelled marks a run stopped by shutdown before every file was attempted.
	RunCancelled RunStatus = "cancelled"
)

// JobRun is one embedding job as stored in run history.
type JobRun struct {
	ID         string     `json:"id" db:"id"`
	Root       string     `json:"root" db:"root"`
	Extensions []string   `json:"extensions" db:"extensions"`
	Total      int        `json:"total" db:"total"`
	Processed  int        `json:"processed" db:"processed"`
	Failed     int        `json:"failed" db:"failed"`
	Status     RunStatus  `json:"status" db:"status"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}
