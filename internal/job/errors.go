package job

import "errors"

var (
	// ErrInvalidPath is returned by Start when the root is not an existing directory.
	ErrInvalidPath = errors.New("invalid folder path")
	// ErrJobRunning is returned by Start while another job is in progress.
	ErrJobRunning = errors.New("a job is already running")
)
