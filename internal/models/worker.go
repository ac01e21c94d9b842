package models

import "time"

// WorkerState is the supervisor's view of one camera's worker process.
type WorkerState string

const (
	WorkerStopped  WorkerState = "stopped"
	WorkerStarting WorkerState = "starting"
	WorkerRunning  WorkerState = "running"
	WorkerStopping WorkerState = "stopping"
	WorkerFailed   WorkerState = "failed"
)

func (s WorkerState) String() string {
	return string(s)
}

// Start outcomes.
const (
	StartStarted        = "started"
	StartAlreadyRunning = "already_running"
	StartFailed         = "failed"
	StartError          = "error"
)

// Stop outcomes.
const (
	StopStopped    = "stopped"
	StopNotRunning = "not_running"
)

// StartResult is the structured outcome of a start attempt.
type StartResult struct {
	Status   string  `json:"status"`
	Camera   *Camera `json:"camera,omitempty"`
	ExitCode *int    `json:"exitCode,omitempty"`
	Error    string  `json:"error,omitempty"`

	// Cause classifies failures for callers that need errors.Is.
	Cause error `json:"-"`
}

// StopResult is the structured outcome of a stop.
type StopResult struct {
	Status   string `json:"status"`
	CameraID int    `json:"cameraId,omitempty"`
}

// Worker event kinds.
type WorkerEventKind string

const (
	EventStarted WorkerEventKind = "started"
	EventFailed  WorkerEventKind = "failed"
	EventStopped WorkerEventKind = "stopped"
	EventExited  WorkerEventKind = "exited"  // Exit code 0 without a stop request
	EventCrashed WorkerEventKind = "crashed" // Non-zero exit or signal without a stop request
)

// WorkerEvent is published on every lifecycle transition of a worker.
type WorkerEvent struct {
	CameraID int             `json:"cameraId"`
	Kind     WorkerEventKind `json:"kind"`
	PID      int             `json:"pid,omitempty"`
	ExitCode *int            `json:"exitCode,omitempty"`
	Error    string          `json:"error,omitempty"`
	Time     time.Time       `json:"time"`
}

// WorkerStatus is a snapshot of one camera's worker.
type WorkerStatus struct {
	CameraID     int         `json:"cameraId"`
	State        WorkerState `json:"state"`
	PID          int         `json:"pid,omitempty"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	LastExitCode *int        `json:"lastExitCode,omitempty"`
}

// ProcessStats are live resource figures for a worker process.
type ProcessStats struct {
	CameraID   int       `json:"cameraId"`
	PID        int       `json:"pid"`
	CPUPercent float64   `json:"cpuPercent"`
	RSSBytes   uint64    `json:"rssBytes"`
	NumThreads int32     `json:"numThreads"`
	StartedAt  time.Time `json:"startedAt"`
}
