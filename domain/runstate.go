package domain

import "time"

// RunState is the observed lifecycle status reported to the dashboard.
type RunState string

const (
	RunStateIdle    RunState = "idle"
	RunStateRunning RunState = "running"
	RunStateError   RunState = "error"
)

// WorkerState is the supervisor-side state machine of one worker:
// stopped -> starting -> running -> stopping -> stopped, with error reachable
// from starting or running on abnormal exit.
type WorkerState string

const (
	WorkerStopped  WorkerState = "stopped"
	WorkerStarting WorkerState = "starting"
	WorkerRunning  WorkerState = "running"
	WorkerStopping WorkerState = "stopping"
	WorkerError    WorkerState = "error"
)

// Live reports whether a process may exist in this state.
func (s WorkerState) Live() bool {
	return s == WorkerStarting || s == WorkerRunning || s == WorkerStopping
}

// RunState collapses the worker state into the dashboard vocabulary.
func (s WorkerState) RunState() RunState {
	switch s {
	case WorkerStarting, WorkerRunning, WorkerStopping:
		return RunStateRunning
	case WorkerError:
		return RunStateError
	default:
		return RunStateIdle
	}
}

// WorkerStatus is the last-known status of one account's worker.
type WorkerStatus struct {
	AccountID     string      `json:"account_id"`
	Name          string      `json:"name,omitempty"`
	Username      string      `json:"username,omitempty"`
	Enabled       bool        `json:"enabled"`
	Status        RunState    `json:"status"`
	State         WorkerState `json:"state"`
	PID           int         `json:"pid,omitempty"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	StoppedAt     *time.Time  `json:"stopped_at,omitempty"`
	LastHeartbeat *time.Time  `json:"last_heartbeat,omitempty"`
	Restarts      int         `json:"restarts"`
	Error         string      `json:"error,omitempty"`
}

// WorkerErrorEntry is one entry of a worker's recent error history.
type WorkerErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// FleetSummary is the supervisor's view of every registered account.
type FleetSummary struct {
	Statuses        map[string]WorkerStatus `json:"statuses"`
	TotalAccounts   int                     `json:"total_accounts"`
	EnabledAccounts int                     `json:"enabled_accounts"`
	RunningAccounts int                     `json:"running_accounts"`
	Version         uint64                  `json:"version"`
}

// BatchResult is the per-account outcome of a start-all/stop-all batch.
type BatchResult struct {
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
}
