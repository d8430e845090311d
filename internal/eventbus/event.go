// Package eventbus carries progress events from the scheduler and its
// runners to any number of consumers (a dashboard, a log sink, the report
// writer) without ever blocking the producer.
package eventbus

import "time"

// Kind tags the variant of an Event, mirroring the event union from the
// orchestration engine's design.
type Kind string

const (
	KindInitProgress      Kind = "init_progress"
	KindPhaseChange       Kind = "phase_change"
	KindTaskStarted       Kind = "task_started"
	KindTaskProgress      Kind = "task_progress"
	KindTaskCompleted     Kind = "task_completed"
	KindPortDiscovered    Kind = "port_discovered"
	KindHostnameDiscovered Kind = "hostname_discovered"
	KindLogMessage        Kind = "log_message"
	KindSystemStats       Kind = "system_stats"
	KindProgressUpdate    Kind = "progress_update"
	KindShutdown          Kind = "shutdown"
)

// Phase names the coarse stage of a run, used by PhaseChange events.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseExtracting Phase = "extracting"
	PhaseReporting Phase = "reporting"
	PhaseDone      Phase = "done"
)

// LogLevel mirrors hclog's severity levels for LogMessage events, so a log
// sink consumer can forward them straight into an hclog.Logger.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Event is the single typed message carried on the bus. Only the fields
// relevant to Kind are populated; the rest stay zero.
type Event struct {
	Kind      Kind
	Timestamp time.Time

	// InitProgress
	Target     string
	TotalTasks int

	// PhaseChange
	Phase Phase

	// TaskStarted / TaskProgress / TaskCompleted
	TaskID     string
	ToolName   string
	Status     string
	Skipped    bool
	SkipReason string

	// PortDiscovered
	Port    int
	Service string

	// HostnameDiscovered
	Hostname string

	// LogMessage
	Level   LogLevel
	Message string

	// SystemStats
	CPUPercent float64
	MemoryGB   float64

	// ProgressUpdate
	Completed int
	Total     int
}
