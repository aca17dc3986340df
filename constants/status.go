package constants

// RunStatus is the canonical status for rows in the runs table.
type RunStatus string

// Stable values (store these exact strings in the run-history DB).
const (
	RunStatusRunning RunStatus = "RUNNING" // in progress
	RunStatusOK      RunStatus = "OK"      // completed, all images matched
	RunStatusPartial RunStatus = "PARTIAL" // completed with failures in the report
	RunStatusFailed  RunStatus = "FAILED"  // terminal failure, no output written
)
