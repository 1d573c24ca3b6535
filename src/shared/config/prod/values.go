package prod

import "time"

const (
	KeepLastRuns   = 16
	EngineDeadline = 30 * time.Minute
)
