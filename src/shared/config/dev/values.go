package dev

import (
	"os"
	"path"
	"time"
)

const (
	KeepLastRuns   = 4
	EngineDeadline = 30 * time.Minute
)

func CacheDir() string {
	return path.Join(os.TempDir(), "everyinstrument_runs")
}
