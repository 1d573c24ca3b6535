package stementity

import "strings"

const (
	DemucsEngine   = "demucs"
	SpleeterEngine = "spleeter"
)

// RunLog is the append-only sequence of human readable stage records for
// one separation run. It is cumulative across engine attempts and is never
// truncated by the pipeline.
type RunLog struct {
	lines []string
}

func (l *RunLog) Append(line string) {
	l.lines = append(l.lines, line)
}

func (l *RunLog) Lines() []string {
	lines := make([]string, len(l.lines))
	copy(lines, l.lines)
	return lines
}

func (l *RunLog) String() string {
	return strings.Join(l.lines, "\n")
}

// Result is produced once per request. Ownership passes to the caller,
// which is responsible for export and eventual workspace eviction.
type Result struct {
	CacheKey string
	Engine   string
	Stems    StemSet
	Log      string
}
