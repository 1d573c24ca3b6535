package engine

import (
	"context"

	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// Output is what a separation engine leaves behind: the directory tree of
// raw stem files (layout is engine specific) and the combined diagnostic
// output of the process, captured verbatim for the run log.
type Output struct {
	RawOutputDir string
	Log          string
}

// Invoker wraps one external separation engine behind a uniform run and
// collect contract. Success and failure are judged strictly from the
// process exit status - whether the expected stem files actually exist is
// the output mapper's call, not the invoker's.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, inputWAV string, outputDir string, options stementity.Options) (Output, error)
}
