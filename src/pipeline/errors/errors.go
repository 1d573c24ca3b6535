package pipelineerrors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// EngineFailure is an engine invocation judged failed by its exit status
// (or by deadline expiry). Recoverable via fallback unless the request is
// for four stems.
type EngineFailure struct {
	Engine string
	Detail string
}

func (e EngineFailure) Error() string {
	return fmt.Sprintf("Engine %s failed: %s", e.Engine, e.Detail)
}

// IncompleteOutput is an engine run that exited cleanly but did not produce
// every stem file the requested mode demands. Same fallback eligibility as
// EngineFailure.
type IncompleteOutput struct {
	Engine       string
	MissingRoles []stementity.StemRole
}

func (e IncompleteOutput) Error() string {
	roles := make([]string, 0, len(e.MissingRoles))
	for _, role := range e.MissingRoles {
		roles = append(roles, string(role))
	}

	return fmt.Sprintf("Engine %s output is missing stems: %s", e.Engine, strings.Join(roles, ", "))
}

// Recoverable reports whether the error can be resolved by the fallback
// transition. Preprocessing and postprocessing failures are never
// recoverable.
func Recoverable(err error) bool {
	engineFailure := EngineFailure{}
	incompleteOutput := IncompleteOutput{}
	return errors.As(err, &engineFailure) || errors.As(err, &incompleteOutput)
}

var preprocessingMark = errors.New("preprocessing failure")
var postprocessingMark = errors.New("postprocessing failure")

func MarkPreprocessing(err error) error {
	return errors.Mark(err, preprocessingMark)
}

func IsPreprocessing(err error) bool {
	return errors.Is(err, preprocessingMark)
}

func MarkPostprocessing(err error) error {
	return errors.Mark(err, postprocessingMark)
}

func IsPostprocessing(err error) bool {
	return errors.Is(err, postprocessingMark)
}
