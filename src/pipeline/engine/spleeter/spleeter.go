package spleeter

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/engine"
	pipelineerrors "github.com/everyinstrument/everyinstrument-be/src/pipeline/errors"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/executor"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/working_dir"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

var _ engine.Invoker = Invoker{}

const twoStemsParam = "spleeter:2stems"

func NewInvoker(workingDirStr string, binPath string, executor executor.Executor) (Invoker, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return Invoker{}, cerr.Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	return Invoker{
		workingDir: workingDir,
		binPath:    binPath,
		executor:   executor,
	}, nil
}

// Invoker runs spleeter, the fallback engine. It only does two-stem
// separation and accepts no quality or GPU tuning, so the options record
// is ignored.
type Invoker struct {
	workingDir working_dir.WorkingDir
	binPath    string
	executor   executor.Executor
}

func (s Invoker) Name() string {
	return stementity.SpleeterEngine
}

func (s Invoker) Invoke(ctx context.Context, inputWAV string, outputDir string, _ stementity.Options) (engine.Output, error) {
	absInputWAV, err := filepath.Abs(inputWAV)
	if err != nil {
		return engine.Output{}, cerr.Wrap(err).Error("Cannot convert input path to absolute format")
	}

	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return engine.Output{}, cerr.Wrap(err).Error("Cannot convert output dir to absolute format")
	}

	if err := os.MkdirAll(absOutputDir, os.ModePerm); err != nil {
		return engine.Output{}, cerr.Field("output_dir", absOutputDir).
			Wrap(err).Error("Failed to create engine output dir")
	}

	args := []string{"separate", "-p", twoStemsParam, "-o", absOutputDir, absInputWAV}

	logger := log.WithFields(log.Fields{
		"inputWAV":  absInputWAV,
		"outputDir": absOutputDir,
	})

	logger.Info("Running spleeter command")

	cmd := s.executor.Command(ctx, s.binPath, args...)
	cmd.SetDir(s.workingDir.Root())

	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}

		return engine.Output{}, pipelineerrors.EngineFailure{
			Engine: s.Name(),
			Detail: detail,
		}
	}

	logger.Debug(string(output))
	logger.Info("Finished spleeter command")

	return engine.Output{RawOutputDir: absOutputDir, Log: string(output)}, nil
}
