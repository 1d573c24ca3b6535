package demucs

import (
	"context"
	"os"
	"os/exec"
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

var qualityModelMap = map[stementity.Quality]string{
	stementity.FastQuality: "htdemucs_6s",
	stementity.BestQuality: "mdx_extra_q",
}

const defaultModel = "htdemucs"

// GPUProbe reports whether a CUDA device is actually usable right now.
// GPU use is a performance hint, not a correctness requirement, so a false
// probe silently downgrades the run to CPU.
type GPUProbe func() bool

func NvidiaGPUProbe() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

func NewInvoker(workingDirStr string, binPath string, executor executor.Executor, gpuProbe GPUProbe) (Invoker, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return Invoker{}, cerr.Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	return Invoker{
		workingDir: workingDir,
		binPath:    binPath,
		executor:   executor,
		gpuProbe:   gpuProbe,
	}, nil
}

type Invoker struct {
	workingDir working_dir.WorkingDir
	binPath    string
	executor   executor.Executor
	gpuProbe   GPUProbe
}

func (d Invoker) Name() string {
	return stementity.DemucsEngine
}

func (d Invoker) Invoke(ctx context.Context, inputWAV string, outputDir string, options stementity.Options) (engine.Output, error) {
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

	model := selectModel(options.Quality)

	args := []string{"-n", model, "-o", absOutputDir}
	if options.IsTwoStem() {
		args = append(args, "--two-stems", "vocals")
	}
	args = append(args, "-d", d.selectDevice(options), absInputWAV)

	logger := log.WithFields(log.Fields{
		"inputWAV":  absInputWAV,
		"outputDir": absOutputDir,
		"model":     model,
	})

	logger.Info("Running demucs command")

	cmd := d.executor.Command(ctx, d.binPath, args...)
	cmd.SetDir(d.workingDir.Root())

	output, err := cmd.CombinedOutput()
	if err != nil {
		return engine.Output{}, pipelineerrors.EngineFailure{
			Engine: d.Name(),
			Detail: exitDetail(output, err),
		}
	}

	logger.Debug(string(output))
	logger.Info("Finished demucs command")

	return engine.Output{RawOutputDir: absOutputDir, Log: string(output)}, nil
}

func (d Invoker) selectDevice(options stementity.Options) string {
	if options.UseGPU && d.gpuProbe() {
		return "cuda"
	}

	return "cpu"
}

func selectModel(quality stementity.Quality) string {
	if model, ok := qualityModelMap[quality]; ok {
		return model
	}

	return defaultModel
}

func exitDetail(output []byte, err error) string {
	detail := strings.TrimSpace(string(output))
	if detail == "" {
		return err.Error()
	}

	return detail
}
