package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/cache_key"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/engine"
	pipelineerrors "github.com/everyinstrument/everyinstrument-be/src/pipeline/errors"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/ffmpeg"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/residual"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/run_workspace"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/stem_output"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// The working copy is always named input.wav, so every engine's per-track
// output directory is named after its stem.
const workingTrackName = "input"

func NewOrchestrator(
	workspaces *run_workspace.Manager,
	transcoder ffmpeg.Transcoder,
	primary engine.Invoker,
	fallback engine.Invoker,
	suppressor residual.PostFilter,
	engineDeadline time.Duration,
) Orchestrator {
	return Orchestrator{
		workspaces:     workspaces,
		transcoder:     transcoder,
		primary:        primary,
		fallback:       fallback,
		suppressor:     suppressor,
		engineDeadline: engineDeadline,
	}
}

// Orchestrator drives one separation run through its stages: workspace,
// transcode, primary engine attempt, fallback, optional residual
// suppression. It resolves engine failures locally via the fallback
// transition and propagates everything else with stage context attached.
type Orchestrator struct {
	workspaces     *run_workspace.Manager
	transcoder     ffmpeg.Transcoder
	primary        engine.Invoker
	fallback       engine.Invoker
	suppressor     residual.PostFilter
	engineDeadline time.Duration
}

// Separate processes one request to completion. The returned Result always
// carries the cumulative run log once an engine attempt has started, even
// on failure paths, so the caller can surface why a run went the way it
// did.
func (o Orchestrator) Separate(ctx context.Context, request stementity.Request) (stementity.Result, error) {
	runLog := &stementity.RunLog{}

	key, err := cache_key.Derive(request.FileBytes, request.Options)
	if err != nil {
		return stementity.Result{}, cerr.Wrap(err).Error("Failed to derive cache key")
	}

	logger := log.WithField("cache_key", key)

	// Concurrent requests for the same key would otherwise race to write
	// the same workspace.
	unlock := o.workspaces.LockKey(key)
	defer unlock()

	workspace, err := o.workspaces.Ensure(key)
	if err != nil {
		return stementity.Result{}, cerr.Field("cache_key", key).
			Wrap(err).Error("Failed to ensure run workspace")
	}

	if cached, ok := o.loadCachedResult(workspace, runLog); ok {
		logger.Info("Reusing cached separation")
		return cached, nil
	}

	if err := o.preprocess(ctx, workspace, request, runLog); err != nil {
		return o.failedResult(key, runLog), err
	}

	stems, engineUsed, err := o.attemptSeparation(ctx, workspace, request.Options, runLog)
	if err != nil {
		return o.failedResult(key, runLog), err
	}

	stems, err = o.postProcess(workspace, request.Options, stems, runLog)
	if err != nil {
		return o.failedResult(key, runLog), err
	}

	result := stementity.Result{
		CacheKey: key,
		Engine:   engineUsed,
		Stems:    stems,
		Log:      runLog.String(),
	}

	o.writeManifest(workspace, engineUsed, stems, runLog)
	logger.WithField("engine", engineUsed).Info("Separation finished")

	return result, nil
}

// preprocess persists the upload and obtains the normalized working copy.
// Failure here is fatal with no fallback - no engine can operate without
// normalized audio.
func (o Orchestrator) preprocess(ctx context.Context, workspace run_workspace.RunWorkspace, request stementity.Request, runLog *stementity.RunLog) error {
	runLog.Append(fmt.Sprintf("Preparing %s for separation", request.Filename))

	originalPath := workspace.OriginalPath(request.Filename)
	if err := os.WriteFile(originalPath, request.FileBytes, 0o644); err != nil {
		runLog.Append("Failed to store the uploaded file")
		return pipelineerrors.MarkPreprocessing(cerr.Field("original_path", originalPath).
			Wrap(err).Error("Failed to write uploaded file to workspace"))
	}

	if err := o.transcoder.ConvertToWAV(ctx, originalPath, workspace.InputWAVPath()); err != nil {
		runLog.Append(fmt.Sprintf("Transcoding to working format failed: %s", cerr.Message(err)))
		return pipelineerrors.MarkPreprocessing(cerr.Wrap(err).
			Error("Failed to transcode upload to working format"))
	}

	workspace.Touch()
	runLog.Append("Transcoded upload to working format")

	return nil
}

func (o Orchestrator) attemptSeparation(ctx context.Context, workspace run_workspace.RunWorkspace, options stementity.Options, runLog *stementity.RunLog) (stementity.StemSet, string, error) {
	runLog.Append(fmt.Sprintf("Running %s (%s) on %s.wav", o.primary.Name(), options.Quality, workingTrackName))

	stems, primaryErr := o.runEngine(ctx, o.primary, workspace, options, runLog)
	if primaryErr == nil {
		runLog.Append(fmt.Sprintf("%s produced all requested stems", o.primary.Name()))
		return stems, o.primary.Name(), nil
	}

	runLog.Append(fmt.Sprintf("%s failed: %s", o.primary.Name(), cerr.Message(primaryErr)))

	if !pipelineerrors.Recoverable(primaryErr) {
		return nil, "", primaryErr
	}

	// The fallback engine only does two-stem separation. Handing it a
	// four-stem request would silently violate the request, so the
	// original failure propagates unchanged instead.
	if options.StemsMode == stementity.FourStemsMode {
		runLog.Append(fmt.Sprintf("Four-stem request cannot fall back to %s, giving up", o.fallback.Name()))
		return nil, "", primaryErr
	}

	runLog.Append(fmt.Sprintf("Falling back to %s 2-stems", o.fallback.Name()))

	stems, fallbackErr := o.runEngine(ctx, o.fallback, workspace, options, runLog)
	if fallbackErr != nil {
		runLog.Append(fmt.Sprintf("%s failed: %s", o.fallback.Name(), cerr.Message(fallbackErr)))
		return nil, "", cerr.Field("primary_failure", primaryErr.Error()).
			Wrap(fallbackErr).Error("Fallback engine failed after primary failure")
	}

	runLog.Append(fmt.Sprintf("%s produced all requested stems", o.fallback.Name()))
	return stems, o.fallback.Name(), nil
}

func (o Orchestrator) runEngine(ctx context.Context, invoker engine.Invoker, workspace run_workspace.RunWorkspace, options stementity.Options, runLog *stementity.RunLog) (stementity.StemSet, error) {
	if o.engineDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.engineDeadline)
		defer cancel()
	}

	output, err := invoker.Invoke(ctx, workspace.InputWAVPath(), workspace.SeparationDir(invoker.Name()), options)
	if err != nil {
		return nil, err
	}

	if output.Log != "" {
		runLog.Append(output.Log)
	}

	workspace.Touch()

	return stem_output.MapOutputs(output.RawOutputDir, workingTrackName, options.StemsMode, invoker.Name())
}

func (o Orchestrator) postProcess(workspace run_workspace.RunWorkspace, options stementity.Options, stems stementity.StemSet, runLog *stementity.RunLog) (stementity.StemSet, error) {
	if !options.ResidualSuppression {
		return stems, nil
	}

	instrumentalPath, hasInstrumental := stems[stementity.InstrumentalRole]
	vocalsPath, hasVocals := stems[stementity.VocalsRole]
	if !hasInstrumental || !hasVocals {
		return stems, nil
	}

	cleanedPath := workspace.CleanInstrumentalPath()
	if err := o.suppressor.Suppress(instrumentalPath, vocalsPath, cleanedPath); err != nil {
		runLog.Append(fmt.Sprintf("Residual suppression failed: %s", cerr.Message(err)))
		return nil, pipelineerrors.MarkPostprocessing(cerr.Wrap(err).
			Error("Residual suppression failed after successful separation"))
	}

	stems[stementity.InstrumentalRole] = cleanedPath
	runLog.Append("Applied light residual suppression")

	return stems, nil
}

func (o Orchestrator) failedResult(key string, runLog *stementity.RunLog) stementity.Result {
	return stementity.Result{
		CacheKey: key,
		Log:      runLog.String(),
	}
}

// manifest records a completed run so that a later request with the same
// cache key can short-circuit into a cache hit.
type manifest struct {
	Engine string                        `json:"engine"`
	Stems  map[stementity.StemRole]string `json:"stems"`
	Log    []string                      `json:"log"`
}

func (o Orchestrator) loadCachedResult(workspace run_workspace.RunWorkspace, runLog *stementity.RunLog) (stementity.Result, bool) {
	contents, err := os.ReadFile(workspace.ManifestPath())
	if err != nil {
		return stementity.Result{}, false
	}

	stored := manifest{}
	if err := json.Unmarshal(contents, &stored); err != nil {
		return stementity.Result{}, false
	}

	// A manifest referencing deleted or truncated files is stale, not an
	// error - the run is simply recomputed.
	for _, stemPath := range stored.Stems {
		if info, err := os.Stat(stemPath); err != nil || info.IsDir() {
			return stementity.Result{}, false
		}
	}

	for _, line := range stored.Log {
		runLog.Append(line)
	}
	runLog.Append("Reused cached separation results")

	workspace.Touch()

	return stementity.Result{
		CacheKey: workspace.Key(),
		Engine:   stored.Engine,
		Stems:    stementity.StemSet(stored.Stems),
		Log:      runLog.String(),
	}, true
}

func (o Orchestrator) writeManifest(workspace run_workspace.RunWorkspace, engineUsed string, stems stementity.StemSet, runLog *stementity.RunLog) {
	stored := manifest{
		Engine: engineUsed,
		Stems:  map[stementity.StemRole]string(stems),
		Log:    runLog.Lines(),
	}

	contents, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		cerr.Log(cerr.Wrap(err).Error("Failed to marshal run manifest"))
		return
	}

	// Cache reuse is an optimization - failing to record it never fails
	// the run itself.
	if err := os.WriteFile(workspace.ManifestPath(), contents, 0o644); err != nil {
		cerr.Log(cerr.Field("manifest_path", workspace.ManifestPath()).
			Wrap(err).Error("Failed to write run manifest"))
	}
}
