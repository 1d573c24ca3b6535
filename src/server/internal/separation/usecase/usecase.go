package separationusecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/apex/log"
	pipelineerrors "github.com/everyinstrument/everyinstrument-be/src/pipeline/errors"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/ffmpeg"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/orchestrator"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/packaging"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/run_workspace"
	"github.com/everyinstrument/everyinstrument-be/src/server/internal/errors/api"
	seperrors "github.com/everyinstrument/everyinstrument-be/src/server/internal/separation/errors"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

var cacheKeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// SeparationView is the response shape handed back to the UI collaborator:
// download paths rather than filesystem paths, plus the cumulative run log.
type SeparationView struct {
	CacheKey string            `json:"cache_key"`
	Engine   string            `json:"engine"`
	Probe    ffmpeg.Metadata   `json:"probe"`
	Stems    map[string]string `json:"stems"`
	Archive  string            `json:"archive,omitempty"`
	Log      string            `json:"log"`
}

func NewUsecase(
	orchestrator orchestrator.Orchestrator,
	workspaces *run_workspace.Manager,
	prober ffmpeg.Prober,
	exporter ffmpeg.Exporter,
) Usecase {
	return Usecase{
		orchestrator: orchestrator,
		workspaces:   workspaces,
		prober:       prober,
		exporter:     exporter,
	}
}

type Usecase struct {
	orchestrator orchestrator.Orchestrator
	workspaces   *run_workspace.Manager
	prober       ffmpeg.Prober
	exporter     ffmpeg.Exporter
}

// Separate validates the request, runs the pipeline, exports the stems in
// the requested format, and packages multi-stem results into an archive.
func (u Usecase) Separate(ctx context.Context, request stementity.Request) (SeparationView, *api.Error) {
	// Configuration problems surface before any engine work begins.
	if err := request.Options.Validate(); err != nil {
		return SeparationView{}, api.CommitError(err,
			seperrors.UnsupportedConfigurationCode,
			"One of the separation options has an unrecognized value")
	}

	result, err := u.orchestrator.Separate(ctx, request)
	if err != nil {
		if result.Log != "" {
			log.WithField("run_log", result.Log).Warn("Separation run failed")
		}

		return SeparationView{}, commitPipelineError(err)
	}

	workspace, err := u.workspaces.Ensure(result.CacheKey)
	if err != nil {
		return SeparationView{}, api.CommitError(err,
			api.DefaultErrorCode,
			"Something went wrong locating the processing workspace")
	}

	probe := u.probeOriginal(ctx, workspace, request.Filename)

	exports, apiErr := u.exportStems(ctx, workspace, result.Stems, request.Options.OutputFormat)
	if apiErr != nil {
		return SeparationView{}, apiErr
	}

	archive, apiErr := u.packageStems(workspace, exports)
	if apiErr != nil {
		return SeparationView{}, apiErr
	}

	// The just-finished run is exempted so the sweep can never remove the
	// workspace it is about to serve downloads from.
	u.workspaces.EvictStale(result.CacheKey)

	view := SeparationView{
		CacheKey: result.CacheKey,
		Engine:   result.Engine,
		Probe:    probe,
		Stems:    map[string]string{},
		Log:      result.Log,
	}

	for role := range exports {
		view.Stems[string(role)] = fmt.Sprintf("/separations/%s/stems/%s", result.CacheKey, role)
	}

	if archive {
		view.Archive = fmt.Sprintf("/separations/%s/archive", result.CacheKey)
	}

	return view, nil
}

// StemFilePath resolves a download request to the exported stem file.
func (u Usecase) StemFilePath(cacheKey string, role string) (string, *api.Error) {
	if !cacheKeyPattern.MatchString(cacheKey) {
		return "", api.CommitError(
			cerr.Field("cache_key", cacheKey).Error("Malformed cache key"),
			seperrors.BadRequestDataCode,
			"The separation ID is malformed")
	}

	// role comes straight from the URL - only known role names may reach
	// the filesystem matcher
	if !stementity.IsStemRole(role) {
		return "", api.CommitError(
			cerr.Field("role", role).Error("Unrecognized stem role"),
			seperrors.RunNotFoundCode,
			"No separated stem was found for this request")
	}

	workspace, err := u.workspaces.Ensure(cacheKey)
	if err != nil {
		return "", api.CommitError(err,
			api.DefaultErrorCode,
			"Something went wrong locating the processing workspace")
	}

	matches, err := filepath.Glob(filepath.Join(workspace.ExportsDir(), role+".*"))
	if err != nil || len(matches) == 0 {
		return "", api.CommitError(
			cerr.Fields(cerr.F{"cache_key": cacheKey, "role": role}).
				Error("No exported stem for this role"),
			seperrors.RunNotFoundCode,
			"No separated stem was found for this request")
	}

	return matches[0], nil
}

// ArchiveFilePath resolves a download request to the stems archive.
func (u Usecase) ArchiveFilePath(cacheKey string) (string, *api.Error) {
	if !cacheKeyPattern.MatchString(cacheKey) {
		return "", api.CommitError(
			cerr.Field("cache_key", cacheKey).Error("Malformed cache key"),
			seperrors.BadRequestDataCode,
			"The separation ID is malformed")
	}

	workspace, err := u.workspaces.Ensure(cacheKey)
	if err != nil {
		return "", api.CommitError(err,
			api.DefaultErrorCode,
			"Something went wrong locating the processing workspace")
	}

	archivePath := workspace.ArchivePath()
	if !fileExists(archivePath) {
		return "", api.CommitError(
			cerr.Field("cache_key", cacheKey).Error("No archive for this run"),
			seperrors.RunNotFoundCode,
			"No stems archive was found for this request")
	}

	return archivePath, nil
}

func (u Usecase) probeOriginal(ctx context.Context, workspace run_workspace.RunWorkspace, filename string) ffmpeg.Metadata {
	metadata, err := u.prober.Probe(ctx, workspace.OriginalPath(filename))
	if err != nil {
		// informational only, never fatal
		log.WithField("cache_key", workspace.Key()).
			Warn("Could not read audio metadata")
		return ffmpeg.Metadata{}
	}

	return metadata
}

func (u Usecase) exportStems(ctx context.Context, workspace run_workspace.RunWorkspace, stems stementity.StemSet, format stementity.OutputFormat) (map[stementity.StemRole]string, *api.Error) {
	exports := map[stementity.StemRole]string{}

	for role, stemPath := range stems {
		targetPath := workspace.ExportPath(role, format)
		if err := u.exporter.Export(ctx, stemPath, targetPath, format); err != nil {
			return nil, api.CommitError(
				cerr.Fields(cerr.F{"role": role, "format": format}).
					Wrap(err).Error("Failed to export stem"),
				seperrors.ExportFailedCode,
				"The separated stems could not be converted to the requested format")
		}

		exports[role] = targetPath
	}

	return exports, nil
}

func (u Usecase) packageStems(workspace run_workspace.RunWorkspace, exports map[stementity.StemRole]string) (bool, *api.Error) {
	if len(exports) < 2 {
		return false, nil
	}

	exportPaths := make([]string, 0, len(exports))
	for _, exportPath := range exports {
		exportPaths = append(exportPaths, exportPath)
	}

	if err := packaging.ZipFiles(workspace.ArchivePath(), exportPaths); err != nil {
		return false, api.CommitError(
			cerr.Wrap(err).Error("Failed to package stems archive"),
			seperrors.ExportFailedCode,
			"The separated stems could not be packaged into an archive")
	}

	return true, nil
}

func commitPipelineError(err error) *api.Error {
	switch {
	case pipelineerrors.IsPreprocessing(err):
		return api.CommitError(err,
			seperrors.PreprocessingFailedCode,
			"The uploaded file could not be converted for processing. It may not be a supported audio file")

	case pipelineerrors.IsPostprocessing(err):
		return api.CommitError(err,
			seperrors.PostprocessingFailedCode,
			"Separation succeeded but the residual suppression step failed")

	default:
		return api.CommitError(err,
			seperrors.SeparationFailedCode,
			"The separation engines could not process this track")
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
