package application

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/engine"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/engine/demucs"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/engine/spleeter"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/executor"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/ffmpeg"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/orchestrator"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/residual"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/run_workspace"
	separationgateway "github.com/everyinstrument/everyinstrument-be/src/server/internal/separation/gateway"
	separationusecase "github.com/everyinstrument/everyinstrument-be/src/server/internal/separation/usecase"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type HTTPMethod string

const (
	GET  HTTPMethod = "GET"
	POST HTTPMethod = "POST"
)

type App struct {
	echo *echo.Echo
	port string
}

type Config struct {
	CacheDirPath       string
	KeepLastRuns       int
	DemucsBinPath      string
	SpleeterBinPath    string
	FFmpegBinPath      string
	FFprobeBinPath     string
	EngineWorkingDir   string
	EngineDeadline     time.Duration
	ResidualStrength   float64
	CORSAllowedOrigins []string
	Port               string
	Log                bool
}

func NewApp(config Config) App {
	e := echo.New()

	if config.Log {
		e.Use(middleware.Logger())
	}

	corsMiddleware := makeCorsMiddleware(config)

	handleRoute := func(method HTTPMethod, path string, handlerFunc echo.HandlerFunc) {
		params := func() (string, echo.HandlerFunc, echo.MiddlewareFunc) {
			return path, handlerFunc, corsMiddleware
		}

		e.OPTIONS(params())

		switch method {
		case GET:
			e.GET(params())
		case POST:
			e.POST(params())
		default:
			panic("unhandled http method!")
		}
	}

	workspaces := makeWorkspaceManager(config)
	separationGateway := makeSeparationGateway(config, workspaces)

	// stale run dirs from previous processes get swept on boot
	workspaces.EvictStale()

	// health check
	handleRoute(GET, "/health-check", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// separation routes
	handleRoute(POST, "/separations", separationGateway.CreateSeparation)
	handleRoute(GET, "/separations/:key/stems/:role", func(c echo.Context) error {
		cacheKey := c.Param("key")
		role := c.Param("role")
		return separationGateway.DownloadStem(c, cacheKey, role)
	})
	handleRoute(GET, "/separations/:key/archive", func(c echo.Context) error {
		cacheKey := c.Param("key")
		return separationGateway.DownloadArchive(c, cacheKey)
	})

	return App{
		echo: e,
		port: config.Port,
	}
}

func (a *App) Start() error {
	err := a.echo.Start(a.port)
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "Couldn't start echo server")
	}

	return nil
}

func (a *App) Stop() error {
	err := a.echo.Close()
	if err != nil {
		return errors.Wrap(err, "Failed to stop echo server")
	}

	return nil
}

func makeWorkspaceManager(config Config) *run_workspace.Manager {
	workspaces, err := run_workspace.NewManager(config.CacheDirPath, config.KeepLastRuns)
	if err != nil {
		panic(errors.Wrap(err, "Failed to create run workspace manager"))
	}

	return workspaces
}

func makeEngineInvokers(config Config) (engine.Invoker, engine.Invoker) {
	binExecutor := executor.BinaryFileExecutor{}

	demucsInvoker, err := demucs.NewInvoker(
		config.EngineWorkingDir,
		config.DemucsBinPath,
		binExecutor,
		demucs.NvidiaGPUProbe,
	)
	if err != nil {
		panic(errors.Wrap(err, "Failed to create demucs invoker"))
	}

	spleeterInvoker, err := spleeter.NewInvoker(
		config.EngineWorkingDir,
		config.SpleeterBinPath,
		binExecutor,
	)
	if err != nil {
		panic(errors.Wrap(err, "Failed to create spleeter invoker"))
	}

	return demucsInvoker, spleeterInvoker
}

func makeSeparationGateway(config Config, workspaces *run_workspace.Manager) separationgateway.Gateway {
	ffmpegClient := ffmpeg.NewClient(config.FFmpegBinPath, config.FFprobeBinPath, executor.BinaryFileExecutor{})
	demucsInvoker, spleeterInvoker := makeEngineInvokers(config)

	pipelineOrchestrator := orchestrator.NewOrchestrator(
		workspaces,
		ffmpegClient,
		demucsInvoker,
		spleeterInvoker,
		residual.NewSuppressor(config.ResidualStrength),
		config.EngineDeadline,
	)

	separationUsecase := separationusecase.NewUsecase(
		pipelineOrchestrator,
		workspaces,
		ffmpegClient,
		ffmpegClient,
	)

	return separationgateway.NewGateway(separationUsecase)
}

func makeCorsMiddleware(config Config) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.CORSAllowedOrigins,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	})
}
