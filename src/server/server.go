package main

import (
	"path"
	"strings"

	"github.com/everyinstrument/everyinstrument-be/src/pipeline/residual"
	"github.com/everyinstrument/everyinstrument-be/src/server/application"
	"github.com/everyinstrument/everyinstrument-be/src/shared/config"
	"github.com/everyinstrument/everyinstrument-be/src/shared/config/dev"
	"github.com/everyinstrument/everyinstrument-be/src/shared/config/envvar"
	"github.com/everyinstrument/everyinstrument-be/src/shared/config/prod"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/env"
)

func main() {
	var appConfig application.Config

	switch env.Get() {
	case env.Production:
		commaSeparatedOrigins := envvar.MustGet(envvar.ALLOWED_FE_ORIGINS)
		allowedOrigins := strings.Split(commaSeparatedOrigins, ",")

		cacheDir := envvar.MustGet(envvar.SEPARATION_CACHE_DIR)

		appConfig = application.Config{
			CacheDirPath:       cacheDir,
			KeepLastRuns:       prod.KeepLastRuns,
			DemucsBinPath:      envvar.MustGet(envvar.DEMUCS_BIN_PATH),
			SpleeterBinPath:    envvar.MustGet(envvar.SPLEETER_BIN_PATH),
			FFmpegBinPath:      envvar.MustGet(envvar.FFMPEG_BIN_PATH),
			FFprobeBinPath:     envvar.MustGet(envvar.FFPROBE_BIN_PATH),
			EngineWorkingDir:   path.Join(cacheDir, "engine_scratch"),
			EngineDeadline:     prod.EngineDeadline,
			ResidualStrength:   residual.DefaultStrength,
			CORSAllowedOrigins: allowedOrigins,
			Port:               ":5000",
			Log:                true,
		}

	case env.Development:
		appConfig = application.Config{
			CacheDirPath:       dev.CacheDir(),
			KeepLastRuns:       dev.KeepLastRuns,
			DemucsBinPath:      config.DemucsPath(),
			SpleeterBinPath:    config.SpleeterPath(),
			FFmpegBinPath:      config.FFmpegPath(),
			FFprobeBinPath:     config.FFprobePath(),
			EngineWorkingDir:   path.Join(dev.CacheDir(), "engine_scratch"),
			EngineDeadline:     dev.EngineDeadline,
			ResidualStrength:   residual.DefaultStrength,
			CORSAllowedOrigins: []string{"*"},
			Port:               ":5000",
			Log:                true,
		}

	default:
		panic("Unexpected environment")
	}

	app := application.NewApp(appConfig)
	if err := app.Start(); err != nil {
		panic(err)
	}
}
