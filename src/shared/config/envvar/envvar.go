package envvar

import (
	"fmt"
	"os"
)

const (
	ENVIRONMENT          = "ENVIRONMENT"
	SEPARATION_CACHE_DIR = "SEPARATION_CACHE_DIR"
	DEMUCS_BIN_PATH      = "DEMUCS_BIN_PATH"
	SPLEETER_BIN_PATH    = "SPLEETER_BIN_PATH"
	FFMPEG_BIN_PATH      = "FFMPEG_BIN_PATH"
	FFPROBE_BIN_PATH     = "FFPROBE_BIN_PATH"
	ALLOWED_FE_ORIGINS   = "ALLOWED_FE_ORIGINS"
)

func MustGet(key string) string {
	val, isSet := os.LookupEnv(key)
	if !isSet {
		panic(fmt.Sprintf("No env variable found for key %s", key))
	}

	if val == "" {
		panic(fmt.Sprintf("Env variable is empty for key %s", key))
	}

	return val
}
