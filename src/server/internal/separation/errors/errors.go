package seperrors

import (
	"github.com/everyinstrument/everyinstrument-be/src/server/internal/errors/api"
)

const (
	UnsupportedConfigurationCode = api.ErrorCode("unsupported_configuration")
	BadRequestDataCode           = api.ErrorCode("bad_request_data")
	PreprocessingFailedCode      = api.ErrorCode("preprocessing_failed")
	SeparationFailedCode         = api.ErrorCode("separation_failed")
	PostprocessingFailedCode     = api.ErrorCode("postprocessing_failed")
	ExportFailedCode             = api.ErrorCode("export_failed")
	RunNotFoundCode              = api.ErrorCode("run_not_found")
)
