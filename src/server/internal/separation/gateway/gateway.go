package separationgateway

import (
	"io"
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/everyinstrument/everyinstrument-be/src/server/internal/errors/api"
	"github.com/everyinstrument/everyinstrument-be/src/server/internal/errors/gateway"
	"github.com/everyinstrument/everyinstrument-be/src/server/internal/lib/request"
	seperrors "github.com/everyinstrument/everyinstrument-be/src/server/internal/separation/errors"
	separationusecase "github.com/everyinstrument/everyinstrument-be/src/server/internal/separation/usecase"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Gateway struct {
	usecase separationusecase.Usecase
}

func NewGateway(usecase separationusecase.Usecase) Gateway {
	return Gateway{
		usecase: usecase,
	}
}

// CreateSeparation accepts a multipart upload and runs it through the
// whole pipeline synchronously. Slow by nature - the engines take minutes
// on real tracks.
func (g Gateway) CreateSeparation(c echo.Context) error {
	ctx := request.Context(c)
	logger := log.WithField("request_id", uuid.NewString())

	fileBytes, filename, apiErr := uploadedFile(c)
	if apiErr != nil {
		return gateway.ErrorResponse(c, apiErr)
	}

	options, apiErr := parseOptions(c)
	if apiErr != nil {
		return gateway.ErrorResponse(c, apiErr)
	}

	logger.WithField("filename", filename).Info("Received separation request")

	view, apiErr := g.usecase.Separate(ctx, stementity.Request{
		FileBytes: fileBytes,
		Filename:  filename,
		Options:   options,
	})
	if apiErr != nil {
		apiErr = api.WrapError(apiErr, "Failed to run separation")
		return gateway.ErrorResponse(c, apiErr)
	}

	return c.JSON(http.StatusOK, view)
}

func (g Gateway) DownloadStem(c echo.Context, cacheKey string, role string) error {
	stemPath, apiErr := g.usecase.StemFilePath(cacheKey, role)
	if apiErr != nil {
		return gateway.ErrorResponse(c, apiErr)
	}

	return c.File(stemPath)
}

func (g Gateway) DownloadArchive(c echo.Context, cacheKey string) error {
	archivePath, apiErr := g.usecase.ArchiveFilePath(cacheKey)
	if apiErr != nil {
		return gateway.ErrorResponse(c, apiErr)
	}

	return c.File(archivePath)
}

func uploadedFile(c echo.Context) ([]byte, string, *api.Error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		err = errors.Wrap(err, "Failed to read multipart file field")
		return nil, "", api.CommitError(err,
			seperrors.BadRequestDataCode,
			"The request is missing an uploaded audio file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		err = errors.Wrap(err, "Failed to open uploaded file")
		return nil, "", api.CommitError(err,
			seperrors.BadRequestDataCode,
			"The uploaded audio file could not be read")
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		err = errors.Wrap(err, "Failed to read uploaded file contents")
		return nil, "", api.CommitError(err,
			seperrors.BadRequestDataCode,
			"The uploaded audio file could not be read")
	}

	if len(fileBytes) == 0 {
		err = errors.New("Uploaded file is empty")
		return nil, "", api.CommitError(err,
			seperrors.BadRequestDataCode,
			"The uploaded audio file is empty")
	}

	return fileBytes, fileHeader.Filename, nil
}

// parseOptions fills in defaults for absent form fields. Unrecognized
// values are left for the usecase's validation so that all configuration
// errors report through the same code.
func parseOptions(c echo.Context) (stementity.Options, *api.Error) {
	options := stementity.Options{
		StemsMode:    stementity.InstrumentalMode,
		Quality:      stementity.BalancedQuality,
		OutputFormat: stementity.WAVFormat,
	}

	if stemsMode := c.FormValue("stems_mode"); stemsMode != "" {
		options.StemsMode = stementity.StemsMode(stemsMode)
	}

	if quality := c.FormValue("quality"); quality != "" {
		options.Quality = stementity.Quality(quality)
	}

	if outputFormat := c.FormValue("output_format"); outputFormat != "" {
		options.OutputFormat = stementity.OutputFormat(outputFormat)
	}

	useGPU, apiErr := parseBoolField(c, "use_gpu")
	if apiErr != nil {
		return stementity.Options{}, apiErr
	}
	options.UseGPU = useGPU

	residualSuppression, apiErr := parseBoolField(c, "residual_suppression")
	if apiErr != nil {
		return stementity.Options{}, apiErr
	}
	options.ResidualSuppression = residualSuppression

	return options, nil
}

func parseBoolField(c echo.Context, fieldName string) (bool, *api.Error) {
	fieldValue := c.FormValue(fieldName)
	if fieldValue == "" {
		return false, nil
	}

	parsed, err := strconv.ParseBool(fieldValue)
	if err != nil {
		err = errors.Wrapf(err, "Failed to parse %s field", fieldName)
		return false, api.CommitError(err,
			seperrors.BadRequestDataCode,
			"A boolean option in the request was not true or false")
	}

	return parsed, nil
}
