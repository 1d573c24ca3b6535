package ffmpeg

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/executor"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// Transcoder produces the normalized working format every engine operates
// on. Failure here is fatal to a run - no engine can work without it.
type Transcoder interface {
	ConvertToWAV(ctx context.Context, inputPath string, outputPath string) error
}

// Prober inspects audio metadata. Best effort and informational only -
// probe failure is never fatal to the pipeline.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

// Exporter converts a normalized stem into the requested output container.
type Exporter interface {
	Export(ctx context.Context, inputWAV string, targetPath string, format stementity.OutputFormat) error
}

// Metadata fields are all optional - zero values mean unknown.
type Metadata struct {
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	Channels        int     `json:"channels,omitempty"`
	FormatName      string  `json:"format_name,omitempty"`
}

var _ Transcoder = Client{}
var _ Prober = Client{}
var _ Exporter = Client{}

func NewClient(ffmpegBinPath string, ffprobeBinPath string, executor executor.Executor) Client {
	return Client{
		ffmpegBinPath:  ffmpegBinPath,
		ffprobeBinPath: ffprobeBinPath,
		executor:       executor,
	}
}

type Client struct {
	ffmpegBinPath  string
	ffprobeBinPath string
	executor       executor.Executor
}

// ConvertToWAV transcodes to float32 WAV with all container metadata
// stripped.
func (c Client) ConvertToWAV(ctx context.Context, inputPath string, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_f32le",
		"-map_metadata", "-1",
		outputPath,
	}

	log.WithFields(log.Fields{
		"inputPath":  inputPath,
		"outputPath": outputPath,
	}).Info("Transcoding to working format")

	output, err := c.executor.Command(ctx, c.ffmpegBinPath, args...).CombinedOutput()
	if err != nil {
		return cerr.Field("ffmpeg_output", strings.TrimSpace(string(output))).
			Wrap(err).Error("ffmpeg conversion failed")
	}

	return nil
}

func (c Client) Probe(ctx context.Context, path string) (Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	output, err := c.executor.Command(ctx, c.ffprobeBinPath, args...).CombinedOutput()
	if err != nil {
		return Metadata{}, cerr.Field("ffprobe_output", strings.TrimSpace(string(output))).
			Wrap(err).Error("ffprobe failed")
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (Metadata, error) {
	probed := struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
		Format struct {
			Duration       string `json:"duration"`
			FormatLongName string `json:"format_long_name"`
		} `json:"format"`
	}{}

	if err := json.Unmarshal(output, &probed); err != nil {
		return Metadata{}, cerr.Wrap(err).Error("Failed to parse ffprobe output")
	}

	metadata := Metadata{FormatName: probed.Format.FormatLongName}

	if duration, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		metadata.DurationSeconds = duration
	}

	for _, stream := range probed.Streams {
		if stream.CodecType != "audio" {
			continue
		}

		metadata.Channels = stream.Channels
		if sampleRate, err := strconv.Atoi(stream.SampleRate); err == nil {
			metadata.SampleRate = sampleRate
		}
		break
	}

	return metadata, nil
}

// Export writes the stem in the requested container. WAV is a byte
// identical copy, mp3 and flac are transcodes at a fixed quality target.
func (c Client) Export(ctx context.Context, inputWAV string, targetPath string, format stementity.OutputFormat) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), os.ModePerm); err != nil {
		return cerr.Wrap(err).Error("Failed to create export dir")
	}

	var args []string

	switch format {
	case stementity.WAVFormat:
		return copyFile(inputWAV, targetPath)

	case stementity.MP3Format:
		args = []string{"-y", "-i", inputWAV, "-vn", "-codec:a", "libmp3lame", "-b:a", "320k", targetPath}

	case stementity.FLACFormat:
		args = []string{"-y", "-i", inputWAV, "-vn", "-codec:a", "flac", targetPath}

	default:
		return cerr.Field("format", format).Error("Unsupported output format")
	}

	output, err := c.executor.Command(ctx, c.ffmpegBinPath, args...).CombinedOutput()
	if err != nil {
		return cerr.Field("ffmpeg_output", strings.TrimSpace(string(output))).
			Wrap(err).Error("ffmpeg export failed")
	}

	return nil
}

func copyFile(sourcePath string, targetPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to open source file")
	}
	defer source.Close()

	target, err := os.Create(targetPath)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to create target file")
	}
	defer target.Close()

	if _, err := io.Copy(target, source); err != nil {
		return cerr.Wrap(err).Error("Failed to copy file contents")
	}

	return nil
}
