package dummy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/ffmpeg"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/residual"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// Transcoder stands in for the ffmpeg transcoding collaborator by copying
// the input bytes verbatim.
type Transcoder struct {
	Unavailable bool
}

var _ ffmpeg.Transcoder = &Transcoder{}

func NewDummyTranscoder() *Transcoder {
	return &Transcoder{}
}

func (t *Transcoder) ConvertToWAV(ctx context.Context, inputPath string, outputPath string) error {
	if t.Unavailable {
		return errors.New("dummy transcoder: unreadable input container")
	}

	contents, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrap(err, "dummy transcoder could not read the input file")
	}

	return os.WriteFile(outputPath, contents, 0o644)
}

// Suppressor stands in for the residual post-filter, marking its output so
// tests can tell the instrumental stem was replaced.
type Suppressor struct {
	Unavailable bool
}

var _ residual.PostFilter = &Suppressor{}

func NewDummySuppressor() *Suppressor {
	return &Suppressor{}
}

func (s *Suppressor) Suppress(instrumentalPath string, vocalsPath string, outputPath string) error {
	if s.Unavailable {
		return errors.New("dummy suppressor: unreadable stem file")
	}

	contents, err := os.ReadFile(instrumentalPath)
	if err != nil {
		return errors.Wrap(err, "dummy suppressor could not read the instrumental stem")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return errors.Wrap(err, "dummy suppressor could not create the output dir")
	}

	cleaned := []byte(string(contents) + "-cleaned")
	return os.WriteFile(outputPath, cleaned, 0o644)
}

// Exporter stands in for the ffmpeg export collaborator by copying stems
// to their targets, recording every export it performed.
type Exporter struct {
	Unavailable bool
	Exported    map[string]string
}

var _ ffmpeg.Exporter = &Exporter{}

func NewDummyExporter() *Exporter {
	return &Exporter{Exported: map[string]string{}}
}

func (e *Exporter) Export(ctx context.Context, inputWAV string, targetPath string, format stementity.OutputFormat) error {
	if e.Unavailable {
		return errors.New("dummy exporter: encoder unavailable")
	}

	contents, err := os.ReadFile(inputWAV)
	if err != nil {
		return errors.Wrap(err, "dummy exporter could not read the stem file")
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), os.ModePerm); err != nil {
		return errors.Wrap(err, "dummy exporter could not create the export dir")
	}

	if err := os.WriteFile(targetPath, contents, 0o644); err != nil {
		return errors.Wrap(err, "dummy exporter could not write the export")
	}

	e.Exported[inputWAV] = targetPath
	return nil
}

// Prober stands in for ffprobe with canned metadata.
type Prober struct {
	Unavailable bool
	Metadata    ffmpeg.Metadata
}

var _ ffmpeg.Prober = &Prober{}

func NewDummyProber() *Prober {
	return &Prober{
		Metadata: ffmpeg.Metadata{
			DurationSeconds: 180.5,
			SampleRate:      44100,
			Channels:        2,
			FormatName:      "MP3 (MPEG audio layer 3)",
		},
	}
}

func (p *Prober) Probe(ctx context.Context, path string) (ffmpeg.Metadata, error) {
	if p.Unavailable {
		return ffmpeg.Metadata{}, errors.New("dummy prober: probe failed")
	}

	return p.Metadata, nil
}
