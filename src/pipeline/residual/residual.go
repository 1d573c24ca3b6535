package residual

import (
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
)

const DefaultStrength = 0.2

// PostFilter attenuates vocal bleed left in an instrumental stem by
// subtracting a scaled copy of the vocal stem.
type PostFilter interface {
	Suppress(instrumentalPath string, vocalsPath string, outputPath string) error
}

var _ PostFilter = Suppressor{}

func NewSuppressor(strength float64) Suppressor {
	return Suppressor{strength: strength}
}

type Suppressor struct {
	strength float64
}

// Suppress writes clamp(instrumental - strength*vocals) per sample per
// channel. Both inputs are aligned to their shorter common length - a
// length mismatch is not an error. The output is always 16-bit PCM: this
// is a lossy finishing step, not a format preserving transform.
func (s Suppressor) Suppress(instrumentalPath string, vocalsPath string, outputPath string) error {
	instrumental, format, err := readSamples(instrumentalPath)
	if err != nil {
		return cerr.Field("path", instrumentalPath).
			Wrap(err).Error("Failed to read instrumental stem")
	}

	vocals, _, err := readSamples(vocalsPath)
	if err != nil {
		return cerr.Field("path", vocalsPath).
			Wrap(err).Error("Failed to read vocals stem")
	}

	commonLen := len(instrumental)
	if len(vocals) < commonLen {
		commonLen = len(vocals)
	}

	cleaned := make([]int, commonLen)
	for i := 0; i < commonLen; i++ {
		sample := instrumental[i] - s.strength*vocals[i]
		if sample > 1.0 {
			sample = 1.0
		}
		if sample < -1.0 {
			sample = -1.0
		}

		cleaned[i] = int(math.Round(sample * 32767))
	}

	if err := writePCM16(outputPath, cleaned, format); err != nil {
		return cerr.Field("path", outputPath).
			Wrap(err).Error("Failed to write cleaned instrumental")
	}

	return nil
}

func readSamples(path string) ([]float64, *audio.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, cerr.Wrap(err).Error("Failed to open audio file")
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, nil, cerr.Wrap(err).Error("Failed to decode WAV data")
	}

	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, nil, cerr.Error("WAV file contains no audio data")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}

	scale := float64(int(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, value := range buf.Data {
		samples[i] = float64(value) / scale
	}

	return samples, buf.Format, nil
}

func writePCM16(path string, samples []int, format *audio.Format) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return cerr.Wrap(err).Error("Failed to create output dir")
	}

	file, err := os.Create(path)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to create output file")
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, format.SampleRate, 16, format.NumChannels, 1)

	buf := &audio.IntBuffer{
		Format:         format,
		SourceBitDepth: 16,
		Data:           samples,
	}

	if err := encoder.Write(buf); err != nil {
		return cerr.Wrap(err).Error("Failed to encode WAV data")
	}

	if err := encoder.Close(); err != nil {
		return cerr.Wrap(err).Error("Failed to finalize WAV file")
	}

	return nil
}
