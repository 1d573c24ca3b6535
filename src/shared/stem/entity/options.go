package stementity

import (
	"encoding/json"

	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
)

type StemsMode string

const (
	InstrumentalMode StemsMode = "instrumental"
	TwoStemsMode     StemsMode = "two_stems"
	FourStemsMode    StemsMode = "four_stems"
)

var stemsModes = map[string]bool{
	string(InstrumentalMode): true,
	string(TwoStemsMode):     true,
	string(FourStemsMode):    true,
}

type Quality string

const (
	FastQuality     Quality = "fast"
	BalancedQuality Quality = "balanced"
	BestQuality     Quality = "best"
)

var qualities = map[string]bool{
	string(FastQuality):     true,
	string(BalancedQuality): true,
	string(BestQuality):     true,
}

type OutputFormat string

const (
	WAVFormat  OutputFormat = "wav"
	MP3Format  OutputFormat = "mp3"
	FLACFormat OutputFormat = "flac"
)

var outputFormats = map[string]bool{
	string(WAVFormat):  true,
	string(MP3Format):  true,
	string(FLACFormat): true,
}

// Options is part of the cache identity alongside the input bytes.
// It is validated once at the boundary - the pipeline assumes a valid record.
type Options struct {
	StemsMode           StemsMode    `json:"stems_mode"`
	Quality             Quality      `json:"quality"`
	OutputFormat        OutputFormat `json:"output_format"`
	UseGPU              bool         `json:"use_gpu"`
	ResidualSuppression bool         `json:"residual_suppression"`
}

func (o Options) Validate() error {
	if !stemsModes[string(o.StemsMode)] {
		return cerr.Field("stems_mode", o.StemsMode).Error("Unrecognized stems mode")
	}

	if !qualities[string(o.Quality)] {
		return cerr.Field("quality", o.Quality).Error("Unrecognized quality tier")
	}

	if !outputFormats[string(o.OutputFormat)] {
		return cerr.Field("output_format", o.OutputFormat).Error("Unrecognized output format")
	}

	return nil
}

func (o Options) IsTwoStem() bool {
	return o.StemsMode == InstrumentalMode || o.StemsMode == TwoStemsMode
}

// CanonicalJSON serializes the options through a map so that keys always
// come out sorted, regardless of field ordering in the struct.
func (o Options) CanonicalJSON() ([]byte, error) {
	fields := map[string]any{
		"stems_mode":           o.StemsMode,
		"quality":              o.Quality,
		"output_format":        o.OutputFormat,
		"use_gpu":              o.UseGPU,
		"residual_suppression": o.ResidualSuppression,
	}

	serialized, err := json.Marshal(fields)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to marshal options")
	}

	return serialized, nil
}

type Request struct {
	FileBytes []byte
	// Filename is only consulted for its extension, it is not part of
	// the cache identity.
	Filename string
	Options  Options
}
