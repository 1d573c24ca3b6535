package stem_output

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	pipelineerrors "github.com/everyinstrument/everyinstrument-be/src/pipeline/errors"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// Engines are not required to use a uniform naming scheme. Spleeter calls
// the non-vocal stem "accompaniment", demucs calls it "no_vocals" - both
// map to the instrumental role.
var roleFileCandidates = map[stementity.StemRole][]string{
	stementity.VocalsRole:       {"vocals.wav"},
	stementity.InstrumentalRole: {"no_vocals.wav", "accompaniment.wav"},
	stementity.DrumsRole:        {"drums.wav"},
	stementity.BassRole:         {"bass.wav"},
	stementity.OtherRole:        {"other.wav"},
}

// MapOutputs normalizes an engine's raw output tree into a canonical
// role to file mapping. Engines nest their per-track directory differently
// (demucs puts it under the model name, spleeter directly under the output
// dir), so the directory named after the track is located by walking the
// tree. Returns IncompleteOutput with the exact missing role names if any
// required file is absent - never a partially populated StemSet.
func MapOutputs(rawOutputDir string, trackName string, mode stementity.StemsMode, engineName string) (stementity.StemSet, error) {
	stemDir, found, err := findStemDir(rawOutputDir, trackName)
	if err != nil {
		return nil, cerr.Field("raw_output_dir", rawOutputDir).
			Wrap(err).Error("Failed to search engine output dir")
	}

	if !found {
		return nil, pipelineerrors.IncompleteOutput{
			Engine:       engineName,
			MissingRoles: stementity.RequiredRoles(mode),
		}
	}

	stems := stementity.StemSet{}
	missing := []stementity.StemRole{}

	for _, role := range stementity.RequiredRoles(mode) {
		path, ok := findRoleFile(stemDir, role)
		if !ok {
			missing = append(missing, role)
			continue
		}

		stems[role] = path
	}

	if len(missing) > 0 {
		return nil, pipelineerrors.IncompleteOutput{
			Engine:       engineName,
			MissingRoles: missing,
		}
	}

	return stems, nil
}

var errStemDirFound = errors.New("stem dir found")

func findStemDir(rawOutputDir string, trackName string) (string, bool, error) {
	stemDir := ""

	err := filepath.WalkDir(rawOutputDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() && entry.Name() == trackName {
			stemDir = path
			return errStemDirFound
		}

		return nil
	})

	if err != nil && !errors.Is(err, errStemDirFound) {
		return "", false, err
	}

	return stemDir, stemDir != "", nil
}

func findRoleFile(stemDir string, role stementity.StemRole) (string, bool) {
	for _, fileName := range roleFileCandidates[role] {
		path := filepath.Join(stemDir, fileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}

	return "", false
}
