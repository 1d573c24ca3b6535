package packaging

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
)

// ZipFiles bundles the given files into one compressed archive, each entry
// stored under its base filename. Callers only package when there are at
// least two stems - a single stem is downloaded directly.
func ZipFiles(archivePath string, filePaths []string) error {
	archive, err := os.Create(archivePath)
	if err != nil {
		return cerr.Field("archive_path", archivePath).
			Wrap(err).Error("Failed to create archive file")
	}
	defer archive.Close()

	zipWriter := zip.NewWriter(archive)

	for _, filePath := range filePaths {
		if err := addToZip(zipWriter, filePath); err != nil {
			return cerr.Field("file_path", filePath).
				Wrap(err).Error("Failed to add file to archive")
		}
	}

	if err := zipWriter.Close(); err != nil {
		return cerr.Wrap(err).Error("Failed to finalize archive")
	}

	return nil
}

func addToZip(zipWriter *zip.Writer, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return cerr.Wrap(err).Error("Failed to open file")
	}
	defer file.Close()

	entry, err := zipWriter.Create(filepath.Base(filePath))
	if err != nil {
		return cerr.Wrap(err).Error("Failed to create archive entry")
	}

	if _, err := io.Copy(entry, file); err != nil {
		return cerr.Wrap(err).Error("Failed to write archive entry")
	}

	return nil
}
