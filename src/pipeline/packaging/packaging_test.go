package packaging_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/everyinstrument/everyinstrument-be/src/pipeline/packaging"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ZipFiles", func() {
	var (
		workDir     string
		archivePath string
	)

	var writeFile = func(name string, content string) string {
		path := filepath.Join(workDir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	var readArchive = func() map[string]string {
		reader, err := zip.OpenReader(archivePath)
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		entries := map[string]string{}
		for _, entry := range reader.File {
			opened, err := entry.Open()
			Expect(err).NotTo(HaveOccurred())

			contents, err := io.ReadAll(opened)
			Expect(err).NotTo(HaveOccurred())
			Expect(opened.Close()).To(Succeed())

			entries[entry.Name] = string(contents)
		}

		return entries
	}

	BeforeEach(func() {
		var err error
		workDir, err = os.MkdirTemp("", "packaging_test")
		Expect(err).NotTo(HaveOccurred())

		archivePath = filepath.Join(workDir, "stems.zip")
	})

	AfterEach(func() {
		_ = os.RemoveAll(workDir)
	})

	It("bundles every file under its base name", func() {
		vocalsPath := writeFile("vocals.mp3", "vocals-content")
		instrumentalPath := writeFile("instrumental.mp3", "instrumental-content")

		err := packaging.ZipFiles(archivePath, []string{vocalsPath, instrumentalPath})
		Expect(err).NotTo(HaveOccurred())

		entries := readArchive()
		Expect(entries).To(HaveLen(2))
		Expect(entries["vocals.mp3"]).To(Equal("vocals-content"))
		Expect(entries["instrumental.mp3"]).To(Equal("instrumental-content"))
	})

	It("drops directory structure from the entry names", func() {
		nestedDir := filepath.Join(workDir, "exports")
		Expect(os.MkdirAll(nestedDir, os.ModePerm)).To(Succeed())

		nestedPath := filepath.Join(nestedDir, "drums.flac")
		Expect(os.WriteFile(nestedPath, []byte("drums-content"), 0o644)).To(Succeed())

		err := packaging.ZipFiles(archivePath, []string{nestedPath})
		Expect(err).NotTo(HaveOccurred())

		entries := readArchive()
		Expect(entries).To(HaveKey("drums.flac"))
	})

	It("fails when an input file does not exist", func() {
		err := packaging.ZipFiles(archivePath, []string{filepath.Join(workDir, "missing.wav")})
		Expect(err).To(HaveOccurred())
	})
})
