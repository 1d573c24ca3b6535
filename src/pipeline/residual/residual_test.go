package residual_test

import (
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/everyinstrument/everyinstrument-be/src/pipeline/residual"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Suppressor", func() {
	var (
		workDir          string
		instrumentalPath string
		vocalsPath       string
		outputPath       string
	)

	var writeWAV = func(path string, samples []float64) {
		file, err := os.Create(path)
		Expect(err).NotTo(HaveOccurred())
		defer file.Close()

		data := make([]int, len(samples))
		for i, sample := range samples {
			data[i] = int(math.Round(sample * 32767))
		}

		format := &audio.Format{SampleRate: 44100, NumChannels: 1}
		encoder := wav.NewEncoder(file, format.SampleRate, 16, format.NumChannels, 1)
		err = encoder.Write(&audio.IntBuffer{
			Format:         format,
			SourceBitDepth: 16,
			Data:           data,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(encoder.Close()).To(Succeed())
	}

	var readWAV = func(path string) []float64 {
		file, err := os.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer file.Close()

		decoder := wav.NewDecoder(file)
		buf, err := decoder.FullPCMBuffer()
		Expect(err).NotTo(HaveOccurred())
		Expect(buf).NotTo(BeNil())

		samples := make([]float64, len(buf.Data))
		for i, value := range buf.Data {
			samples[i] = float64(value) / 32768.0
		}
		return samples
	}

	BeforeEach(func() {
		var err error
		workDir, err = os.MkdirTemp("", "residual_test")
		Expect(err).NotTo(HaveOccurred())

		instrumentalPath = filepath.Join(workDir, "instrumental.wav")
		vocalsPath = filepath.Join(workDir, "vocals.wav")
		outputPath = filepath.Join(workDir, "post", "instrumental_clean.wav")
	})

	AfterEach(func() {
		_ = os.RemoveAll(workDir)
	})

	It("subtracts the scaled vocal signal from the instrumental", func() {
		writeWAV(instrumentalPath, []float64{0.5, 0.5, 0.5})
		writeWAV(vocalsPath, []float64{1.0, 0.0, -1.0})

		suppressor := residual.NewSuppressor(0.2)
		Expect(suppressor.Suppress(instrumentalPath, vocalsPath, outputPath)).To(Succeed())

		cleaned := readWAV(outputPath)
		Expect(cleaned).To(HaveLen(3))
		Expect(cleaned[0]).To(BeNumerically("~", 0.3, 0.001))
		Expect(cleaned[1]).To(BeNumerically("~", 0.5, 0.001))
		Expect(cleaned[2]).To(BeNumerically("~", 0.7, 0.001))
	})

	It("clamps the result into valid sample range", func() {
		writeWAV(instrumentalPath, []float64{-0.9, 0.9})
		writeWAV(vocalsPath, []float64{1.0, -1.0})

		suppressor := residual.NewSuppressor(0.5)
		Expect(suppressor.Suppress(instrumentalPath, vocalsPath, outputPath)).To(Succeed())

		cleaned := readWAV(outputPath)
		Expect(cleaned[0]).To(BeNumerically("~", -1.0, 0.001))
		Expect(cleaned[1]).To(BeNumerically("~", 1.0, 0.001))
	})

	It("truncates to the shorter of the two stems", func() {
		writeWAV(instrumentalPath, []float64{0.1, 0.2, 0.3, 0.4})
		writeWAV(vocalsPath, []float64{0.0, 0.0})

		suppressor := residual.NewSuppressor(residual.DefaultStrength)
		Expect(suppressor.Suppress(instrumentalPath, vocalsPath, outputPath)).To(Succeed())

		cleaned := readWAV(outputPath)
		Expect(cleaned).To(HaveLen(2))
	})

	It("leaves the instrumental untouched at zero strength", func() {
		writeWAV(instrumentalPath, []float64{0.25, -0.25})
		writeWAV(vocalsPath, []float64{1.0, 1.0})

		suppressor := residual.NewSuppressor(0)
		Expect(suppressor.Suppress(instrumentalPath, vocalsPath, outputPath)).To(Succeed())

		cleaned := readWAV(outputPath)
		Expect(cleaned[0]).To(BeNumerically("~", 0.25, 0.001))
		Expect(cleaned[1]).To(BeNumerically("~", -0.25, 0.001))
	})

	It("fails on a missing stem file", func() {
		writeWAV(instrumentalPath, []float64{0.1})

		suppressor := residual.NewSuppressor(residual.DefaultStrength)
		err := suppressor.Suppress(instrumentalPath, vocalsPath, outputPath)
		Expect(err).To(HaveOccurred())
	})

	It("fails on a file that is not WAV data", func() {
		writeWAV(instrumentalPath, []float64{0.1})
		Expect(os.WriteFile(vocalsPath, []byte("not a wav"), 0o644)).To(Succeed())

		suppressor := residual.NewSuppressor(residual.DefaultStrength)
		err := suppressor.Suppress(instrumentalPath, vocalsPath, outputPath)
		Expect(err).To(HaveOccurred())
	})
})
