package ffmpeg_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/everyinstrument/everyinstrument-be/src/pipeline/dummy"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/ffmpeg"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const probeJSON = `{
	"streams": [
		{"codec_type": "video", "sample_rate": "", "channels": 0},
		{"codec_type": "audio", "sample_rate": "44100", "channels": 2}
	],
	"format": {
		"duration": "180.500000",
		"format_long_name": "MP3 (MPEG audio layer 3)"
	}
}`

var _ = Describe("Client", func() {
	var (
		staticExecutor *dummy.StaticExecutor
		client         ffmpeg.Client
	)

	JustBeforeEach(func() {
		client = ffmpeg.NewClient("/somewhere/ffmpeg", "/somewhere/ffprobe", staticExecutor)
	})

	Describe("ConvertToWAV", func() {
		BeforeEach(func() {
			staticExecutor = dummy.NewStaticExecutor([]byte("conversion ok"), nil)
		})

		It("invokes ffmpeg with float32 output and metadata stripped", func() {
			err := client.ConvertToWAV(context.Background(), "/in/original-upload.mp3", "/in/input.wav")
			Expect(err).NotTo(HaveOccurred())

			Expect(staticExecutor.Names).To(ConsistOf("/somewhere/ffmpeg"))
			Expect(staticExecutor.Commands).To(HaveLen(1))

			command := staticExecutor.Commands[0]
			Expect(command).To(ContainElement("pcm_f32le"))
			Expect(command).To(ContainElement("-map_metadata"))
			Expect(command[len(command)-1]).To(Equal("/in/input.wav"))
		})

		Describe("when the process fails", func() {
			BeforeEach(func() {
				staticExecutor = dummy.NewStaticExecutor([]byte("unknown format"), dummy.ProcessFailure)
			})

			It("surfaces the failure", func() {
				err := client.ConvertToWAV(context.Background(), "/in/original-upload.mp3", "/in/input.wav")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Probe", func() {
		BeforeEach(func() {
			staticExecutor = dummy.NewStaticExecutor([]byte(probeJSON), nil)
		})

		It("parses duration, sample rate, channels and format", func() {
			metadata, err := client.Probe(context.Background(), "/in/original-upload.mp3")
			Expect(err).NotTo(HaveOccurred())

			Expect(metadata.DurationSeconds).To(BeNumerically("~", 180.5, 0.001))
			Expect(metadata.SampleRate).To(Equal(44100))
			Expect(metadata.Channels).To(Equal(2))
			Expect(metadata.FormatName).To(Equal("MP3 (MPEG audio layer 3)"))
		})

		It("asks ffprobe for machine readable output", func() {
			_, err := client.Probe(context.Background(), "/in/original-upload.mp3")
			Expect(err).NotTo(HaveOccurred())

			Expect(staticExecutor.Names).To(ConsistOf("/somewhere/ffprobe"))
			Expect(staticExecutor.Commands[0]).To(ContainElement("json"))
		})

		Describe("with unparseable output", func() {
			BeforeEach(func() {
				staticExecutor = dummy.NewStaticExecutor([]byte("not json"), nil)
			})

			It("fails", func() {
				_, err := client.Probe(context.Background(), "/in/original-upload.mp3")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Export", func() {
		var (
			workDir    string
			inputWAV   string
			targetPath string
		)

		BeforeEach(func() {
			staticExecutor = dummy.NewStaticExecutor([]byte("export ok"), nil)

			var err error
			workDir, err = os.MkdirTemp("", "ffmpeg_export_test")
			Expect(err).NotTo(HaveOccurred())

			inputWAV = filepath.Join(workDir, "instrumental.wav")
			err = os.WriteFile(inputWAV, []byte("cool_jamz"), 0o644)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(workDir)
		})

		It("copies the file for WAV without invoking ffmpeg", func() {
			targetPath = filepath.Join(workDir, "exports", "instrumental.wav")

			err := client.Export(context.Background(), inputWAV, targetPath, stementity.WAVFormat)
			Expect(err).NotTo(HaveOccurred())

			Expect(staticExecutor.Commands).To(BeEmpty())

			contents, err := os.ReadFile(targetPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(contents)).To(Equal("cool_jamz"))
		})

		It("encodes mp3 at a fixed high bitrate", func() {
			targetPath = filepath.Join(workDir, "exports", "instrumental.mp3")

			err := client.Export(context.Background(), inputWAV, targetPath, stementity.MP3Format)
			Expect(err).NotTo(HaveOccurred())

			command := staticExecutor.Commands[0]
			Expect(command).To(ContainElement("libmp3lame"))
			Expect(command).To(ContainElement("320k"))
		})

		It("encodes flac losslessly", func() {
			targetPath = filepath.Join(workDir, "exports", "instrumental.flac")

			err := client.Export(context.Background(), inputWAV, targetPath, stementity.FLACFormat)
			Expect(err).NotTo(HaveOccurred())

			Expect(staticExecutor.Commands[0]).To(ContainElement("flac"))
		})

		It("rejects an unknown format", func() {
			targetPath = filepath.Join(workDir, "exports", "instrumental.ogg")

			err := client.Export(context.Background(), inputWAV, targetPath, stementity.OutputFormat("ogg"))
			Expect(err).To(HaveOccurred())
		})
	})
})
