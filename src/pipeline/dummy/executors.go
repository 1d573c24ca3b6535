package dummy

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/executor"
)

var ProcessFailure = errors.New("dummy process exited with status 1")

// DemucsExecutor fabricates demucs output without running anything. It
// mirrors the real layout: <outputDir>/<model>/<track>/<stem>.wav, with
// each stem file's content derived from the input file's content so tests
// can assert provenance. Hung simulates a process that never finishes:
// the command blocks until its context expires, like a real process
// killed by CommandContext.
type DemucsExecutor struct {
	Unavailable  bool
	Hung         bool
	MissingStems []string
	Commands     [][]string
}

var _ executor.Executor = &DemucsExecutor{}

func NewDummyDemucsExecutor() *DemucsExecutor {
	return &DemucsExecutor{}
}

func (d *DemucsExecutor) Command(ctx context.Context, name string, arg ...string) executor.Command {
	d.Commands = append(d.Commands, arg)
	return &demucsCommand{executor: d, ctx: ctx, args: arg}
}

type demucsCommand struct {
	executor *DemucsExecutor
	ctx      context.Context
	args     []string
}

func (d *demucsCommand) SetDir(dir string) {}

func (d *demucsCommand) CombinedOutput() ([]byte, error) {
	if d.executor.Hung {
		<-d.ctx.Done()
		return []byte("dummy demucs: killed"), ProcessFailure
	}

	if d.executor.Unavailable {
		return []byte("dummy demucs: model inference crashed"), ProcessFailure
	}

	outputDir := argValue(d.args, "-o")
	model := argValue(d.args, "-n")
	inputPath := d.args[len(d.args)-1]
	twoStems := hasArg(d.args, "--two-stems")

	stems := []string{"vocals", "no_vocals"}
	if !twoStems {
		stems = []string{"vocals", "drums", "bass", "other"}
	}

	trackDir := filepath.Join(outputDir, model, trackName(inputPath))
	if err := writeStemFiles(trackDir, inputPath, stems, d.executor.MissingStems); err != nil {
		return nil, err
	}

	return []byte("dummy demucs: separated " + trackName(inputPath)), nil
}

// StaticExecutor replays a canned process result, recording every command
// it was asked to run.
type StaticExecutor struct {
	Output   []byte
	Err      error
	Names    []string
	Commands [][]string
}

var _ executor.Executor = &StaticExecutor{}

func NewStaticExecutor(output []byte, err error) *StaticExecutor {
	return &StaticExecutor{Output: output, Err: err}
}

func (s *StaticExecutor) Command(ctx context.Context, name string, arg ...string) executor.Command {
	s.Names = append(s.Names, name)
	s.Commands = append(s.Commands, arg)
	return &staticCommand{executor: s}
}

type staticCommand struct {
	executor *StaticExecutor
}

func (s *staticCommand) SetDir(dir string) {}

func (s *staticCommand) CombinedOutput() ([]byte, error) {
	return s.executor.Output, s.executor.Err
}

// SpleeterExecutor fabricates spleeter output: <outputDir>/<track>/
// {vocals,accompaniment}.wav.
type SpleeterExecutor struct {
	Unavailable  bool
	MissingStems []string
	Commands     [][]string
}

var _ executor.Executor = &SpleeterExecutor{}

func NewDummySpleeterExecutor() *SpleeterExecutor {
	return &SpleeterExecutor{}
}

func (s *SpleeterExecutor) Command(ctx context.Context, name string, arg ...string) executor.Command {
	s.Commands = append(s.Commands, arg)
	return &spleeterCommand{executor: s, args: arg}
}

type spleeterCommand struct {
	executor *SpleeterExecutor
	args     []string
}

func (s *spleeterCommand) SetDir(dir string) {}

func (s *spleeterCommand) CombinedOutput() ([]byte, error) {
	if s.executor.Unavailable {
		return []byte("dummy spleeter: could not load model"), ProcessFailure
	}

	outputDir := argValue(s.args, "-o")
	inputPath := s.args[len(s.args)-1]

	trackDir := filepath.Join(outputDir, trackName(inputPath))
	stems := []string{"vocals", "accompaniment"}
	if err := writeStemFiles(trackDir, inputPath, stems, s.executor.MissingStems); err != nil {
		return nil, err
	}

	return []byte("dummy spleeter: separated " + trackName(inputPath)), nil
}

func writeStemFiles(trackDir string, inputPath string, stems []string, missingStems []string) error {
	missing := map[string]bool{}
	for _, stem := range missingStems {
		missing[stem] = true
	}

	inputContent, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrap(err, "dummy executor could not read the input file")
	}

	if err := os.MkdirAll(trackDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "dummy executor could not create the track dir")
	}

	for _, stem := range stems {
		if missing[stem] {
			continue
		}

		stemContent := []byte(string(inputContent) + "-" + stem)
		stemPath := filepath.Join(trackDir, stem+".wav")
		if err := os.WriteFile(stemPath, stemContent, 0o644); err != nil {
			return errors.Wrap(err, "dummy executor could not write a stem file")
		}
	}

	return nil
}

func trackName(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}

	return ""
}

func hasArg(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}

	return false
}
