package executor

import (
	"context"
	"os/exec"
)

// Executor abstracts launching subordinate binaries so that tests can
// substitute dummy implementations that fabricate output files.
type Executor interface {
	Command(ctx context.Context, name string, arg ...string) Command
}

type Command interface {
	SetDir(dir string)
	CombinedOutput() ([]byte, error)
}

var _ Executor = BinaryFileExecutor{}

type BinaryFileExecutor struct{}

func (BinaryFileExecutor) Command(ctx context.Context, name string, arg ...string) Command {
	return &binaryFileCommand{
		cmd: exec.CommandContext(ctx, name, arg...),
	}
}

type binaryFileCommand struct {
	cmd *exec.Cmd
}

func (b *binaryFileCommand) SetDir(dir string) {
	b.cmd.Dir = dir
}

func (b *binaryFileCommand) CombinedOutput() ([]byte, error) {
	return b.cmd.CombinedOutput()
}
