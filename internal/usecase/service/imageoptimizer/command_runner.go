package imageoptimizer

import (
	"context"
	"os/exec"
)

type Command struct {
	Name string
	Args []string
}

type CommandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

type ExecCommandRunner struct{}

func (r ExecCommandRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	return exec.CommandContext(ctx, cmd.Name, cmd.Args...).CombinedOutput()
}
