package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string) (exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands.
// The child shares the standard streams of the current process.
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments and waits for it to exit
func (RealCommandRunner) RunCommand(ctx context.Context, args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Runtime and script are chosen by the user
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return exitError.ExitCode(), nil
		}
		return 0, err
	}

	return 0, nil
}
