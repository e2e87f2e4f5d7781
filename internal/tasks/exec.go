package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/utkarsh5026/batchrun/pool"
)

// ExitError is the failure of a command that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, stderr)
}

// Exec runs the "command" argument with the optional "args" list, in the
// optional "dir" directory. The process is killed when ctx is done.
//
// It returns a map with exit_code, stdout and stderr. A non-zero exit is
// reported as an *ExitError.
func Exec(ctx context.Context, args pool.Args) (any, error) {
	command, err := args.GetString("command")
	if err != nil {
		return nil, err
	}

	var argv []string
	if args.Has("args") {
		list, err := args.GetSlice("args")
		if err != nil {
			return nil, err
		}
		for _, a := range list {
			argv = append(argv, fmt.Sprint(a))
		}
	}

	cmd := exec.CommandContext(ctx, command, argv...) // #nosec G204 -- running job commands is the point
	if args.Has("dir") {
		dir, err := args.GetString("dir")
		if err != nil {
			return nil, err
		}
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return nil, &ExitError{Command: command, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run %s: %w", command, err)
	}

	return map[string]any{
		"exit_code": 0,
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
	}, nil
}
