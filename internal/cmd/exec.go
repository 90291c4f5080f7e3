package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/raphi011/han/internal/log"
)

// RunContext executes a command in dir and returns stderr in the error if it fails.
// If ctx is done before the command finishes, ctx.Err() is returned.
func RunContext(ctx context.Context, dir, name string, args ...string) error {
	_, err := OutputContext(ctx, dir, name, args...)
	return err
}

// OutputContext executes a command in dir and returns stdout, with stderr in
// the error if it fails.
func OutputContext(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return run(ctx, dir, nil, name, args...)
}

// ShellContext runs script with sh -c in dir, with env appended to the
// current environment. Only the exit status matters; output is discarded
// unless the script fails, in which case stderr becomes the error.
func ShellContext(ctx context.Context, dir, script string, env []string) error {
	_, err := run(ctx, dir, env, "sh", "-c", script)
	return err
}

func run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	if len(env) > 0 {
		c.Env = append(os.Environ(), env...)
	}
	var stderr bytes.Buffer
	c.Stderr = &stderr

	done := log.FromContext(ctx).Command(dir, name, args...)
	start := time.Now()
	out, err := c.Output()
	done(time.Since(start))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errMsg := strings.TrimSpace(stderr.String()); errMsg != "" {
			return nil, fmt.Errorf("%s", errMsg)
		}
		return nil, err
	}
	return out, nil
}

// ExitCode extracts the exit status from a command error.
// Returns 0 for nil and -1 when the error is not an exit error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
