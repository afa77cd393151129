// Package hooks runs operator-configured shell commands in response to
// ledger events.
package hooks

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Default and max timeout for hook commands.
const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 300 * time.Second
)

// Result holds the output of running a single hook command.
type Result struct {
	Output string
	Err    error
}

// Execute runs a shell command with the given timeout and environment,
// feeding stdin to it. The command is executed via "sh -c".
func Execute(ctx context.Context, command string, timeout time.Duration, stdin []byte, env map[string]string) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(hookCtx, "sh", "-c", command) //nolint:gosec // hook commands come from operator config
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	// Inherit process environment and overlay hook-specific vars.
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())
	if output == "" {
		output = strings.TrimSpace(stderr.String())
	}

	return Result{Output: output, Err: err}
}
