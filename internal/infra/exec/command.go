package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrTimeout marks a child process that was killed at its deadline. Callers
// match it with errors.Is; for a signer script it means the outcome of the
// broadcast is unknown.
var ErrTimeout = errors.New("command timed out")

// RunSignerScript executes a Node.js signer script with the request payload
// on stdin and extra environment variables appended to the parent
// environment. Returns the script's stdout. On a non-zero exit the returned
// error is the *exec.ExitError, so callers can inspect the exit code.
func RunSignerScript(ctx context.Context, scriptPath string, stdin []byte, extraEnv []string, timeout time.Duration) ([]byte, error) {
	// Validate Node.js is installed
	if err := validateNodeInstalled(); err != nil {
		return nil, err
	}

	// Validate script exists
	absPath, err := filepath.Abs(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve script path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("script not found: %s", absPath)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "node", absPath)
	cmd.Dir = "."
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(os.Environ(), extraEnv...)

	// Output keeps stdout separate; stderr lands in ExitError.Stderr.
	output, err := cmd.Output()

	if ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}

	return output, err
}

// RunCommand executes an arbitrary executable the same way, for signer
// setups that are not Node scripts.
func RunCommand(ctx context.Context, path string, stdin []byte, extraEnv []string, timeout time.Duration) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve command path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("command not found: %s", absPath)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, absPath)
	cmd.Dir = "."
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(os.Environ(), extraEnv...)

	output, err := cmd.Output()

	if ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}

	return output, err
}

// validateNodeInstalled checks if Node.js is available
func validateNodeInstalled() error {
	cmd := exec.Command("node", "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("Node.js is not installed or not in PATH: %w", err)
	}
	return nil
}
