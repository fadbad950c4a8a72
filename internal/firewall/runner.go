package firewall

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Runner executes an external command. A non-zero exit status is reported
// through Result.ExitCode, not as an error; err is only set when the command
// could not be started or was interrupted.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type execRunner struct {
	useSudo bool
}

// NewExecRunner returns a Runner backed by os/exec. With useSudo every command
// is prefixed with "sudo -n" so a missing sudoers entry fails instead of prompting.
func NewExecRunner(useSudo bool) Runner {
	return &execRunner{useSudo: useSudo}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if r.useSudo {
		args = append([]string{"-n", name}, args...)
		name = "sudo"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, err
}

func commandString(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
