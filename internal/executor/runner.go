package executor

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/vk/pipewright/internal/fsutil"
	"github.com/vk/pipewright/internal/schema"
)

// Invocation is one resolved command handed to a runner. The engine treats
// the command as opaque: it observes only the exit status and the post-run
// state of the declared outputs.
type Invocation struct {
	TaskID  string
	Argv    string
	Kind    schema.ExecKind
	Outputs []string
}

// Result carries what a runner observed about a finished process.
type Result struct {
	ExitCode int
	Output   string // combined stdout and stderr
	Elapsed  time.Duration
}

// Runner executes invocations. Implementations may run locally or hand the
// command to a job-submission backend; the scheduler only needs a
// completion notification with the exit status. Run returns an error only
// for infrastructure failures; a nonzero exit is reported via Result.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ShellRunner executes invocations through `sh -c` on the local host. The
// execution kind tag is accepted but not differentiated locally; a
// cluster-backed Runner would route long commands to its queue instead.
type ShellRunner struct {
	// Shell overrides the interpreter; defaults to "sh".
	Shell string
}

// Run creates the parent directories of every declared output, invokes the
// command, and reports its exit status, combined output and elapsed time.
// The process is killed when ctx is canceled.
func (r *ShellRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	for _, out := range inv.Outputs {
		if err := fsutil.EnsureParentDir(out); err != nil {
			return Result{}, err
		}
	}

	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, shell, "-c", inv.Argv)
	outBytes, err := cmd.CombinedOutput()
	res := Result{
		Output:  string(outBytes),
		Elapsed: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		// Spawn failure, not a process failure.
		return res, err
	}
	return res, nil
}
