// Package lifecycle deals with the fixed stage sequence that a single matrix
// lane steps through:
//
//	before_install -> install -> before_script -> script
//
// followed by exactly one of after_success or after_failure.  Within a lane
// the stages run strictly sequentially; the first non-zero exit aborts the
// remaining sequence.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"

	"github.com/datawire/cilane/pkg/pipeline"
)

// Stage is a named phase in the lane's fixed execution sequence.
type Stage string

const (
	StageBeforeInstall Stage = "before_install"
	StageInstall       Stage = "install"
	StageBeforeScript  Stage = "before_script"
	StageScript        Stage = "script"
	StageAfterSuccess  Stage = "after_success"
	StageAfterFailure  Stage = "after_failure"
)

// Stages returns the main sequence, in execution order.  The after_* hooks
// are not part of the main sequence; Run selects one of them based on how
// `script` went.
func Stages() []Stage {
	return []Stage{StageBeforeInstall, StageInstall, StageBeforeScript, StageScript}
}

// KnownStage maps a descriptor stage name to its Stage; ok is false for
// names that aren't stages.
func KnownStage(name string) (Stage, bool) {
	switch stage := Stage(name); stage {
	case StageBeforeInstall, StageInstall, StageBeforeScript, StageScript,
		StageAfterSuccess, StageAfterFailure:
		return stage, true
	default:
		return "", false
	}
}

// Hooks holds the ordered shell commands for each stage.
type Hooks map[Stage][]string

// HooksFromPipeline pulls the per-stage command lists out of a descriptor.
func HooksFromPipeline(p *pipeline.Pipeline) Hooks {
	return Hooks{
		StageBeforeInstall: p.BeforeInstall,
		StageInstall:       p.Install,
		StageBeforeScript:  p.BeforeScript,
		StageScript:        p.Script,
		StageAfterSuccess:  p.AfterSuccess,
		StageAfterFailure:  p.AfterFailure,
	}
}

// An Invoker runs a lane's shell commands with a fixed environment and
// working directory.
type Invoker struct {
	// Shell is the shell that command strings are handed to, as
	// `$SHELL -c COMMAND`.  Empty means "/bin/sh".
	Shell string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env is the complete environment for every command.  Nil means
	// os.Environ().
	Env []string
	// Stdout and Stderr default to the invoking process's.
	Stdout, Stderr io.Writer
}

func (inv *Invoker) command(ctx context.Context, cmdline string) *dexec.Cmd {
	shell := inv.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := dexec.CommandContext(ctx, shell, "-c", cmdline)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd
}

// A StageError reports which stage and command aborted the lane.
type StageError struct {
	Stage   Stage
	Command string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: command %q: %v", e.Stage, e.Command, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode digs the shell's exit code out of an error chain; -1 if the error
// wasn't a command failure.
func ExitCode(err error) int {
	var exitErr *dexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// runStage runs one stage's commands in order, stopping at the first
// non-zero exit.
func (inv *Invoker) runStage(ctx context.Context, stage Stage, commands []string) error {
	if len(commands) == 0 {
		return nil
	}
	ctx = dlog.WithField(ctx, "stage", string(stage))
	for _, cmdline := range commands {
		if strings.TrimSpace(cmdline) == "" {
			continue
		}
		if err := inv.command(ctx, cmdline).Run(); err != nil {
			return &StageError{
				Stage:   stage,
				Command: cmdline,
				Err:     err,
			}
		}
	}
	return nil
}

// RunOnly runs just the named stage's commands, skipping the rest of the
// sequence and both after_* hooks.
func (inv *Invoker) RunOnly(ctx context.Context, hooks Hooks, stage Stage) error {
	return inv.runStage(ctx, stage, hooks[stage])
}

// Run steps through the main stage sequence, then the appropriate after_*
// hook.
//
// A failure in before_install, install, or before_script aborts the lane
// without running either after_* hook (the lane "errored" before reaching
// its tests).  A failure in script runs after_failure; success runs
// after_success.  Either way the after_* hook's own exit codes are logged
// but do not change the lane's result.
func (inv *Invoker) Run(ctx context.Context, hooks Hooks) error {
	for _, stage := range Stages() {
		err := inv.runStage(ctx, stage, hooks[stage])
		if err == nil {
			continue
		}
		if stage != StageScript {
			return err
		}
		if afterErr := inv.runStage(ctx, StageAfterFailure, hooks[StageAfterFailure]); afterErr != nil {
			dlog.Warnf(ctx, "after_failure hook failed: %v", afterErr)
		}
		return err
	}
	if afterErr := inv.runStage(ctx, StageAfterSuccess, hooks[StageAfterSuccess]); afterErr != nil {
		dlog.Warnf(ctx, "after_success hook failed: %v", afterErr)
	}
	return nil
}
