// Package gitexec runs git commands against a target directory and
// returns structured results. Everything higher up in ripcord talks to
// git exclusively through this package; go-git mishandles linked
// worktrees, so all mutating operations shell out to the binary.
package gitexec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Result is the outcome of a single git invocation. It is produced once
// and never mutated. Output holds raw stdout on success and combined
// stdout+stderr diagnostics on failure. ExitCode is -1 when the process
// could not be started at all.
type Result struct {
	Success  bool
	Output   string
	ExitCode int
}

// WorkdirProvider supplies the active workspace path for the convenience
// wrappers. Injecting it (instead of reading a global) lets tests and
// concurrent sandboxes target different trees.
type WorkdirProvider interface {
	WorkingDir() string
}

// WorkdirFunc adapts a plain function to a WorkdirProvider.
type WorkdirFunc func() string

// WorkingDir returns f().
func (f WorkdirFunc) WorkingDir() string { return f() }

// Executor invokes the git binary. A nil pool means unbounded.
type Executor struct {
	workdir WorkdirProvider
	pool    *Pool
}

// New creates an Executor whose convenience wrappers resolve their
// directory through workdir.
func New(workdir WorkdirProvider, pool *Pool) *Executor {
	return &Executor{workdir: workdir, pool: pool}
}

// Run executes git with the given arguments in dir.
func (e *Executor) Run(ctx context.Context, dir string, args ...string) Result {
	return e.RunWithInput(ctx, dir, "", args...)
}

// RunWithInput executes git with the given arguments in dir, feeding
// input to stdin when non-empty. A non-zero exit is an ordinary
// Success=false result, never an escalated error: "this directory is not
// a repository" is an expected outcome for callers.
func (e *Executor) RunWithInput(ctx context.Context, dir, input string, args ...string) Result {
	var res Result
	run := func() error {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = dir

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if input != "" {
			cmd.Stdin = strings.NewReader(input)
		}

		err := cmd.Run()
		if err == nil {
			res = Result{Success: true, Output: stdout.String(), ExitCode: 0}
			return nil
		}

		combined := strings.TrimSpace(stdout.String() + "\n" + stderr.String())
		if exitErr, ok := err.(*exec.ExitError); ok {
			res = Result{Success: false, Output: combined, ExitCode: exitErr.ExitCode()}
			return nil
		}
		// Process never started (git missing, bad dir, cancelled context).
		res = Result{Success: false, Output: err.Error(), ExitCode: -1}
		return nil
	}

	if err := e.pool.Run(ctx, run); err != nil {
		return Result{Success: false, Output: err.Error(), ExitCode: -1}
	}
	return res
}

// CurrentBranch returns the checked-out branch of the active workspace.
// A detached HEAD is reported as a failed result, matching git's own
// "HEAD" placeholder output.
func (e *Executor) CurrentBranch(ctx context.Context) (string, bool) {
	res := e.Run(ctx, e.workdir.WorkingDir(), "rev-parse", "--abbrev-ref", "HEAD")
	branch := strings.TrimSpace(res.Output)
	if !res.Success || branch == "HEAD" {
		return "", false
	}
	return branch, true
}

// IsRepository reports whether the active workspace is inside a git
// work tree.
func (e *Executor) IsRepository(ctx context.Context) bool {
	res := e.Run(ctx, e.workdir.WorkingDir(), "rev-parse", "--is-inside-work-tree")
	return res.Success && strings.TrimSpace(res.Output) == "true"
}

// HasUncommittedChanges reports whether the active workspace has any
// staged, unstaged, or untracked changes.
func (e *Executor) HasUncommittedChanges(ctx context.Context) (bool, bool) {
	res := e.Run(ctx, e.workdir.WorkingDir(), "status", "--porcelain")
	if !res.Success {
		return false, false
	}
	return strings.TrimSpace(res.Output) != "", true
}

// ModifiedFiles returns the paths reported by git status, in status
// order. Rename entries keep only the destination path.
func (e *Executor) ModifiedFiles(ctx context.Context) ([]string, bool) {
	res := e.Run(ctx, e.workdir.WorkingDir(), "status", "--porcelain")
	if !res.Success {
		return nil, false
	}
	return ParseStatusPaths(res.Output), true
}

// ParseStatusPaths extracts file paths from `git status --porcelain`
// output.
func ParseStatusPaths(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		if path != "" {
			paths = append(paths, unquotePath(path))
		}
	}
	return paths
}

// unquotePath strips the quoting git applies to paths with special
// characters. Escaped bytes inside are left as-is; callers only need
// the path as a map key, not for display.
func unquotePath(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		return p[1 : len(p)-1]
	}
	return p
}
