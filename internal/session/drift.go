package session

import (
	"context"
	"path/filepath"
	"time"

	"ripcord/internal/gitexec"
	"ripcord/internal/watcher"
)

const driftDebounce = 300 * time.Millisecond

// DriftWatcher observes the primary repository's .git directory while a
// session is active and reports branch switches made outside the
// sandbox. A switched branch would make Accept land the session's
// changes somewhere the user did not review them against, so the
// orchestrator is told as soon as it happens; the watcher itself never
// intervenes.
type DriftWatcher struct {
	exec      *gitexec.Executor
	workspace string
	w         *watcher.Watcher
	onSwitch  func(from, to string)
	branch    string
}

// WatchDrift starts a DriftWatcher for the sandbox's workspace.
// onSwitch is called from a background goroutine with the branch the
// session started on and the branch the workspace now has checked out.
func (s *Sandbox) WatchDrift(ctx context.Context, onSwitch func(from, to string)) (*DriftWatcher, error) {
	branch, _ := s.exec.CurrentBranch(ctx)

	d := &DriftWatcher{
		exec:      s.exec,
		workspace: s.workspace,
		onSwitch:  onSwitch,
		branch:    branch,
	}

	w, err := watcher.New(filepath.Join(s.workspace, ".git"), driftDebounce, d.check)
	if err != nil {
		return nil, err
	}
	d.w = w
	return d, nil
}

// Close stops the watcher.
func (d *DriftWatcher) Close() error {
	return d.w.Close()
}

func (d *DriftWatcher) check(paths []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	branch, ok := d.exec.CurrentBranch(ctx)
	if !ok || branch == d.branch {
		return
	}
	from := d.branch
	d.branch = branch
	d.onSwitch(from, branch)
}
