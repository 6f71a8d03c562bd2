package session

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ripcord/internal/gitexec"
	"ripcord/internal/state"
)

// setupWorkspace creates a git repository on branch main with one
// committed file, base.txt.
func setupWorkspace(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	git(t, dir, "init", "-b", "main")
	git(t, dir, "config", "user.name", "Test User")
	git(t, dir, "config", "user.email", "test@example.com")

	if err := os.WriteFile(filepath.Join(dir, "base.txt"), []byte("base content"), 0644); err != nil {
		t.Fatalf("Failed to write base.txt: %v", err)
	}
	git(t, dir, "add", "base.txt")
	git(t, dir, "commit", "-m", "initial commit")
	return dir
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func newTestSandbox(t *testing.T, workspace string) *Sandbox {
	t.Helper()

	store, err := state.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("state.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	e := gitexec.New(gitexec.WorkdirFunc(func() string { return workspace }), nil)
	return NewSandbox(e, store, workspace, t.TempDir())
}

func TestBeginOnNonRepository(t *testing.T) {
	dir := t.TempDir()
	sb := newTestSandbox(t, dir)

	sess, err := sb.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if sess != nil {
		t.Errorf("Expected nil session for a non-repository, got %+v", sess)
	}
}

func TestBeginCreatesShadowBranchAndWorktree(t *testing.T) {
	ws := setupWorkspace(t)
	sb := newTestSandbox(t, ws)

	sess, err := sb.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if sess == nil {
		t.Fatal("Expected a session")
	}
	if sess.WorktreePath == ws {
		t.Fatal("Worktree path must not alias the primary workspace")
	}
	if _, err := os.Stat(filepath.Join(sess.WorktreePath, "base.txt")); err != nil {
		t.Errorf("Expected base.txt in the session worktree: %v", err)
	}
	if branch := git(t, ws, "rev-parse", "--abbrev-ref", "HEAD"); branch != "main" {
		t.Errorf("Expected primary workspace to stay on main, got %q", branch)
	}
}

func TestCommitAccept(t *testing.T) {
	ws := setupWorkspace(t)
	sb := newTestSandbox(t, ws)
	ctx := context.Background()

	sess, err := sb.Begin(ctx)
	if err != nil || sess == nil {
		t.Fatalf("Begin() = %+v, %v", sess, err)
	}

	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		if err := os.WriteFile(filepath.Join(sess.WorktreePath, name), []byte(name), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		if !sb.CommitToolCall(ctx, "write_file", "created "+name) {
			t.Fatalf("CommitToolCall(%s) returned false", name)
		}
	}
	// Modify a tracked file too, so accept produces a true unstaged
	// modification and not only untracked additions.
	if err := os.WriteFile(filepath.Join(sess.WorktreePath, "base.txt"), []byte("changed by session"), 0644); err != nil {
		t.Fatalf("Failed to modify base.txt: %v", err)
	}
	if !sb.CommitToolCall(ctx, "replace", "edited base.txt") {
		t.Fatal("CommitToolCall(base.txt) returned false")
	}

	st, err := sb.Active()
	if err != nil || st == nil {
		t.Fatalf("Active() = %+v, %v", st, err)
	}
	if len(st.ToolCallCommits) != 4 {
		t.Fatalf("Expected 4 tool call commits, got %d", len(st.ToolCallCommits))
	}

	if !sb.Accept(ctx) {
		t.Fatal("Accept() returned false")
	}

	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		if _, err := os.Stat(filepath.Join(ws, name)); err != nil {
			t.Errorf("Expected %s in the primary workspace: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(ws, "base.txt"))
	if err != nil || string(data) != "changed by session" {
		t.Errorf("Expected base.txt updated, got %q, %v", data, err)
	}

	// Nothing staged: the user keeps the commit decision.
	if staged := git(t, ws, "diff", "--cached", "--name-only"); staged != "" {
		t.Errorf("Expected no staged changes, got %q", staged)
	}
	if unstaged := git(t, ws, "diff", "--name-only"); !strings.Contains(unstaged, "base.txt") {
		t.Errorf("Expected base.txt as an unstaged modification, got %q", unstaged)
	}

	if branches := git(t, ws, "branch", "--list", st.ShadowBranch); branches != "" {
		t.Errorf("Expected shadow branch to be deleted, still listed: %q", branches)
	}
	if branch := git(t, ws, "rev-parse", "--abbrev-ref", "HEAD"); branch != "main" {
		t.Errorf("Expected primary workspace back on main, got %q", branch)
	}
	if st, _ := sb.Active(); st != nil {
		t.Error("Expected no active session after accept")
	}
}

func TestRejectLeavesWorkspaceUntouched(t *testing.T) {
	ws := setupWorkspace(t)
	sb := newTestSandbox(t, ws)
	ctx := context.Background()

	// Pre-existing untracked content must survive the session lifecycle.
	if err := os.WriteFile(filepath.Join(ws, "scratch.txt"), []byte("untracked"), 0644); err != nil {
		t.Fatalf("Failed to write scratch.txt: %v", err)
	}

	sess, err := sb.Begin(ctx)
	if err != nil || sess == nil {
		t.Fatalf("Begin() = %+v, %v", sess, err)
	}

	if err := os.WriteFile(filepath.Join(sess.WorktreePath, "discarded.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write discarded.txt: %v", err)
	}
	if !sb.CommitToolCall(ctx, "write_file", "created discarded.txt") {
		t.Fatal("CommitToolCall returned false")
	}

	if !sb.Reject(ctx) {
		t.Fatal("Reject() returned false")
	}

	if _, err := os.Stat(filepath.Join(ws, "discarded.txt")); !os.IsNotExist(err) {
		t.Error("Expected discarded.txt to not exist in the primary workspace")
	}
	if _, err := os.Stat(filepath.Join(ws, "scratch.txt")); err != nil {
		t.Errorf("Expected pre-existing untracked scratch.txt to survive: %v", err)
	}
	if branch := git(t, ws, "rev-parse", "--abbrev-ref", "HEAD"); branch != "main" {
		t.Errorf("Expected primary workspace on main, got %q", branch)
	}
	if _, err := os.Stat(sess.WorktreePath); !os.IsNotExist(err) {
		t.Error("Expected session worktree to be removed")
	}
}

func TestCommitToolCallWithNoChanges(t *testing.T) {
	ws := setupWorkspace(t)
	sb := newTestSandbox(t, ws)
	ctx := context.Background()

	if sess, err := sb.Begin(ctx); err != nil || sess == nil {
		t.Fatalf("Begin() = %+v, %v", sess, err)
	}

	if !sb.CommitToolCall(ctx, "read_file", "read-only call") {
		t.Fatal("Expected CommitToolCall to return true for a no-op tool call")
	}

	st, err := sb.Active()
	if err != nil || st == nil {
		t.Fatalf("Active() = %+v, %v", st, err)
	}
	if len(st.ToolCallCommits) != 0 {
		t.Errorf("Expected no tool call commits, got %d", len(st.ToolCallCommits))
	}
}

func TestBeginSupersedesActiveSession(t *testing.T) {
	ws := setupWorkspace(t)
	sb := newTestSandbox(t, ws)
	ctx := context.Background()

	first, err := sb.Begin(ctx)
	if err != nil || first == nil {
		t.Fatalf("Begin() = %+v, %v", first, err)
	}
	if err := os.WriteFile(filepath.Join(first.WorktreePath, "abandoned.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write abandoned.txt: %v", err)
	}
	if !sb.CommitToolCall(ctx, "write_file", "created abandoned.txt") {
		t.Fatal("CommitToolCall returned false")
	}

	second, err := sb.Begin(ctx)
	if err != nil || second == nil {
		t.Fatalf("Second Begin() = %+v, %v", second, err)
	}
	if second.ID == first.ID {
		t.Error("Expected a fresh session id")
	}

	if _, err := os.Stat(filepath.Join(ws, "abandoned.txt")); !os.IsNotExist(err) {
		t.Error("Expected the superseded session's files to be discarded")
	}
	st, err := sb.Active()
	if err != nil || st == nil {
		t.Fatalf("Active() = %+v, %v", st, err)
	}
	if st.SessionID != second.ID {
		t.Errorf("Expected active session %s, got %s", second.ID, st.SessionID)
	}
}

func TestLifecycleCallsWithoutActiveSession(t *testing.T) {
	ws := setupWorkspace(t)
	sb := newTestSandbox(t, ws)
	ctx := context.Background()

	if sb.Accept(ctx) {
		t.Error("Expected Accept to return false with no active session")
	}
	if sb.Reject(ctx) {
		t.Error("Expected Reject to return false with no active session")
	}
	if sb.CommitToolCall(ctx, "write_file", "no session") {
		t.Error("Expected CommitToolCall to return false with no active session")
	}
}

func TestDriftWatcherReportsBranchSwitch(t *testing.T) {
	ws := setupWorkspace(t)
	sb := newTestSandbox(t, ws)

	switched := make(chan [2]string, 1)
	dw, err := sb.WatchDrift(context.Background(), func(from, to string) {
		select {
		case switched <- [2]string{from, to}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("WatchDrift() error = %v", err)
	}
	defer dw.Close()

	git(t, ws, "checkout", "-b", "feature")

	select {
	case got := <-switched:
		if got[0] != "main" || got[1] != "feature" {
			t.Errorf("Expected switch main -> feature, got %s -> %s", got[0], got[1])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected a drift notification after switching branches")
	}
}
