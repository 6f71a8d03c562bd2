// Package session isolates a bounded sequence of tool-call mutations on
// a disposable branch of the user's own repository, checked out in a
// linked worktree, behind a single accept/reject decision. The primary
// workspace's uncommitted and untracked content is never read, moved,
// or deleted by session lifecycle operations.
package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ripcord/internal/gitexec"
	"ripcord/internal/state"
)

const branchPrefix = "ripcord/session-"

// Session identifies an active sandbox: tool calls write into
// WorktreePath, never into the primary workspace.
type Session struct {
	ID           string
	WorktreePath string
}

// Sandbox manages the shadow branch, linked worktree, and persisted
// state for one workspace. The executor's workdir provider must resolve
// to the same workspace the Sandbox was created for.
type Sandbox struct {
	exec         *gitexec.Executor
	store        *state.Store
	workspace    string
	worktreeRoot string
	mu           sync.Mutex
}

// NewSandbox creates a Sandbox for workspace, placing linked worktrees
// under worktreeRoot.
func NewSandbox(exec *gitexec.Executor, store *state.Store, workspace, worktreeRoot string) *Sandbox {
	if abs, err := filepath.Abs(workspace); err == nil {
		workspace = abs
	}
	return &Sandbox{exec: exec, store: store, workspace: workspace, worktreeRoot: worktreeRoot}
}

// Begin starts a new session. It returns (nil, nil) when the workspace
// is not a git repository: sandboxing is an optional capability and its
// absence is not an error. Beginning while another session is active
// implicitly rejects the active one first, so Begin always lands in a
// clean active state with a fresh session id.
func (s *Sandbox) Begin(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exec.IsRepository(ctx) {
		return nil, nil
	}

	if active, err := s.store.ActiveForWorkspace(s.workspace); err != nil {
		return nil, fmt.Errorf("look up active session: %w", err)
	} else if active != nil {
		s.discard(ctx, active)
	}

	branch, ok := s.exec.CurrentBranch(ctx)
	if !ok {
		return nil, fmt.Errorf("workspace %s has no checked-out branch", s.workspace)
	}
	head := s.exec.Run(ctx, s.workspace, "rev-parse", "HEAD")
	if !head.Success {
		return nil, fmt.Errorf("resolve HEAD: %s", head.Output)
	}

	id := uuid.New().String()
	shadow := branchPrefix + id[:8]
	worktree := filepath.Join(s.worktreeRoot, id)

	if err := os.MkdirAll(s.worktreeRoot, 0755); err != nil {
		return nil, fmt.Errorf("create worktree root: %w", err)
	}

	if res := s.exec.Run(ctx, s.workspace, "worktree", "add", "-b", shadow, worktree, "HEAD"); !res.Success {
		return nil, fmt.Errorf("create session worktree: %s", res.Output)
	}

	st := &state.SessionState{
		SessionID:    id,
		Workspace:    s.workspace,
		WorktreePath: worktree,
		ShadowBranch: shadow,
		BaseBranch:   branch,
		BaseRef:      strings.TrimSpace(head.Output),
		CreatedAt:    time.Now(),
	}
	if err := s.store.Save(st); err != nil {
		s.discard(ctx, st)
		return nil, fmt.Errorf("persist session state: %w", err)
	}

	return &Session{ID: id, WorktreePath: worktree}, nil
}

// CommitToolCall stages and commits everything currently in the session
// worktree. A tool call that changed nothing is not a failure: it
// returns true without appending a commit record.
func (s *Sandbox) CommitToolCall(ctx context.Context, toolName, description string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.active()
	if st == nil {
		return false
	}

	if res := s.exec.Run(ctx, st.WorktreePath, "add", "-A"); !res.Success {
		log.Printf("session %s: stage tool call changes: %s", st.SessionID, res.Output)
		return false
	}

	status := s.exec.Run(ctx, st.WorktreePath, "status", "--porcelain")
	if !status.Success {
		log.Printf("session %s: read worktree status: %s", st.SessionID, status.Output)
		return false
	}
	if strings.TrimSpace(status.Output) == "" {
		return true // read-only tool call
	}

	msg := strings.TrimSpace(toolName + ": " + description)
	if res := s.exec.Run(ctx, st.WorktreePath, "commit", "-m", msg); !res.Success {
		log.Printf("session %s: commit tool call: %s", st.SessionID, res.Output)
		return false
	}

	head := s.exec.Run(ctx, st.WorktreePath, "rev-parse", "HEAD")
	if !head.Success {
		log.Printf("session %s: resolve tool call commit: %s", st.SessionID, head.Output)
		return false
	}

	st.ToolCallCommits = append(st.ToolCallCommits, state.ToolCallCommit{
		ToolName:    toolName,
		Description: description,
		CommitRef:   strings.TrimSpace(head.Output),
		Timestamp:   time.Now(),
	})
	if err := s.store.Save(st); err != nil {
		log.Printf("session %s: persist tool call commit: %v", st.SessionID, err)
		return false
	}
	return true
}

// Accept copies the session's net content changes onto the primary
// workspace as unstaged modifications and tears the session down. The
// changes are deliberately left uncommitted: producing a reviewable
// result is the sandbox's job, the commit decision stays with the user.
// On a failed patch application the session is kept active so the
// caller can retry or reject; the workspace may then hold a partial
// application.
func (s *Sandbox) Accept(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.active()
	if st == nil {
		return false
	}

	diff := s.exec.Run(ctx, s.workspace, "diff", "--binary", st.BaseRef, st.ShadowBranch)
	if !diff.Success {
		log.Printf("session %s: diff session branch: %s", st.SessionID, diff.Output)
		return false
	}

	if strings.TrimSpace(diff.Output) != "" {
		apply := s.exec.RunWithInput(ctx, s.workspace, diff.Output, "apply", "--whitespace=nowarn")
		if !apply.Success {
			log.Printf("session %s: apply session changes: %s", st.SessionID, apply.Output)
			return false
		}
	}

	if branch, ok := s.exec.CurrentBranch(ctx); ok && branch != st.BaseBranch {
		if res := s.exec.Run(ctx, s.workspace, "checkout", st.BaseBranch); !res.Success {
			log.Printf("session %s: switch back to %s: %s", st.SessionID, st.BaseBranch, res.Output)
		}
	}

	s.discard(ctx, st)
	return true
}

// Reject discards the session's worktree and branch wholesale, leaving
// the primary workspace byte-identical to its state before Begin.
func (s *Sandbox) Reject(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.active()
	if st == nil {
		return false
	}
	s.discard(ctx, st)
	return true
}

// Active returns the persisted state of the current session, or nil if
// none is active.
func (s *Sandbox) Active() (*state.SessionState, error) {
	return s.store.ActiveForWorkspace(s.workspace)
}

// active is the lookup used by lifecycle operations; store errors are
// logged and treated as "no active session".
func (s *Sandbox) active() *state.SessionState {
	st, err := s.store.ActiveForWorkspace(s.workspace)
	if err != nil {
		log.Printf("look up active session for %s: %v", s.workspace, err)
		return nil
	}
	return st
}

// discard removes the session's worktree, branch, and persisted state.
// Each step is attempted regardless of earlier failures so an
// interrupted teardown can be re-driven by a later Reject.
func (s *Sandbox) discard(ctx context.Context, st *state.SessionState) {
	if res := s.exec.Run(ctx, s.workspace, "worktree", "remove", "--force", st.WorktreePath); !res.Success {
		log.Printf("session %s: remove worktree: %s", st.SessionID, res.Output)
		s.exec.Run(ctx, s.workspace, "worktree", "prune")
	}
	if res := s.exec.Run(ctx, s.workspace, "branch", "-D", st.ShadowBranch); !res.Success {
		log.Printf("session %s: delete shadow branch: %s", st.SessionID, res.Output)
	}
	if err := s.store.Delete(st.SessionID); err != nil {
		log.Printf("session %s: delete persisted state: %v", st.SessionID, err)
	}
}
