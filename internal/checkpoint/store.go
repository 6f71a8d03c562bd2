// Package checkpoint snapshots workspace content into a hidden git
// repository, one repository per workspace, independent of whatever
// version control the workspace itself uses. Checkpointing therefore
// works in plain directories, never pollutes the user's history, and
// never touches the user's branch or staging state.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/google/uuid"

	"ripcord/internal/gitexec"
)

// ErrNotFound is returned when a checkpoint id has no snapshot.
var ErrNotFound = errors.New("checkpoint not found")

// ErrNotInitialized is returned when the store is used before Initialize.
var ErrNotInitialized = errors.New("checkpoint store not initialized")

// Store maintains the hidden repository and checkpoint metadata for one
// workspace. It is not safe for two Stores pointing at the same
// workspace; the orchestrator serializes operations per workspace.
type Store struct {
	exec      *gitexec.Executor
	root      string
	workspace string

	mu          sync.Mutex
	repoDir     string
	gitDir      string
	entries     []Metadata // oldest first
	initialized bool
}

// NewStore creates a Store for the workspace, placing its hidden
// repository under root. Call Initialize before any other operation.
func NewStore(exec *gitexec.Executor, root, workspace string) *Store {
	return &Store{exec: exec, root: root, workspace: workspace}
}

// Initialize idempotently provisions the hidden repository for the
// workspace and loads previously recorded metadata.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	abs, err := filepath.Abs(s.workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace path: %w", err)
	}
	s.workspace = abs
	s.repoDir = filepath.Join(s.root, workspaceKey(abs))
	s.gitDir = filepath.Join(s.repoDir, ".git")

	if _, err := git.PlainOpen(s.repoDir); err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return fmt.Errorf("open shadow repository: %w", err)
		}
		if err := os.MkdirAll(s.repoDir, 0755); err != nil {
			return fmt.Errorf("create shadow repository dir: %w", err)
		}
		if _, err := git.PlainInit(s.repoDir, false); err != nil {
			return fmt.Errorf("init shadow repository: %w", err)
		}
	}

	// Commits in the shadow repository need an identity regardless of
	// the user's global git config, and must never be signed.
	for _, kv := range [][2]string{
		{"user.name", "ripcord"},
		{"user.email", "ripcord@localhost"},
		{"commit.gpgsign", "false"},
	} {
		res := s.exec.Run(ctx, s.repoDir, "--git-dir", s.gitDir, "config", kv[0], kv[1])
		if !res.Success {
			return fmt.Errorf("configure shadow repository: %s", res.Output)
		}
	}

	entries, err := s.loadJournal()
	if err != nil {
		return err
	}
	s.entries = entries
	s.initialized = true
	return nil
}

// Create snapshots the entire current workspace content as a new
// checkpoint and returns its id. It succeeds even when nothing changed;
// the returned checkpoint then has an empty ModifiedFiles list.
func (s *Store) Create(ctx context.Context, toolCallID, toolName, description string) (string, error) {
	if strings.TrimSpace(toolCallID) == "" {
		return "", fmt.Errorf("tool call id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return "", ErrNotInitialized
	}

	if res := s.run(ctx, "add", "-A"); !res.Success {
		return "", fmt.Errorf("stage workspace content: %s", res.Output)
	}

	msg := strings.TrimSpace(description)
	if msg == "" {
		msg = toolName
	}
	if msg == "" {
		msg = "checkpoint"
	}
	if res := s.run(ctx, "commit", "--allow-empty", "-m", msg); !res.Success {
		return "", fmt.Errorf("commit snapshot: %s", res.Output)
	}

	res := s.run(ctx, "rev-parse", "HEAD")
	if !res.Success {
		return "", fmt.Errorf("resolve snapshot commit: %s", res.Output)
	}
	sha := strings.TrimSpace(res.Output)

	var modified []string
	if len(s.entries) > 0 {
		prev := s.entries[len(s.entries)-1]
		diff := s.run(ctx, "diff", "--name-only", prev.CommitSHA, sha)
		if !diff.Success {
			return "", fmt.Errorf("diff against previous checkpoint: %s", diff.Output)
		}
		for _, line := range strings.Split(diff.Output, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				modified = append(modified, line)
			}
		}
	}

	meta := Metadata{
		ID:            uuid.New().String(),
		ToolCallID:    toolCallID,
		ToolName:      toolName,
		Description:   description,
		CreatedAt:     time.Now(),
		ModifiedFiles: modified,
		CommitSHA:     sha,
	}
	s.entries = append(s.entries, meta)
	if err := s.saveJournal(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// Get returns the metadata recorded for id.
func (s *Store) Get(id string) (Metadata, error) {
	if strings.TrimSpace(id) == "" {
		return Metadata{}, fmt.Errorf("checkpoint id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

func (s *Store) lookup(id string) (Metadata, error) {
	if !s.initialized {
		return Metadata{}, ErrNotInitialized
	}
	for _, m := range s.entries {
		if m.ID == id {
			return m, nil
		}
	}
	return Metadata{}, fmt.Errorf("checkpoint %q: %w", id, ErrNotFound)
}

// Restore overwrites the live workspace content with exactly the
// snapshot recorded at id, including deletion of files absent from it.
// It does not checkpoint the current state first; callers wanting a
// pre-restore safety net must Create one themselves.
func (s *Store) Restore(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("checkpoint id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.lookup(id)
	if err != nil {
		return err
	}

	// Track everything created since the snapshot so the reset can
	// remove it; reset --hard leaves untracked files alone.
	if res := s.run(ctx, "add", "-A"); !res.Success {
		return fmt.Errorf("stage workspace content: %s", res.Output)
	}
	if res := s.run(ctx, "reset", "--hard", meta.CommitSHA); !res.Success {
		return fmt.Errorf("restore snapshot %s: %s", id, res.Output)
	}
	return nil
}

// List returns checkpoint metadata newest first. A limit of zero or
// less returns everything.
func (s *Store) List(limit int) ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	out := make([]Metadata, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Prune drops metadata for all but the keepCount most recent
// checkpoints. The pruned snapshots' git objects are left for garbage
// collection; remaining checkpoints restore by commit SHA regardless of
// what was pruned around them.
func (s *Store) Prune(keepCount int) error {
	if keepCount < 0 {
		return fmt.Errorf("keep count must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if len(s.entries) <= keepCount {
		return nil
	}

	s.entries = append([]Metadata(nil), s.entries[len(s.entries)-keepCount:]...)
	return s.saveJournal()
}

// run invokes git against the hidden repository with the workspace as
// its work tree.
func (s *Store) run(ctx context.Context, args ...string) gitexec.Result {
	full := append([]string{"--git-dir", s.gitDir, "--work-tree", s.workspace}, args...)
	return s.exec.Run(ctx, s.workspace, full...)
}

// workspaceKey derives the hidden repository directory name from the
// absolute workspace path.
func workspaceKey(abs string) string {
	sum := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("%x", sum)[:16]
}
