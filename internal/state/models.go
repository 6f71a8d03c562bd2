package state

import "time"

// SessionState is the durable record of one sandbox session. It is
// exclusively owned and mutated by the session sandbox; this package
// only persists it. At most one SessionState is active per workspace.
type SessionState struct {
	SessionID       string           `json:"session_id"`
	Workspace       string           `json:"workspace"`
	WorktreePath    string           `json:"worktree_path"`
	ShadowBranch    string           `json:"shadow_branch"`
	BaseBranch      string           `json:"base_branch"`
	BaseRef         string           `json:"base_ref"`
	ToolCallCommits []ToolCallCommit `json:"tool_call_commits"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ToolCallCommit records one tool call that actually changed tracked
// content on the shadow branch. Entries are append-only; they are only
// removed wholesale with the owning SessionState.
type ToolCallCommit struct {
	ToolName    string    `json:"tool_name"`
	Description string    `json:"description"`
	CommitRef   string    `json:"commit_ref"`
	Timestamp   time.Time `json:"timestamp"`
}
