package checkpoint

import "time"

// Metadata describes one checkpoint. It is created at snapshot time and
// immutable thereafter; ModifiedFiles is the path diff against the
// immediately preceding checkpoint, computed once when the snapshot is
// taken and never recomputed (pruning the preceding checkpoint later
// does not invalidate it).
type Metadata struct {
	ID            string    `json:"id"`
	ToolCallID    string    `json:"tool_call_id"`
	ToolName      string    `json:"tool_name"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedFiles []string  `json:"modified_files"`

	// CommitSHA binds the metadata to its snapshot in the hidden
	// repository. Not part of the caller-facing contract.
	CommitSHA string `json:"commit_sha"`
}
