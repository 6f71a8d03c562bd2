package state

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "state", "sessions.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleState(id, workspace string) *SessionState {
	return &SessionState{
		SessionID:    id,
		Workspace:    workspace,
		WorktreePath: "/tmp/worktrees/" + id,
		ShadowBranch: "ripcord/session-" + id,
		BaseBranch:   "main",
		BaseRef:      "abc123",
		CreatedAt:    time.Now(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	st := sampleState("s1", "/work/project")
	st.ToolCallCommits = []ToolCallCommit{
		{ToolName: "write_file", Description: "created a.txt", CommitRef: "c1", Timestamp: time.Now()},
		{ToolName: "replace", Description: "edited b.txt", CommitRef: "c2", Timestamp: time.Now()},
		{ToolName: "patch", Description: "patched c.txt", CommitRef: "c3", Timestamp: time.Now()},
	}
	if err := store.Save(st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected a session state")
	}
	if len(loaded.ToolCallCommits) != 3 {
		t.Fatalf("Expected 3 tool call commits, got %d", len(loaded.ToolCallCommits))
	}
	for i, want := range []string{"write_file", "replace", "patch"} {
		if loaded.ToolCallCommits[i].ToolName != want {
			t.Errorf("Expected tool %q at %d, got %q", want, i, loaded.ToolCallCommits[i].ToolName)
		}
	}
	if loaded.ShadowBranch != st.ShadowBranch || loaded.BaseRef != st.BaseRef {
		t.Errorf("Expected branch/ref to round-trip, got %+v", loaded)
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load("unknown")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil for an unknown session id, got %+v", loaded)
	}
}

func TestActiveForWorkspace(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(sampleState("s1", "/work/alpha")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(sampleState("s2", "/work/beta")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	st, err := store.ActiveForWorkspace("/work/beta")
	if err != nil {
		t.Fatalf("ActiveForWorkspace() error = %v", err)
	}
	if st == nil || st.SessionID != "s2" {
		t.Errorf("Expected session s2 for /work/beta, got %+v", st)
	}

	st, err = store.ActiveForWorkspace("/work/missing")
	if err != nil {
		t.Fatalf("ActiveForWorkspace() error = %v", err)
	}
	if st != nil {
		t.Errorf("Expected nil for a workspace without a session, got %+v", st)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(sampleState("s1", "/work/project")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete("s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	loaded, err := store.Load("s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != nil {
		t.Error("Expected session to be gone after delete")
	}

	// Deleting an unknown id is not an error.
	if err := store.Delete("s1"); err != nil {
		t.Errorf("Second Delete() error = %v", err)
	}
}

func TestSaveRejectsEmptyID(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(&SessionState{Workspace: "/work/project"}); err == nil {
		t.Error("Expected error saving state without a session id")
	}
}
