package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ripcord/internal/session"
	"ripcord/internal/state"
)

func newSessionCmd(newApp func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Sandbox a batch of tool calls behind one accept/reject decision",
	}

	openSandbox := func() (*session.Sandbox, *state.Store, error) {
		a, err := newApp()
		if err != nil {
			return nil, nil, err
		}
		if !a.cfg.Session.Enabled {
			return nil, nil, fmt.Errorf("sessions are disabled in the configuration")
		}
		store, err := state.Open(a.cfg.Session.StatePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		return session.NewSandbox(a.exec, store, a.workspace, a.cfg.Session.WorktreeDirectory), store, nil
	}

	begin := &cobra.Command{
		Use:   "begin",
		Short: "Start a sandboxed session on a shadow branch",
		RunE: func(c *cobra.Command, args []string) error {
			sb, store, err := openSandbox()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := sb.Begin(c.Context())
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Println("workspace is not a git repository; sessions unavailable")
				return nil
			}
			fmt.Printf("session %s started, worktree at %s\n", sess.ID, sess.WorktreePath)
			return nil
		},
	}

	var toolName, description string
	commit := &cobra.Command{
		Use:   "commit",
		Short: "Record the current worktree content as one tool call",
		RunE: func(c *cobra.Command, args []string) error {
			sb, store, err := openSandbox()
			if err != nil {
				return err
			}
			defer store.Close()

			if !sb.CommitToolCall(c.Context(), toolName, description) {
				return fmt.Errorf("no active session, or the commit failed")
			}
			fmt.Println("tool call recorded")
			return nil
		},
	}
	commit.Flags().StringVar(&toolName, "tool", "", "name of the tool that ran")
	commit.Flags().StringVar(&description, "description", "", "what the tool call did")
	commit.MarkFlagRequired("tool")

	accept := &cobra.Command{
		Use:   "accept",
		Short: "Apply the session's changes to the workspace, unstaged",
		RunE: func(c *cobra.Command, args []string) error {
			sb, store, err := openSandbox()
			if err != nil {
				return err
			}
			defer store.Close()

			if !sb.Accept(c.Context()) {
				return fmt.Errorf("no active session, or applying the changes failed")
			}
			fmt.Println("session accepted; changes applied as unstaged modifications")
			return nil
		},
	}

	reject := &cobra.Command{
		Use:   "reject",
		Short: "Discard the session's branch and worktree",
		RunE: func(c *cobra.Command, args []string) error {
			sb, store, err := openSandbox()
			if err != nil {
				return err
			}
			defer store.Close()

			if !sb.Reject(c.Context()) {
				return fmt.Errorf("no active session")
			}
			fmt.Println("session rejected; workspace unchanged")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the active session, if any",
		RunE: func(c *cobra.Command, args []string) error {
			sb, store, err := openSandbox()
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := sb.Active()
			if err != nil {
				return err
			}
			if st == nil {
				fmt.Println("no active session")
				return nil
			}
			fmt.Printf("session %s on %s (base %s), %d tool call commits\n",
				st.SessionID, st.ShadowBranch, st.BaseBranch, len(st.ToolCallCommits))
			for _, tc := range st.ToolCallCommits {
				fmt.Printf("  %s  %s  %s\n", tc.CommitRef[:8], tc.Timestamp.Format("15:04:05"), tc.ToolName)
			}
			return nil
		},
	}

	cmd.AddCommand(begin, commit, accept, reject, status)
	return cmd
}
