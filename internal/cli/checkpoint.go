package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ripcord/internal/checkpoint"
)

func newCheckpointCmd(newApp func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Snapshot and restore workspace content",
	}

	openStore := func(c *cobra.Command) (*checkpoint.Store, error) {
		a, err := newApp()
		if err != nil {
			return nil, err
		}
		if !a.cfg.Checkpoint.Enabled {
			return nil, fmt.Errorf("checkpointing is disabled in the configuration")
		}
		store := checkpoint.NewStore(a.exec, a.cfg.Checkpoint.Directory, a.workspace)
		if err := store.Initialize(c.Context()); err != nil {
			return nil, err
		}
		return store, nil
	}

	var toolCallID, toolName, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the current workspace content",
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore(c)
			if err != nil {
				return err
			}
			id, err := store.Create(c.Context(), toolCallID, toolName, description)
			if err != nil {
				return err
			}
			fmt.Printf("checkpoint %s created\n", id)
			return nil
		},
	}
	create.Flags().StringVar(&toolCallID, "tool-call-id", "", "id of the tool call being checkpointed")
	create.Flags().StringVar(&toolName, "tool", "", "name of the tool about to run")
	create.Flags().StringVar(&description, "description", "", "human-readable description")
	create.MarkFlagRequired("tool-call-id")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, newest first",
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore(c)
			if err != nil {
				return err
			}
			entries, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no checkpoints")
				return nil
			}
			for _, m := range entries {
				desc := m.Description
				if desc == "" {
					desc = m.ToolName
				}
				fmt.Printf("%s  %s  %s  (%d files)\n",
					m.ID, m.CreatedAt.Format("2006-01-02 15:04:05"), desc, len(m.ModifiedFiles))
				if len(m.ModifiedFiles) > 0 {
					fmt.Printf("    %s\n", strings.Join(m.ModifiedFiles, ", "))
				}
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum entries to show (0 = all)")

	restore := &cobra.Command{
		Use:   "restore <checkpoint-id>",
		Short: "Overwrite the workspace with a checkpoint's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore(c)
			if err != nil {
				return err
			}
			if err := store.Restore(c.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("workspace restored to checkpoint %s\n", args[0])
			return nil
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop all but the most recent checkpoints",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if keep < 0 {
				keep = a.cfg.Checkpoint.Keep
			}
			store, err := openStore(c)
			if err != nil {
				return err
			}
			if err := store.Prune(keep); err != nil {
				return err
			}
			fmt.Printf("pruned to %d checkpoints\n", keep)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", -1, "checkpoints to keep (default from config)")

	cmd.AddCommand(create, list, restore, prune)
	return cmd
}
