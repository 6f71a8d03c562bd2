// Package cli wires the checkpoint store and session sandbox into a
// cobra command tree. It contains no business logic: every command maps
// to exactly one operation and prints a one-line outcome.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ripcord/internal/config"
	"ripcord/internal/gitexec"
)

// gitPoolSize bounds concurrent git invocations across all commands.
const gitPoolSize = 4

type app struct {
	cfg       *config.Config
	workspace string
	exec      *gitexec.Executor
}

// Execute runs the ripcord command tree.
func Execute() error {
	var workspace string

	root := &cobra.Command{
		Use:           "ripcord",
		Short:         "Reversible execution sandbox for AI coding agents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")

	newApp := func() (*app, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		exec := gitexec.New(gitexec.WorkdirFunc(func() string { return abs }), gitexec.NewPool(gitPoolSize))
		return &app{cfg: cfg, workspace: abs, exec: exec}, nil
	}

	root.AddCommand(newCheckpointCmd(newApp))
	root.AddCommand(newSessionCmd(newApp))
	return root.Execute()
}
