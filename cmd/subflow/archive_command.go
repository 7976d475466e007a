package main

import (
	"github.com/spf13/cobra"

	"subflow/internal/archive"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage completion archives",
	}
	cmd.AddCommand(newArchiveClearCommand(ctx))
	cmd.AddCommand(newArchivePathCommand(ctx))
	return cmd
}

func newArchiveClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <source>",
		Short: "Forget completed items for a source so they reprocess on the next run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tracker := archive.NewTracker(cfg.Paths.ArchiveDir, nil)
			if err := tracker.Clear(args[0]); err != nil {
				return err
			}
			cmd.Printf("Cleared archive for %s\n", args[0])
			return nil
		},
	}
}

func newArchivePathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path <source>",
		Short: "Print the archive file backing a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tracker := archive.NewTracker(cfg.Paths.ArchiveDir, nil)
			cmd.Println(tracker.ArchivePath(args[0]))
			return nil
		},
	}
}
