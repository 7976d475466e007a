package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"subflow/internal/faults"
	"subflow/internal/journal"
)

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	var categoryFlag string
	var batchFlag string
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Show recorded item failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var wantCategory faults.Category
			if categoryFlag != "" {
				cat, ok := faults.ParseCategory(categoryFlag)
				if !ok {
					return fmt.Errorf("unknown failure category %q", categoryFlag)
				}
				wantCategory = cat
			}

			logPath := filepath.Join(cfg.Paths.LogDir, "failures.log")
			records, err := journal.ReadFailures(logPath)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				if wantCategory != "" && rec.Category != wantCategory {
					continue
				}
				if batchFlag != "" && rec.BatchID != batchFlag {
					continue
				}
				rows = append(rows, []string{
					rec.Timestamp.Format(time.DateTime),
					rec.ItemID,
					rec.Phase,
					string(rec.Category),
					truncate(rec.Message, 70),
				})
			}

			if len(rows) == 0 {
				cmd.Println("No failures recorded.")
				return nil
			}
			cmd.Println(renderTable([]string{"Time", "Item", "Phase", "Category", "Message"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVar(&categoryFlag, "category", "", "Only show failures in this category")
	cmd.Flags().StringVar(&batchFlag, "batch", "", "Only show failures from this batch id")
	return cmd
}
