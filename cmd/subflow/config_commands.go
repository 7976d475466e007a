package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"subflow/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCommand(ctx))
	cmd.AddCommand(newConfigShowCommand(ctx))
	cmd.AddCommand(newConfigValidateCommand(ctx))
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load already runs validation; reaching here means it passed.
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			cmd.Printf("Configuration at %s is valid.\n", ctx.configPath)
			return nil
		},
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			cmd.Printf("Wrote sample configuration to %s\n", path)
			cmd.Println("Edit it before running the pipeline: at minimum set translation.api_key and translation.target_languages.")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			cmd.Printf("Configuration file: %s\n\n", ctx.configPath)
			rows := [][]string{
				{"paths.output_dir", cfg.Paths.OutputDir},
				{"paths.archive_dir", cfg.Paths.ArchiveDir},
				{"paths.work_dir", cfg.Paths.WorkDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.history_db", cfg.Paths.HistoryDB},
				{"pipeline.queue_capacity", fmt.Sprintf("%d", cfg.Pipeline.QueueCapacity)},
				{"pipeline.detect_workers", fmt.Sprintf("%d", cfg.Pipeline.DetectWorkers)},
				{"pipeline.fetch_workers", fmt.Sprintf("%d", cfg.Pipeline.FetchWorkers)},
				{"pipeline.translate_workers", fmt.Sprintf("%d", cfg.Pipeline.TranslateWorkers)},
				{"pipeline.summarize_workers", fmt.Sprintf("%d", cfg.Pipeline.SummarizeWorkers)},
				{"pipeline.publish_workers", fmt.Sprintf("%d", cfg.Pipeline.PublishWorkers)},
				{"pipeline.max_attempts", fmt.Sprintf("%d", cfg.Pipeline.MaxAttempts)},
				{"pipeline.llm_requests_per_minute", fmt.Sprintf("%d", cfg.Pipeline.LLMRequestsPerMinute)},
				{"ytdlp.binary", cfg.YtDlp.Binary},
				{"ytdlp.proxies", fmt.Sprintf("%d configured", len(cfg.YtDlp.Proxies))},
				{"translation.base_url", cfg.Translation.BaseURL},
				{"translation.model", cfg.Translation.Model},
				{"translation.api_key", maskSecret(cfg.Translation.APIKey)},
				{"translation.target_languages", strings.Join(cfg.Translation.TargetLanguages, ", ")},
				{"summary.enabled", fmt.Sprintf("%t", cfg.Summary.Enabled)},
				{"summary.model", cfg.Summary.Model},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			cmd.Println(renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
