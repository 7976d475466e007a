package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"subflow/internal/archive"
	"subflow/internal/config"
	"subflow/internal/faults"
	"subflow/internal/history"
	"subflow/internal/journal"
	"subflow/internal/language"
	"subflow/internal/logging"
	"subflow/internal/output"
	"subflow/internal/pipeline"
	"subflow/internal/preflight"
	"subflow/internal/ratelimit"
	"subflow/internal/services/llm"
	"subflow/internal/services/proxypool"
	"subflow/internal/services/ytdlp"
	"subflow/internal/stages"
)

type runOptions struct {
	force         bool
	skipPreflight bool
	dryRun        bool
	limit         int
	langs         []string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <url>...",
		Short: "Process videos, channels, or playlists through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.force, "force", false, "Reprocess items already recorded as done")
	cmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "Skip environment checks")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "List the videos that would be processed and exit")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Process at most this many videos per source (0 = no limit)")
	cmd.Flags().StringSliceVar(&opts.langs, "langs", nil, "Override configured target languages for this run")
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, sources []string, opts runOptions) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	log := logging.NewComponentLogger(logger, "run")

	targetCodes := cfg.Translation.TargetLanguages
	if len(opts.langs) > 0 {
		targetCodes = opts.langs
	}
	targets, err := language.ParseAll(targetCodes)
	if err != nil {
		return fmt.Errorf("target languages: %w", err)
	}

	signalCtx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if opts.dryRun {
		return printDryRun(signalCtx, cmd, cfg, sources, opts)
	}

	if !opts.skipPreflight {
		results := preflight.RunAll(signalCtx, cfg)
		printPreflight(cmd, results)
		if !preflight.AllPassed(results) {
			return errors.New("preflight checks failed")
		}
	}

	// Service wiring.
	pool := proxypool.New(cfg.YtDlp.Proxies, time.Duration(cfg.YtDlp.ProxyCooldownSeconds)*time.Second)
	ytClient, err := ytdlp.New(ytdlp.Config{
		Binary:                 cfg.YtDlp.Binary,
		CookiesFile:            cfg.YtDlp.CookiesFile,
		ProbeTimeoutSeconds:    cfg.YtDlp.ProbeTimeoutSeconds,
		DownloadTimeoutSeconds: cfg.YtDlp.DownloadTimeoutSeconds,
	}, ytdlp.WithProxyPool(pool))
	if err != nil {
		return err
	}

	bucket := ratelimit.PerMinute(cfg.Pipeline.LLMRequestsPerMinute)
	translateLLM := llm.NewClient(llm.Config{
		APIKey:         cfg.Translation.APIKey,
		BaseURL:        cfg.Translation.BaseURL,
		Model:          cfg.Translation.Model,
		TimeoutSeconds: cfg.Translation.TimeoutSeconds,
	}, llm.WithLimiter(bucket))
	summaryLLM := llm.NewClient(llm.Config{
		APIKey:         cfg.Summary.APIKey,
		BaseURL:        cfg.Summary.BaseURL,
		Model:          cfg.Summary.Model,
		TimeoutSeconds: cfg.Summary.TimeoutSeconds,
	}, llm.WithLimiter(bucket))

	appendWriter := journal.NewAppendWriter()
	tracker := archive.NewTracker(cfg.Paths.ArchiveDir, appendWriter)
	failureLog := journal.NewFailureLog(filepath.Join(cfg.Paths.LogDir, "failures.log"), appendWriter)

	handlers := pipeline.Handlers{
		Detect:    stages.NewDetect(ytClient, logger),
		Fetch:     stages.NewFetch(ytClient),
		Translate: stages.NewTranslate(translateLLM, targets),
		Summarize: stages.NewSummarize(summaryLLM, cfg.Summary.Enabled),
		Publish:   stages.NewPublish(output.NewWriter(cfg.Paths.OutputDir)),
	}

	batchID := uuid.NewString()
	orch, err := pipeline.New(handlers, pipeline.Options{
		QueueCapacity:    cfg.Pipeline.QueueCapacity,
		DetectWorkers:    cfg.Pipeline.DetectWorkers,
		FetchWorkers:     cfg.Pipeline.FetchWorkers,
		TranslateWorkers: cfg.Pipeline.TranslateWorkers,
		SummarizeWorkers: cfg.Pipeline.SummarizeWorkers,
		PublishWorkers:   cfg.Pipeline.PublishWorkers,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Pipeline.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Pipeline.RetryMaxDelayMS) * time.Millisecond,
		},
		StopTimeout: time.Duration(cfg.Pipeline.StopTimeoutSeconds) * time.Second,
		WorkDir:     cfg.Paths.WorkDir,
		Force:       opts.force,
		FailureLog:  failureLog,
		Tracker:     tracker,
		Logger:      logger,
		OnEvent:     eventLogger(log),
	})
	if err != nil {
		return err
	}

	started := time.Now()
	if err := orch.Start(signalCtx); err != nil {
		return err
	}

	// Expand sources into items and feed them in. Submit blocks on
	// backpressure, which is exactly what we want here.
	var submitted int
	for _, source := range sources {
		videos, err := ytClient.ListSource(signalCtx, source)
		if err != nil {
			log.Error("listing source failed",
				logging.String("source", source),
				logging.Error(err))
			continue
		}
		if opts.limit > 0 && len(videos) > opts.limit {
			videos = videos[:opts.limit]
		}
		items := make([]*pipeline.Item, len(videos))
		for i, video := range videos {
			items[i] = pipeline.NewItem(video, batchID)
		}
		if err := orch.Submit(items); err != nil {
			return err
		}
		submitted += len(items)
	}
	if submitted == 0 {
		orch.Stop("nothing to process")
		return errors.New("no videos found in any source")
	}

	if err := orch.WaitForDrain(context.Background()); err != nil {
		return err
	}
	finished := time.Now()

	stats := orch.Stats()
	printRunSummary(cmd, stats, finished.Sub(started))
	recordHistory(cmd.Context(), cfg, log, history.Run{
		BatchID:    batchID,
		Source:     strings.Join(sources, " "),
		Status:     runStatus(stats, orch.Signal()),
		Submitted:  stats.Submitted,
		Succeeded:  stats.Succeeded,
		Failed:     stats.Failed,
		Skipped:    stats.Skipped,
		Cancelled:  stats.Cancelled,
		StartedAt:  started,
		FinishedAt: finished,
	})

	if signalCtx.Err() != nil {
		return context.Canceled
	}
	return nil
}

// eventLogger turns terminal item events into log lines. It must stay
// cheap: it runs on the pipeline's single dispatcher goroutine.
func eventLogger(log *slog.Logger) func(pipeline.Event) {
	return func(ev pipeline.Event) {
		args := logging.Args(
			logging.String(logging.FieldItemID, ev.ItemID),
			logging.String(logging.FieldPhase, string(ev.Phase)),
			logging.String("title", truncate(ev.Title, 60)),
		)
		switch ev.Kind {
		case pipeline.EventFailed:
			args = append(args,
				logging.String(logging.FieldCategory, string(ev.Category)),
				logging.Int("attempts", ev.Attempts),
				logging.String("reason", ev.Reason))
			log.Warn("item failed", args...)
		case pipeline.EventSkipped:
			args = append(args, logging.String("reason", ev.Reason))
			log.Info("item skipped", args...)
		case pipeline.EventCancelled:
			log.Info("item cancelled", args...)
		default:
			log.Info("item completed", args...)
		}
	}
}

func runStatus(stats pipeline.Stats, sig *pipeline.Signal) string {
	switch {
	case stats.Cancelled > 0 || (sig != nil && sig.Triggered() && sig.Reason() != "run complete"):
		return "cancelled"
	case stats.Failed > 0:
		return "completed_with_failures"
	default:
		return "completed"
	}
}

func recordHistory(ctx context.Context, cfg *config.Config, log *slog.Logger, run history.Run) {
	store, err := history.Open(ctx, cfg.Paths.HistoryDB)
	if err != nil {
		log.Warn("history unavailable", logging.Error(err))
		return
	}
	defer store.Close()
	if err := store.RecordRun(ctx, run); err != nil {
		log.Warn("recording run failed", logging.Error(err))
	}
}

// printDryRun lists what a real run would submit, including which items the
// archive would skip.
func printDryRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, sources []string, opts runOptions) error {
	ytClient, err := ytdlp.New(ytdlp.Config{
		Binary:              cfg.YtDlp.Binary,
		CookiesFile:         cfg.YtDlp.CookiesFile,
		ProbeTimeoutSeconds: cfg.YtDlp.ProbeTimeoutSeconds,
	})
	if err != nil {
		return err
	}
	tracker := archive.NewTracker(cfg.Paths.ArchiveDir, nil)

	var rows [][]string
	for _, source := range sources {
		videos, err := ytClient.ListSource(ctx, source)
		if err != nil {
			return err
		}
		if opts.limit > 0 && len(videos) > opts.limit {
			videos = videos[:opts.limit]
		}
		for _, video := range videos {
			item := pipeline.NewItem(video, "dry-run")
			action := "process"
			if !opts.force {
				if done, err := tracker.IsDone(item.ArchiveSource(), item.ID()); err == nil && done {
					action = "skip (done)"
				}
			}
			rows = append(rows, []string{item.ID(), truncate(video.Title, 50), action})
		}
	}
	if len(rows) == 0 {
		cmd.Println("No videos found.")
		return nil
	}
	cmd.Println(renderTable([]string{"Video", "Title", "Action"}, rows, nil))
	return nil
}

func printPreflight(cmd *cobra.Command, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		status := "FAIL"
		if res.Passed {
			status = "ok"
		}
		rows = append(rows, []string{res.Name, status, res.Detail})
	}
	cmd.Println(renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
}

func printRunSummary(cmd *cobra.Command, stats pipeline.Stats, elapsed time.Duration) {
	rows := [][]string{
		{"Submitted", fmt.Sprintf("%d", stats.Submitted)},
		{"Succeeded", fmt.Sprintf("%d", stats.Succeeded)},
		{"Skipped", fmt.Sprintf("%d", stats.Skipped)},
		{"Failed", fmt.Sprintf("%d", stats.Failed)},
		{"Cancelled", fmt.Sprintf("%d", stats.Cancelled)},
		{"Duration", elapsed.Round(time.Second).String()},
	}
	cmd.Println(renderTable([]string{"Result", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(stats.FailedByCategory) > 0 {
		catRows := make([][]string, 0, len(stats.FailedByCategory))
		for _, cat := range sortedCategories(stats.FailedByCategory) {
			catRows = append(catRows, []string{string(cat), fmt.Sprintf("%d", stats.FailedByCategory[cat])})
		}
		cmd.Println(renderTable([]string{"Failure category", "Count"}, catRows, []columnAlignment{alignLeft, alignRight}))
	}
}

func sortedCategories(byCat map[faults.Category]int64) []faults.Category {
	cats := make([]faults.Category, 0, len(byCat))
	for cat := range byCat {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
