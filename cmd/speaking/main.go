package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jkdev/speaking/internal/config"
	"github.com/jkdev/speaking/internal/enrich"
	"github.com/jkdev/speaking/internal/fetchsrc"
	"github.com/jkdev/speaking/internal/history"
	"github.com/jkdev/speaking/internal/logutil"
	"github.com/jkdev/speaking/internal/merge"
	"github.com/jkdev/speaking/internal/server"
	"github.com/jkdev/speaking/internal/sources"
	"github.com/jkdev/speaking/internal/talks"
	"github.com/jkdev/speaking/internal/videomatch"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
	configPath string
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "speaking",
		Short: "Speaking data pipeline",
		Long: `Speaking reconciles talk data from multiple sources (legacy archive,
Sessionize, MVP activity export, manual curation) into a single
deduplicated dataset, matches conference recordings to talks, and
serves the result over a read-only API.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "speaking.yaml", "Path to config file")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(videosCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
			} else {
				fmt.Printf("speaking %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	}
}

func fetchCmd() *cobra.Command {
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and normalize source data",
	}

	fetch.AddCommand(&cobra.Command{
		Use:   "sessionize",
		Short: "Fetch the Sessionize speaker profile",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, log := mustApp()

			f := fetchsrc.NewFetcher(log, cfg.Fetch.Timeout, cfg.Fetch.Retries)
			path := cfg.Data.SourcePaths()[sources.SourceSessionize]
			fetchErr, writeErr := f.SessionizeToFile(context.Background(), cfg.Fetch.SessionizeURL, path)
			if writeErr != nil {
				fatal(fmt.Sprintf("Failed to write sessionize export: %v", writeErr))
			}
			if fetchErr != nil {
				// An empty export was still written; the merge degrades to
				// the remaining sources, so this is a warning, not a failure.
				msg := fmt.Sprintf("Fetch failed, wrote empty export: %v", fetchErr)
				if jsonOutput {
					printJSON(Result{OK: true, Message: msg})
				} else {
					fmt.Printf("⚠ %s\n", msg)
				}
				return
			}
			reportResult(Result{OK: true, Message: fmt.Sprintf("Sessionize data written to %s", path)})
		},
	})

	fetch.AddCommand(&cobra.Command{
		Use:   "mvp",
		Short: "Distill speaking activities from the MVP privacy export",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, log := mustApp()

			outPath := cfg.Data.SourcePaths()[sources.SourceMVP]
			extract, err := fetchsrc.ExtractMVP(log, cfg.Fetch.MVPExportFile, outPath)
			if err != nil {
				fatal(fmt.Sprintf("Failed to extract MVP activities: %v", err))
			}
			reportResult(Result{
				OK:      true,
				Message: fmt.Sprintf("Extracted %d speaking activities to %s", extract.TotalActivities, outPath),
			})
		},
	})

	return fetch
}

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge all sources into the canonical dataset",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, log := mustApp()
			ctx := context.Background()

			store, runID := beginHistory(ctx, log, cfg, "merge")

			ts, summaries, err := runMergePipeline(log, cfg)
			if store != nil {
				if herr := store.RecordSources(ctx, runID, summaries); herr != nil {
					log.Warn("failed to record source contributions", "error", herr)
				}
				finishHistory(ctx, log, store, runID, len(ts), err)
			}
			if err != nil {
				fatal(fmt.Sprintf("Merge failed: %v", err))
			}

			if jsonOutput {
				printJSON(map[string]any{
					"ok":         true,
					"totalTalks": len(ts),
					"sources":    summaries,
					"output":     cfg.Data.SpeakingPath(),
				})
				return
			}
			for _, s := range summaries {
				if s.Failed {
					fmt.Printf("  %-12s unavailable (%s)\n", s.Source, s.Reason)
					continue
				}
				fmt.Printf("  %-12s %d records (%d merged, %d added)\n", s.Source, s.Records, s.Merged, s.Added)
			}
			fmt.Printf("✓ %d talks written to %s\n", len(ts), cfg.Data.SpeakingPath())
		},
	}
}

func videosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "videos",
		Short: "Reconcile scanned video candidates against the dataset",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, log := mustApp()
			ctx := context.Background()

			doc, err := talks.LoadDocument(cfg.Data.SpeakingPath())
			if err != nil {
				fatal(fmt.Sprintf("Failed to load dataset: %v", err))
			}
			cands, err := videomatch.LoadCandidates(cfg.Data.CandidatesPath())
			if err != nil {
				fatal(fmt.Sprintf("Failed to load video candidates: %v", err))
			}

			policy := videoPolicy(cfg)
			rec := videomatch.NewReconciler(log, policy, cfg.Videos.ExtraStopwords...)

			source := cands.Source
			if source == "" {
				source = "video-candidates"
			}

			store, runID := beginHistory(ctx, log, cfg, "videos")

			report, err := rec.Run(source, doc.Talks, cands.Videos)
			if err == nil {
				if len(report.AppliedMatches) > 0 {
					err = talks.SaveDocument(cfg.Data.SpeakingPath(), doc)
				}
				if err == nil {
					err = videomatch.SaveReport(cfg.Data.ReportPath(), report)
				}
			}
			if store != nil {
				if report != nil {
					if herr := store.RecordAppliedMatches(ctx, runID, report.AppliedMatches); herr != nil {
						log.Warn("failed to record applied matches", "error", herr)
					}
				}
				finishHistory(ctx, log, store, runID, len(doc.Talks), err)
			}
			if err != nil {
				fatal(fmt.Sprintf("Video reconciliation failed: %v", err))
			}

			if jsonOutput {
				printJSON(report)
				return
			}
			fmt.Printf("✓ %d videos scanned, %d applied, %d suggested, %d missing-talk candidates\n",
				report.TotalVideosScanned,
				len(report.AppliedMatches),
				len(report.SuggestedMatches),
				len(report.MissingTalkCandidates))
			fmt.Printf("  Report written to %s\n", cfg.Data.ReportPath())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the speaking API",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, log := mustApp()

			srv := server.NewServer(log, cfg.Data.SpeakingPath())

			if spec := cfg.Server.RefreshCron; spec != "" {
				sched := cron.New()
				_, err := sched.AddFunc(spec, func() {
					if _, _, err := runMergePipeline(log, cfg); err != nil {
						log.Error("scheduled merge failed", "error", err)
					}
				})
				if err != nil {
					fatal(fmt.Sprintf("Invalid refresh cron %q: %v", spec, err))
				}
				sched.Start()
				defer sched.Stop()
				log.Info("scheduled dataset refresh", "cron", spec)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-stop
				log.Info("shutting down")
				if err := srv.Shutdown(); err != nil {
					log.Error("shutdown failed", "error", err)
				}
			}()

			if err := srv.Listen(cfg.Server.Address); err != nil {
				fatal(fmt.Sprintf("Server failed: %v", err))
			}
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, _ := mustApp()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				fatal(fmt.Sprintf("Failed to open history: %v", err))
			}
			defer store.Close()

			runs, err := store.RecentRuns(context.Background(), limit)
			if err != nil {
				fatal(fmt.Sprintf("Failed to read history: %v", err))
			}

			if jsonOutput {
				printJSON(runs)
				return
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return
			}
			for _, r := range runs {
				line := fmt.Sprintf("%s  %-7s %-7s %d talks", r.StartedAt, r.Command, r.Status, r.TotalTalks)
				if r.Error != nil {
					line += "  " + *r.Error
				}
				fmt.Println(line)
			}
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	return cmd
}

// runMergePipeline loads every configured source, merges, enriches and writes
// the canonical dataset. Shared between the merge command and the serve
// command's scheduled refresh.
func runMergePipeline(log *slog.Logger, cfg *config.Config) ([]talks.Talk, []merge.SourceSummary, error) {
	fillMode, err := merge.ParseFillMode(cfg.Merge.FillMode)
	if err != nil {
		return nil, nil, err
	}
	policy := merge.Policy{Order: cfg.Merge.SourceOrder, FillMode: fillMode}
	if len(policy.Order) == 0 {
		policy.Order = merge.DefaultPolicy().Order
	}

	results := sources.LoadAll(policy.Order, cfg.Data.SourcePaths())
	ts, summaries := merge.Run(log, results, policy)
	ts = enrich.Talks(log, ts, time.Now())

	if err := talks.SaveDocument(cfg.Data.SpeakingPath(), &talks.Document{Talks: ts}); err != nil {
		return nil, summaries, err
	}
	return ts, summaries, nil
}

func videoPolicy(cfg *config.Config) videomatch.Policy {
	policy := videomatch.DefaultPolicy(cfg.Videos.AuthorPattern)
	if cfg.Videos.AutoApplyScore > 0 {
		policy.AutoApplyScore = cfg.Videos.AutoApplyScore
	}
	if cfg.Videos.TopicOverlapFloor > 0 {
		policy.TopicOverlapFloor = cfg.Videos.TopicOverlapFloor
	}
	if cfg.Videos.SuggestFloor > 0 {
		policy.SuggestFloor = cfg.Videos.SuggestFloor
	}
	return policy
}

// beginHistory opens the run-history store when enabled. A history failure
// never blocks the pipeline.
func beginHistory(ctx context.Context, log *slog.Logger, cfg *config.Config, command string) (*history.Store, string) {
	if !cfg.History.Enabled {
		return nil, ""
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Warn("history disabled for this run", "error", err)
		return nil, ""
	}
	runID, err := store.BeginRun(ctx, command)
	if err != nil {
		log.Warn("history disabled for this run", "error", err)
		store.Close()
		return nil, ""
	}
	return store, runID
}

func finishHistory(ctx context.Context, log *slog.Logger, store *history.Store, runID string, total int, runErr error) {
	if err := store.FinishRun(ctx, runID, total, runErr); err != nil {
		log.Warn("failed to finish history run", "error", err)
	}
	store.Close()
}

func mustApp() (*config.Config, *slog.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(fmt.Sprintf("Failed to load config: %v", err))
	}
	log := logutil.Setup(cfg.Env)
	return cfg, log
}

// Result is the common command outcome shape for JSON output.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func reportResult(r Result) {
	if jsonOutput {
		printJSON(r)
		return
	}
	fmt.Printf("✓ %s\n", r.Message)
}

func fatal(msg string) {
	if jsonOutput {
		printJSON(Result{OK: false, Message: msg})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
