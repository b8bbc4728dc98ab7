package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/api"
	"github.com/JakeFAU/music-crawler/internal/app"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl [profiles...]",
		Short: "Crawl the rating listings of RYM profiles",
		Long: `Crawls each profile's rating listing page by page until
crawler.failure_threshold consecutive pages fail. Profiles given as arguments
replace crawler.profiles from the configuration.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	profiles := cfg.Crawler.Profiles
	if len(args) > 0 {
		profiles = args
	}
	if len(profiles) == 0 {
		return errors.New("no profiles to crawl: pass them as arguments or set crawler.profiles")
	}

	runID, err := appInstance.NewRunID()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	deps, err := appInstance.CrawlDeps(cmd.Context(), runID)
	if err != nil {
		return err
	}

	var opts []app.RunnerOption
	if pub := appInstance.Publisher(); pub != nil {
		opts = append(opts, app.WithPublisher(pub))
	}
	runner := app.NewRunner(deps, app.RunnerConfig{
		Profiles:         profiles,
		FailureThreshold: cfg.Crawler.FailureThreshold,
		Topic:            cfg.PubSub.TopicName,
	}, runID, opts...)

	ctx := cmd.Context()
	if cfg.Server.Enabled {
		serverCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()
		server := api.NewServer(runner, logger.Named("api"))
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		go func() {
			if err := server.ListenAndServe(serverCtx, addr); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		logger.Info("status server listening", zap.String("addr", addr))
	}

	runLedger, summary, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}
	for _, e := range summary.Failures {
		logger.Warn("ledger failure",
			zap.String("url", e.URL),
			zap.String("description", e.Description),
			zap.String("error", e.Error),
		)
	}
	logger.Info("crawl command finished",
		zap.String("run_id", runID),
		zap.Int("entries", summary.Summary.Total),
		zap.Int("failed", summary.Summary.Failed),
	)
	if cfg.Crawler.FailOnLedgerErrors && runLedger.HasFailures() {
		return fmt.Errorf("%d failed entries: %w", summary.Summary.Failed, app.ErrLedgerFailures)
	}
	return nil
}
