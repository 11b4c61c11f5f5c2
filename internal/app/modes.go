package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/FilipeRosar/oddsscanner/internal/config"
	"github.com/FilipeRosar/oddsscanner/internal/detector"
	"github.com/FilipeRosar/oddsscanner/internal/enrich"
	"github.com/FilipeRosar/oddsscanner/internal/notify"
	"github.com/FilipeRosar/oddsscanner/internal/pipeline"
	"github.com/FilipeRosar/oddsscanner/internal/platform/apifootball"
	"github.com/FilipeRosar/oddsscanner/internal/platform/oddsapi"
	"github.com/FilipeRosar/oddsscanner/internal/reconcile"
	"github.com/FilipeRosar/oddsscanner/internal/server"
	"github.com/FilipeRosar/oddsscanner/internal/server/handler"
	"github.com/FilipeRosar/oddsscanner/internal/server/ws"
	"github.com/FilipeRosar/oddsscanner/internal/service"
)

// shutdownTimeout bounds the graceful HTTP drain.
const shutdownTimeout = 5 * time.Second

// WorkerMode runs only the sync scheduler.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	scheduler := a.buildScheduler(deps, a.newDetector(), nil)
	g.Go(func() error {
		return scheduler.RunLoop(ctx)
	})
	return g.Wait()
}

// ServerMode serves the read API and the alert stream. Cycles run elsewhere,
// so the sync trigger route is not registered.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, a.newDetector(), nil, nil)
	return g.Wait()
}

// FullMode runs the scheduler and the HTTP server in one process. The
// server's sync trigger feeds the scheduler directly.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	det := a.newDetector()

	trigger := make(chan struct{}, 1)
	scheduler := a.buildScheduler(deps, det, trigger)
	g.Go(func() error {
		return scheduler.RunLoop(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, det, trigger, scheduler)
	}

	return g.Wait()
}

// newDetector builds the detector from the signal thresholds.
func (a *App) newDetector() *detector.Detector {
	s := a.cfg.Signals
	return detector.New(detector.Config{
		SurebetThreshold:  decimal.NewFromFloat(s.SurebetThreshold),
		ProfitTolerance:   decimal.NewFromFloat(s.ProfitTolerance),
		DropLogPercent:    decimal.NewFromFloat(s.DropLogPercent),
		DropNotifyPercent: decimal.NewFromFloat(s.DropNotifyPercent),
	})
}

// buildScheduler assembles the sync cycle and its scheduler. trigger may be
// nil.
func (a *App) buildScheduler(deps *Dependencies, det *detector.Detector, trigger <-chan struct{}) *pipeline.SyncScheduler {
	oddsCfg := a.cfg.OddsAPI
	source := oddsapi.NewClient(oddsapi.Options{
		BaseURL: oddsCfg.BaseURL,
		APIKey:  oddsCfg.APIKey,
		Regions: oddsCfg.Regions,
		Timeout: oddsCfg.Timeout.Duration,
	}, a.logger)

	reconciler := reconcile.New(reconcile.Config{
		Epsilon:       decimal.NewFromFloat(a.cfg.Signals.OddEpsilon),
		DefaultLeague: a.cfg.Sync.League,
	}, det, a.logger)

	cycleDeps := pipeline.CycleDeps{
		Source:     source,
		Catalog:    deps.Catalog,
		Reconciler: reconciler,
		Cache:      deps.MatchCache,
		Alerts:     notify.NewAlertDispatcher(deps.Notifier, deps.SignalBus, a.cfg.Notify.SiteURL, a.logger),
		Archiver:   deps.FeedArchiver,
	}
	if e := a.newEnricher(); e != nil {
		cycleDeps.Enricher = e
	}

	syncCfg := a.cfg.Sync
	cycle := pipeline.NewSyncCycle(cycleDeps, oddsCfg.SportKeys, oddsCfg.Timeout.Duration, a.logger).
		WithEnrichBudget(syncCfg.EnrichBudget.Duration)

	scheduler := pipeline.NewSyncScheduler(cycle, deps.LockManager, pipeline.SchedulerConfig{
		Interval:       syncCfg.Interval.Duration,
		CycleTimeout:   syncCfg.CycleTimeout.Duration,
		MaxRetries:     uint64(max(syncCfg.MaxRetries, 0)),
		RetryBaseDelay: syncCfg.RetryBaseDelay.Duration,
		LockTTL:        syncCfg.LockTTL.Duration,
	}, a.logger)
	if trigger != nil {
		scheduler = scheduler.WithTrigger(trigger)
	}
	return scheduler
}

// newEnricher returns nil when enrichment is disabled.
func (a *App) newEnricher() *enrich.Enricher {
	fc := a.cfg.FootballAPI
	if !fc.Enabled {
		return nil
	}
	client := apifootball.NewClient(apifootball.Options{
		BaseURL:           fc.BaseURL,
		APIKey:            fc.APIKey,
		Timeout:           fc.Timeout.Duration,
		RequestsPerMinute: fc.RequestsPerMinute,
	}, a.logger)
	return enrich.New(client, enrich.Config{
		LeagueIDs:  fc.LeagueIDs,
		Season:     fc.Season,
		MaxMatches: fc.MaxMatches,
	}, a.logger)
}

// startHTTPServer adds the HTTP server, its graceful shutdown and the
// WebSocket hub to the errgroup. trigger and scheduler are set only when the
// worker runs in this process; then POST /api/sync/trigger requests one extra
// cycle and GET /api/status reports the latest one.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	det *detector.Detector,
	trigger chan<- struct{},
	scheduler *pipeline.SyncScheduler,
) {
	views := service.NewViewBuilder(det, decimal.NewFromFloat(a.cfg.Signals.ValueBetEdge))
	matches := service.NewMatchService(deps.Catalog, deps.MatchCache, views, a.logger)
	subscribers := service.NewSubscriberService(deps.Subscribers, a.logger)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Matches:   handler.NewMatchHandler(matches, a.logger),
		Subscribe: handler.NewSubscribeHandler(subscribers, a.logger),
	}
	if trigger != nil {
		handlers.Sync = handler.NewSyncHandler(trigger, a.logger)
	}

	hub := ws.NewHub(deps.SignalBus, notify.AlertChannel, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	var syncStatus handler.SyncStatusSource
	if scheduler != nil {
		syncStatus = scheduler
	}
	handlers.Status = handler.NewStatusHandler(a.cfg.Mode, syncStatus, hub)

	sc := a.cfg.Server
	srv := server.NewServer(server.Config{
		Port:            sc.Port,
		CORSOrigins:     sc.CORSOrigins,
		AdminAPIKey:     sc.AdminAPIKey,
		SubscribeLimit:  sc.SubscribeRateLimit,
		SubscribeWindow: sc.SubscribeRateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", sc.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", sc.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// logConfig prints the effective configuration with secrets masked.
func logConfig(logger *slog.Logger, cfg *config.Config) {
	red := config.RedactedConfig(cfg)
	logger.Debug("effective configuration",
		slog.String("mode", red.Mode),
		slog.Any("odds_api", red.OddsAPI),
		slog.Any("football_api", red.FootballAPI),
		slog.Any("sync", red.Sync),
		slog.Any("signals", red.Signals),
		slog.Any("server", red.Server),
		slog.Bool("s3_enabled", red.S3.Enabled),
		slog.Any("notify_events", red.Notify.Events),
	)
}
