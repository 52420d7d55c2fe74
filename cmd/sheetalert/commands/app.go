package commands

import (
	"context"
	"fmt"

	"github.com/wonny/sheetalert/internal/api/handlers"
	"github.com/wonny/sheetalert/internal/auth"
	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/internal/external/quotes"
	"github.com/wonny/sheetalert/internal/external/sheets"
	"github.com/wonny/sheetalert/internal/notify"
	"github.com/wonny/sheetalert/internal/realtime"
	"github.com/wonny/sheetalert/internal/scheduler"
	"github.com/wonny/sheetalert/internal/scheduler/jobs"
	"github.com/wonny/sheetalert/internal/store/memory"
	"github.com/wonny/sheetalert/internal/store/postgres"
	"github.com/wonny/sheetalert/internal/tracker"
	"github.com/wonny/sheetalert/pkg/config"
	"github.com/wonny/sheetalert/pkg/database"
	"github.com/wonny/sheetalert/pkg/httputil"
	"github.com/wonny/sheetalert/pkg/logger"
	"github.com/wonny/sheetalert/pkg/redis"
)

// app holds every wired component. Commands build one and use the parts
// they need.
type app struct {
	cfg    *config.Config
	logger *logger.Logger

	db    *database.DB // nil with the memory store
	redis *redis.Client
	store contracts.Store

	oauth      *auth.OAuth
	sessions   *auth.Sessions
	memSession *auth.MemorySessions // nil when sessions live in redis
	quoteCache *quotes.CachedSource // nil when disabled

	accounts   *tracker.Accounts
	reconciler *tracker.Reconciler
	refresher  *tracker.Refresher
	sheets     *sheets.Service
	hub        *realtime.Hub
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires the service
// ⭐ SSOT: 의존성 조립은 이 함수에서만
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 1. Logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, logger: log}

	// 2. Storage
	switch cfg.StoreDriver {
	case "memory":
		a.store = memory.New()
		log.Warn("Using in-memory store, state is lost on exit")
	default:
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.store = postgres.New(db.Pool)
		log.Info("Connected to database")
	}

	// 3. Redis (optional)
	rc, err := redis.New(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc

	// 4. Price source
	httpClient := httputil.New(log, cfg.Quotes.Timeout).
		WithRateLimiter(redis.NewRateLimiter(rc, "sheetalert:ratelimit"), redis.QuotesRateLimit(cfg.Quotes.RateLimit))
	source, err := quotes.NewSource(cfg.Quotes, httpClient, log)
	if err != nil {
		a.close()
		return nil, err
	}
	if cfg.Quotes.CacheTTL > 0 {
		a.quoteCache = quotes.NewCachedSource(source, cfg.Quotes.CacheTTL, log)
		source = a.quoteCache
	}

	// 5. Google
	a.oauth = auth.NewOAuth(cfg, log)
	a.sheets = sheets.NewService(a.oauth, cfg.Sheets, log)

	// 6. Sessions
	var sessionStore auth.SessionStore
	if rc.Enabled() {
		sessionStore = auth.NewRedisSessions(rc)
	} else {
		a.memSession = auth.NewMemorySessions()
		sessionStore = a.memSession
	}
	a.sessions = auth.NewSessions(sessionStore, cfg.SessionTTL, cfg.Env == "production", log)

	// 7. Domain
	a.accounts = tracker.NewAccounts(a.store, log)
	a.reconciler = tracker.NewReconciler(a.store, source, log)
	a.hub = realtime.NewHub(log)

	var mailer contracts.Mailer = notify.NewSMTPMailer(cfg.Mail)
	if !cfg.Mail.Enabled {
		mailer = notify.NewLogMailer(log)
	}

	a.refresher = tracker.NewRefresher(tracker.RefresherConfig{
		Store:       a.store,
		Updater:     tracker.NewPriceUpdater(a.store, source, log),
		Credentials: a.accounts,
		Sheets:      a.sheets,
		Notifier:    notify.NewDispatcher(mailer, cfg.Mail.Subject, cfg.URL("/settings"), log),
		Publisher:   a.hub,
		Concurrency: cfg.Sheets.WriteConcurrency,
		Logger:      log,
	})

	return a, nil
}

// newScheduler registers the periodic jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.logger)

	if err := sched.AddJob(jobs.NewRefreshJob(a.refresher, a.cfg.Scheduler.RefreshSchedule, a.logger)); err != nil {
		return nil, fmt.Errorf("add refresh job: %w", err)
	}

	// Redis expires sessions on its own
	targets := map[string]jobs.Cleaner{}
	if a.memSession != nil {
		targets["sessions"] = a.memSession
	}
	if a.quoteCache != nil {
		targets["quotes"] = a.quoteCache
	}
	if len(targets) > 0 {
		if err := sched.AddJob(jobs.NewCleanupJob(targets, a.cfg.Scheduler.CleanupSchedule, a.logger)); err != nil {
			return nil, fmt.Errorf("add cleanup job: %w", err)
		}
	}

	return sched, nil
}

func (a *app) healthChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if a.db != nil {
		checks["database"] = a.db
	}
	if a.redis.Enabled() {
		checks["redis"] = a.redis
	}
	return checks
}

func (a *app) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// migrate creates the postgres schema when the postgres store is in use
func (a *app) migrate(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Migrate(ctx)
}
