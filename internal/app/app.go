package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stagepass/backoffice/internal/config"
	"github.com/stagepass/backoffice/internal/domain/contact"
	"github.com/stagepass/backoffice/internal/domain/convocation"
	"github.com/stagepass/backoffice/internal/domain/event"
	"github.com/stagepass/backoffice/internal/infrastructure/account/ident"
	"github.com/stagepass/backoffice/internal/infrastructure/jobqueue"
	"github.com/stagepass/backoffice/internal/infrastructure/mailer"
	cacherepo "github.com/stagepass/backoffice/internal/infrastructure/repository/cache"
	"github.com/stagepass/backoffice/internal/infrastructure/repository/memory"
	"github.com/stagepass/backoffice/internal/infrastructure/repository/postgres"
	"github.com/stagepass/backoffice/internal/interfaces/httpapi"
	"github.com/stagepass/backoffice/internal/platform/cache"
	idgen "github.com/stagepass/backoffice/internal/platform/id"
	"github.com/stagepass/backoffice/internal/platform/logging"
	"github.com/stagepass/backoffice/internal/platform/resilience"
	"github.com/stagepass/backoffice/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
)

// App bundles the HTTP server with the background dispatch scheduler and the
// resources both need to release on shutdown.
type App struct {
	Server    *http.Server
	Scheduler *usecase.DispatchScheduler

	closers []func(context.Context) error
}

func New(cfg config.Config, appLogger *logging.Logger, httpLogger *slog.Logger) (*App, error) {
	if appLogger == nil {
		appLogger = logging.Default()
	}
	if httpLogger == nil {
		httpLogger = slog.Default()
	}

	a := &App{}

	eventRepo, contactRepo, batchRepo, err := a.buildRepositories(cfg, httpLogger)
	if err != nil {
		return nil, err
	}

	if cfg.CacheEnabled {
		store := cache.NewStore(cfg.CacheTTL)
		eventRepo = cacherepo.NewEventRepository(eventRepo, store)
		contactRepo = cacherepo.NewContactRepository(contactRepo, store)
	}

	var mail usecase.Mailer
	if cfg.SendGridEnabled {
		mail = mailer.NewSendGridMailer(mailer.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
			Timeout:   cfg.SendGridTimeout,
			Breaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.SendGridCircuitEnabled,
				FailureThreshold: cfg.SendGridCircuitFailure,
				OpenTimeout:      cfg.SendGridCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.SendGridCircuitHalfOpenMax,
			},
		}, httpLogger)
	} else {
		mail = mailer.NewConsoleMailer(httpLogger)
	}

	var jobs usecase.JobQueue
	if cfg.QStashEnabled {
		jobs = jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
		}, httpLogger)
	}

	dispatchSvc := usecase.NewDispatchService(
		batchRepo,
		contactRepo,
		eventRepo,
		mail,
		jobs,
		idgen.NewRandomGenerator(),
		appLogger,
		cfg.DispatchMaxWorkers,
	)
	historySvc := usecase.NewHistoryService(batchRepo, eventRepo)
	directorySvc := usecase.NewDirectoryService(eventRepo, contactRepo)

	if cfg.SchedulerEnabled {
		a.Scheduler = usecase.NewDispatchScheduler(dispatchSvc, batchRepo, cfg.SchedulerInterval, appLogger)
	}

	identClient := ident.NewClient(
		&http.Client{Timeout: cfg.IdentTimeout},
		cfg.IdentBaseURL,
		cfg.IdentIntrospectPath,
		cfg.IdentAdminKey,
		resilience.CircuitBreakerConfig{
			Enabled:          cfg.IdentCircuitEnabled,
			FailureThreshold: cfg.IdentCircuitFailureCount,
			OpenTimeout:      cfg.IdentCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.IdentCircuitHalfOpenMaxReq,
		},
		httpLogger,
	)

	handler := httpapi.NewHandler(dispatchSvc, historySvc, directorySvc, httpLogger)
	router := httpapi.NewRouter(
		handler,
		identClient,
		httpLogger,
		cfg.SwaggerEnabled,
		cfg.CORSAllowedOrigins,
		cfg.InternalJobToken,
	)

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if a.Server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return a, nil
}

// Start launches the dispatch scheduler. The HTTP server is left to the
// caller so it owns ListenAndServe and shutdown ordering.
func (a *App) Start(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Start(ctx)
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := a.Server.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if a.Scheduler != nil {
		a.Scheduler.Wait()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// buildRepositories picks the storage backend. DB_URL=memory (or empty) runs
// on the seeded in-memory repositories, anything else is treated as a
// Postgres DSN.
func (a *App) buildRepositories(cfg config.Config, logger *slog.Logger) (event.Repository, contact.Repository, convocation.Repository, error) {
	dbURL := strings.TrimSpace(cfg.DBURL)
	if dbURL == "" || strings.HasPrefix(dbURL, "memory") {
		logger.Info("using in-memory repositories")
		return memory.NewEventRepository(memory.SeedEvents()),
			memory.NewContactRepository(memory.SeedContacts()),
			memory.NewConvocationRepository(),
			nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	return postgres.NewEventRepository(db),
		postgres.NewContactRepository(db),
		postgres.NewConvocationRepository(db),
		nil
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)

	attrs := []attribute.KeyValue{attribute.String("db.system", "postgresql")}
	if name := dbNameFromURL(dsn); name != "" {
		attrs = append(attrs, attribute.String("db.name", name))
	}

	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithAttributes(attrs...),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
