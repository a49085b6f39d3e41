package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/diveops-backend/internal/data/db"
	"github.com/yungbote/diveops-backend/internal/data/repos"
	server "github.com/yungbote/diveops-backend/internal/http"
	"github.com/yungbote/diveops-backend/internal/observability"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/envutil"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *server.Server
	Cfg      Config
	Repos    repos.Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

// New builds the full graph without starting background work. The returned App
// owns the database connection and clients; call Close when done.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv(cfg.ServiceName))
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	theDB := pg.DB()

	repoSet := repos.New(theDB, log)
	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	svcs, err := wireServices(theDB, log, cfg, repoSet, clients)
	if err != nil {
		_ = clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	h := wireHandlers(theDB, repoSet, svcs)

	srv := server.NewServer(server.RouterConfig{
		Log:              log,
		ServiceName:      cfg.ServiceName,
		CORSOrigins:      cfg.CORSOrigins,
		ContentHandler:   h.Content,
		IntegrityHandler: h.Integrity,
		HealthHandler:    h.Health,
		Metrics:          metrics,
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       srv,
		Cfg:          cfg,
		Repos:        repoSet,
		Clients:      clients,
		Services:     svcs,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the integrity scheduler and the metrics collectors.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
	a.Services.Scheduler.Start(ctx)
}

// Run serves HTTP until Shutdown is called.
func (a *App) Run() error {
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Stop()
	}
	var errs []error
	errs = append(errs, a.Clients.Close())
	if a.pg != nil {
		errs = append(errs, a.pg.Close())
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.otelShutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		a.Log.Warn("Shutdown finished with errors", "error", err)
	}
	a.Log.Sync()
}
