package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vietanh2810/jobshadow-api/internal/api"
	"github.com/vietanh2810/jobshadow-api/internal/config"
	"github.com/vietanh2810/jobshadow-api/internal/db"
	"github.com/vietanh2810/jobshadow-api/internal/jobrunner"
	"github.com/vietanh2810/jobshadow-api/internal/logger"
	"github.com/vietanh2810/jobshadow-api/internal/metrics"
	"github.com/vietanh2810/jobshadow-api/internal/repository"
	"github.com/vietanh2810/jobshadow-api/internal/repository/dao"
	"github.com/vietanh2810/jobshadow-api/internal/service"
)

const (
	DefaultConfigPath = "./cmd/app/config.yml"
	shutdownTimeout   = 30 * time.Second
)

type App struct {
	Config *config.AppConfig
	DB     *gorm.DB
}

// Bootstrap loads the config, sets up logging and opens the database.
func Bootstrap(configPath string) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return nil, fmt.Errorf("failed to initialize logger -> %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database -> %w", err)
	}

	return &App{Config: conf, DB: postgresDB}, nil
}

func (a *App) Migrate() error {
	if err := dao.InitTables(a.DB); err != nil {
		return fmt.Errorf("failed to migrate database -> %w", err)
	}
	zap.L().Info("database schema is up to date")

	return nil
}

// LotteryService builds the lottery service without a queue. Serve wires
// the runner; other commands only read.
func (a *App) LotteryService() *service.LotteryService {
	repo := repository.NewLotteryRepository(dao.NewLotteryDAO(a.DB))
	catalog := repository.NewCatalogRepository(dao.NewCatalogDAO(a.DB))

	return service.NewLotteryService(repo, catalog, service.LotteryConfig{
		ProgressBatch:   a.Config.Lottery.ProgressBatch,
		CommitTimeout:   a.Config.Lottery.CommitTimeout,
		CommitRetries:   a.Config.Lottery.CommitRetries,
		CommitBatchSize: a.Config.Lottery.CommitBatchSize,
	})
}

func (a *App) AuthService() *service.AuthService {
	return service.NewAuthService(repository.NewUserRepository(dao.NewUserDAO(a.DB)))
}

// Start serves the API until ctx is done, then drains the job runner.
func (a *App) Start(ctx context.Context) error {
	if err := a.Migrate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewPrometheus(reg, "")

	lotterySvc := a.LotteryService()
	lotterySvc.UseMetrics(collector)

	// One instance per database: recovery fails every RUNNING job.
	recovered, err := lotterySvc.RecoverInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted jobs -> %w", err)
	}
	if recovered > 0 {
		zap.L().Warn("recovered interrupted lottery jobs", zap.Int("count", recovered))
	}

	runner := jobrunner.New(a.Config.Lottery.Workers, a.Config.Lottery.QueueSize, lotterySvc, jobrunner.WithMetrics(collector))
	lotterySvc.UseQueue(runner)
	runner.Start()
	go lotterySvc.RunReaper(ctx, a.Config.Lottery.ReapInterval)

	a.Config.OnChange(func(e fsnotify.Event) {
		zap.L().Info("config file changed, restart to apply", zap.String("file", e.Name), zap.String("op", e.Op.String()))
	})

	s := api.NewServer(a.Config, a.DB, lotterySvc, reg)
	srv := &http.Server{
		Addr:              ":" + s.Config.API.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zap.L().Info(fmt.Sprintf("starting server at %v", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		zap.L().Error("failed to shut down the server", zap.Error(shutdownErr))
	}
	if stopErr := runner.Stop(shutdownCtx); stopErr != nil {
		zap.L().Warn("job runner did not drain, unfinished jobs are recovered on next start", zap.Error(stopErr))
	}
	lotterySvc.ReapFailed(shutdownCtx)

	if err != nil {
		return fmt.Errorf("failed to start the server -> %w", err)
	}

	return nil
}
