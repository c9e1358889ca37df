package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xxxsen/textstat/internal/analysiscache"
	"github.com/xxxsen/textstat/internal/config"
	"github.com/xxxsen/textstat/internal/contentstore"
	"github.com/xxxsen/textstat/internal/db"
	"github.com/xxxsen/textstat/internal/handler"
	"github.com/xxxsen/textstat/internal/job"
	"github.com/xxxsen/textstat/internal/jobstore"
	"github.com/xxxsen/textstat/internal/middleware"
	"github.com/xxxsen/textstat/internal/pipeline"
	"github.com/xxxsen/textstat/internal/repo"
	"github.com/xxxsen/textstat/internal/schedule"
	"github.com/xxxsen/textstat/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "textstat",
		Short: "textstat file analysis server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run textstat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			conn, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			return runServer(cfg, conn)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply catalog migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			conn, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			logutil.GetLogger(context.Background()).Info("migrations applied", zap.String("driver", cfg.Database.Driver))
			return conn.Close()
		},
	}

	for _, c := range []*cobra.Command{runCmd, migrateCmd} {
		c.Flags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(newAnalyzeLocalCmd())

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func openCatalog(cfg *config.Config) (*sqlx.DB, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return conn, nil
}

const shutdownTimeout = 10 * time.Second

func runServer(cfg *config.Config, conn *sqlx.DB) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logutil.GetLogger(ctx)
	log.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("content_store", cfg.ContentStore.Type),
		zap.String("job_store", cfg.JobStore.Type),
	)

	store, err := contentstore.New(cfg.ContentStore)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init content store: %w", err)
	}
	jobs, err := jobstore.New(cfg.JobStore)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init job store: %w", err)
	}
	defer func() {
		err = multierr.Combine(err, jobs.Close(), conn.Close())
	}()

	catalog := repo.NewCatalog(conn)
	analysis := cfg.Analysis
	p := pipeline.New(
		pipeline.Config{
			Workers:   analysis.Workers,
			QueueSize: analysis.QueueSize,
			Retry: pipeline.RetryPolicy{
				MaxAttempts: analysis.MaxAttempts,
				Delay:       time.Duration(analysis.RetryDelay) * time.Millisecond,
			},
		},
		pipeline.NewHTTPFetcher(analysis.FileServiceURL, time.Duration(analysis.FetchTimeout)*time.Millisecond, analysis.RateLimit),
		catalog,
		analysiscache.Wrap(catalog, analysis.CacheSize, time.Duration(analysis.CacheTTL)*time.Second),
		jobs,
	)
	p.Start(ctx)
	defer p.Stop()

	scheduler := schedule.NewCronScheduler()
	retention := time.Duration(cfg.JobStore.RetentionHours) * time.Hour
	if err := scheduler.AddJob(job.NewJobCleanupJob(jobs, retention), cfg.JobStore.CleanupSpec); err != nil {
		return fmt.Errorf("schedule job cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Files:     handler.NewFileHandler(service.NewFileService(catalog, store), analysis.MaxUploadBytes),
		Analyses:  handler.NewAnalysisHandler(service.NewAnalysisService(p, catalog)),
		RateLimit: cfg.RateLimit,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	srv := &http.Server{Addr: addr, Handler: engine}
	log.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server stopping...")
	// Workers fetch content through this server, so it keeps serving until
	// the queue is drained. Submissions after Stop are rejected as queue-full.
	p.Stop()
	log.Info("analysis pipeline drained")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
