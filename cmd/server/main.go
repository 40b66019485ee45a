package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/retroboardhq/retroboard/internal/api"
	"github.com/retroboardhq/retroboard/internal/app"
	"github.com/retroboardhq/retroboard/internal/app/maintenance"
	"github.com/retroboardhq/retroboard/internal/board"
	"github.com/retroboardhq/retroboard/internal/database"
	"github.com/retroboardhq/retroboard/internal/handlers"
	"github.com/retroboardhq/retroboard/internal/realtime"
	"github.com/retroboardhq/retroboard/internal/services"
	"github.com/retroboardhq/retroboard/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("retroboard-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	retroSvc, err := services.NewRetroService(db)
	if err != nil {
		return fmt.Errorf("initialise retro service: %w", err)
	}
	itemSvc, err := services.NewItemService(db)
	if err != nil {
		return fmt.Errorf("initialise item service: %w", err)
	}
	participantSvc, err := services.NewParticipantService(db)
	if err != nil {
		return fmt.Errorf("initialise participant service: %w", err)
	}
	actionSvc, err := services.NewActionItemService(db)
	if err != nil {
		return fmt.Errorf("initialise action item service: %w", err)
	}

	hub := realtime.NewHub()
	engine := board.NewService(hub, participantSvc, hub.Occupancy)

	dispatcher := handlers.NewRealtimeHandler(hub, engine, itemSvc, retroSvc)
	hub.Bind(realtime.Hooks{
		OnJoin: func(sessionID, userID string) {
			engine.HandleJoin(context.Background(), sessionID, userID)
		},
		OnLeave: func(sessionID, userID string) {
			engine.HandleLeave(context.Background(), sessionID, userID)
		},
		OnFrame: dispatcher.HandleFrame,
	})

	if cfg.Board.PresenceSweep.Enabled {
		sweeper := maintenance.NewSweeper(participantSvc, hub,
			maintenance.WithSchedule(cfg.Board.PresenceSweep.Schedule),
			maintenance.WithMinIdle(cfg.Board.PresenceSweep.MinIdle))
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("start presence sweep: %w", err)
		}
		defer func() {
			stopCtx := sweeper.Stop()
			if err := sweeper.RunOnce(stopCtx); err != nil {
				log.Warn("presence sweep shutdown pass failed", zap.Error(err))
			}
		}()
	}

	router, err := api.NewRouter(db, cfg, api.Deps{
		Hub:          hub,
		Engine:       engine,
		Retros:       retroSvc,
		Items:        itemSvc,
		Participants: participantSvc,
		Actions:      actionSvc,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}
	return app.LoadConfig(path)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.DatabaseSettings())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.MigrateAll(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle unavailable at shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
