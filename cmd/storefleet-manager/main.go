package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/storefleet/internal/api"
	"github.com/user/storefleet/internal/config"
	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/export/sheets"
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/manager"
	"github.com/user/storefleet/internal/storage/postgres"
)

// idleSleep is how long the manager waits when no store is ready for ETL or
// export. The queues fill once a day, so a long pause is fine.
const idleSleep = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	service := cfg.ManagerService()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := postgres.Connect(ctx, cfg.ConnString())
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	log := logger.NewDatabaseLogger(ctx, store, service,
		logger.NewDefaultLogger(service))

	devSpreadsheetID := ""
	if cfg.IsDev() {
		devSpreadsheetID = cfg.DefaultTechTableID
	}
	mgr := manager.New(service, cfg.Version, devSpreadsheetID,
		store, sheets.NewUploader(cfg.GoogleCredentialsFile), log)

	state := engine.NewState()
	srv := api.NewServer(service, cfg.Version, cfg.MicroserviceSecretKey,
		state, nil, log)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Routes()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("control api stopped", "error", err)
			cancel()
		}
	}()
	defer httpSrv.Shutdown(context.Background())

	log.Info("manager started", "version", cfg.Version, "listen", cfg.ListenAddr)
	runLoop(ctx, state, mgr, log)
	log.Info("manager exiting")
	return nil
}

func runLoop(ctx context.Context, state *engine.State, mgr *manager.Manager, log logger.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		if state.Stopped() {
			state.SetRunning(false)
			state.SetLastResponse("loop stopped")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		state.SetRunning(true)
		worked := mgr.RunIteration(ctx)
		if worked {
			state.SetLastResponse("iteration finished")
			continue
		}
		state.SetLastResponse("queues empty")
		select {
		case <-ctx.Done():
			return
		case <-state.StopRequested():
			log.Info("stop requested")
			state.SetRunning(false)
		case <-time.After(idleSleep):
		}
	}
}
