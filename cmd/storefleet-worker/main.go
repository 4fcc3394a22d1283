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
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/storage/postgres"
	"github.com/user/storefleet/internal/tasks"
)

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := postgres.Connect(ctx, cfg.ConnString())
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	log := logger.NewDatabaseLogger(ctx, store, cfg.Worker,
		logger.NewDefaultLogger(cfg.Worker))

	worker := engine.NewWorker(cfg.Worker, cfg.Version, store,
		func(storeID int64, apiToken string) []engine.Task {
			return tasks.NewChain(storeID, apiToken, store, log)
		}, log)

	state := engine.NewState()
	srv := api.NewServer(cfg.Worker, cfg.Version, cfg.MicroserviceSecretKey,
		state, worker.StoreCount, log)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Routes()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("control api stopped", "error", err)
			cancel()
		}
	}()
	defer httpSrv.Shutdown(context.Background())

	log.Info("worker started", "version", cfg.Version, "listen", cfg.ListenAddr)
	runLoop(ctx, state, worker, log)
	log.Info("worker exiting")
	return nil
}

// runLoop drives the lease multiplexer. A short tick keeps up to fifteen
// stores moving; an idle iteration backs off so an empty queue costs nothing.
func runLoop(ctx context.Context, state *engine.State, worker *engine.Worker, log logger.Logger) {
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
		worked := worker.RunIteration(ctx)
		state.SetLastResponse(fmt.Sprintf("stores held: %d", worker.StoreCount()))

		pause := engine.TickInterval
		if !worked {
			pause = engine.IdleSleep
		}
		select {
		case <-ctx.Done():
			return
		case <-state.StopRequested():
			log.Info("stop requested, finishing current leases")
			state.SetRunning(false)
		case <-time.After(pause):
		}
	}
}
