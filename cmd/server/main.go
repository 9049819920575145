package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/cluster"
	"github.com/DoyleJ11/poipoi-backend/internal/config"
	"github.com/DoyleJ11/poipoi-backend/internal/httpapi"
	"github.com/DoyleJ11/poipoi-backend/internal/hub"
	"github.com/DoyleJ11/poipoi-backend/internal/logging"
	"github.com/DoyleJ11/poipoi-backend/internal/relay"
	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/internal/store"
	"github.com/DoyleJ11/poipoi-backend/internal/store/postgres"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roomOpts := []room.Option{room.WithCapacity(cfg.MaxPlayers)}
	hubOpts := []hub.Option{hub.WithLogger(log)}
	var closers []func() error

	if cfg.ConsulAddr != "" {
		client, err := cluster.NewClient(cfg.ConsulAddr, log)
		if err != nil {
			return err
		}
		roomOpts = append(roomOpts, room.WithStore(cluster.NewPropertyStore(client, "")))
		hubOpts = append(hubOpts, hub.WithDirectory(cluster.NewDirectory(client, "", cfg.ServerURL)))
	}

	if cfg.NATSURL != "" {
		nc, err := relay.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		roomOpts = append(roomOpts, room.WithMirror(relay.NewMirror(nc)))
		closers = append(closers, func() error { return nc.Drain() })
	}

	var records store.ResultStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		records = pg
		roomOpts = append(roomOpts, room.WithArchive(pg))
		closers = append(closers, pg.Close)
	}
	defer func() {
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
	}()

	h := hub.NewHub(ctx, append(hubOpts, hub.WithRoomOptions(roomOpts...))...)

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(h, records, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
