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

	"go.uber.org/zap"

	"github.com/park285/cheese-checkers/internal/admin"
	"github.com/park285/cheese-checkers/internal/archive"
	appcfg "github.com/park285/cheese-checkers/internal/config"
	"github.com/park285/cheese-checkers/internal/livestore"
	"github.com/park285/cheese-checkers/internal/match"
	"github.com/park285/cheese-checkers/internal/obslog"
	"github.com/park285/cheese-checkers/internal/render"
	"github.com/park285/cheese-checkers/internal/server"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer obslog.Sync()

	if err := run(); err != nil {
		obslog.L().Error("fatal", zap.Error(err))
		obslog.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := obslog.L()

	var (
		index    match.Index
		archiver match.Archiver
		opts     []admin.Option
	)

	// Live match index (Redis-backed)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := livestore.Open(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("live index init error: %w", err)
		}
		defer store.Close()
		index = store
		opts = append(opts, admin.WithLiveIndex(store))
	}

	// Finished match archive (Postgres)
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("archive init error: %w", err)
		}
		defer repo.Close()
		archiver = repo
		opts = append(opts, admin.WithHistory(repo))
	}

	var regOpts []match.Option
	var pub *match.Publisher
	pubDone := make(chan struct{})
	if index != nil || archiver != nil {
		pub = match.NewPublisher(index, archiver)
		regOpts = append(regOpts, match.WithNotifier(pub))
		go func() {
			defer close(pubDone)
			if err := pub.Run(context.Background()); err != nil {
				log.Warn("publisher_stopped", zap.Error(err))
			}
		}()
	} else {
		close(pubDone)
	}
	reg := match.NewRegistry(regOpts...)

	games := server.New(reg, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		PingInterval:   cfg.PingInterval,
		WriteTimeout:   cfg.WriteTimeout,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           games.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("listen", zap.String("addr", cfg.Addr()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("game server: %w", err)
		}
	}()

	adminCtx, adminCancel := context.WithCancel(context.Background())
	defer adminCancel()
	adminDone := make(chan struct{})
	if addr := cfg.AdminAddr(); addr != "" {
		h := admin.NewHandler(reg, render.NewBoardRenderer(), opts...)
		go func() {
			defer close(adminDone)
			if err := admin.ListenAndServe(adminCtx, addr, h); err != nil {
				errCh <- fmt.Errorf("admin server: %w", err)
			}
		}()
	} else {
		close(adminDone)
	}

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("shutdown", zap.String("signal", sig.String()))
	case runErr = <-errCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	games.Close()
	if err := games.Wait(ctx); err != nil {
		log.Warn("connections_not_drained", zap.Error(err))
	}
	adminCancel()
	<-adminDone
	if pub != nil {
		pub.Close()
		select {
		case <-pubDone:
		case <-ctx.Done():
			log.Warn("publisher_not_drained", zap.Int("pending", pub.Pending()))
		}
	}
	return runErr
}
