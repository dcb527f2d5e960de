// README: Entry point; loads config, wires modules, starts the HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yalla/internal/config"
	httptransport "yalla/internal/http"
	"yalla/internal/infra"
	"yalla/internal/maps"
	"yalla/internal/modules/catalog"
	"yalla/internal/modules/dispatch"
	"yalla/internal/modules/order"
	"yalla/internal/modules/presence"
	"yalla/internal/notify"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Error("YALLA_FIREBASE_PROJECT_ID is required")
		os.Exit(1)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Error("firebase init failed", "err", err)
		os.Exit(1)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("database init failed", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	inbox := notify.NewSink(dbPool, log)
	catalogStore := catalog.NewStore(dbPool)

	orderStore := order.NewPGStore(dbPool)
	orderSvc := order.NewService(orderStore, catalogStore, inbox, log)

	presenceSvc := presence.NewService(
		presence.NewPGStore(dbPool),
		presence.NewGeoIndex(redisClient),
		log,
	)

	dispatchSvc := dispatch.NewService(orderSvc, presenceSvc, catalogStore, inbox, log)
	orderSvc.AttachDispatcher(dispatchSvc)

	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey, log)
		if err != nil {
			log.Error("maps init failed", "err", err)
			os.Exit(1)
		}
		dispatchSvc.SetETASource(routes)
	}

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Orders:   orderSvc,
		Dispatch: dispatchSvc,
		Presence: presenceSvc,
		Catalog:  catalogStore,
		Inbox:    inbox,
		Verifier: verifier,
		Log:      log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
