package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appsession "lobbysync/internal/app/session"
	"lobbysync/internal/config"
	"lobbysync/internal/lobby"
	"lobbysync/internal/logging"
	"lobbysync/internal/notify"
	"lobbysync/internal/store"
	"lobbysync/internal/store/pgstore"
	httptransport "lobbysync/internal/transport/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	app, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(app.Log)
	cfg := app.Server

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var st store.Store
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		pg, err := pgstore.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		defer pg.Close()
		if err := pg.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema init failed")
		}
		g.Go(func() error { return pg.Listen(ctx) })
		st = pg
	default:
		mem := store.NewMemory()
		defer mem.Close()
		st = mem
	}

	notifyCfg, err := notify.ConfigFromServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load notify config failed")
	}
	notifier := notify.NewManager(notifyCfg)
	if err := notifier.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("notify manager start failed")
	}

	sessionSvc := appsession.NewService(st,
		appsession.WithNotifier(notifier),
		appsession.WithLobbyOptions(
			lobby.WithScanLimit(cfg.MatchScanLimit),
			lobby.WithMaxPlayers(cfg.MaxParticipants),
			lobby.WithKeyRetries(cfg.KeyRetries),
		),
	)
	defer sessionSvc.Close()

	storeHandlers := httptransport.NewStoreHandlers(st)
	r := httptransport.NewRouter(st, cfg, sessionSvc, storeHandlers)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreBackend).Msg("lobby server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		storeHandlers.Subscribers().Shutdown(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
