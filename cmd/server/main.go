package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/example/storefront-commerce/internal/adapter/geoip"
	"github.com/example/storefront-commerce/internal/adapter/httpapi"
	"github.com/example/storefront-commerce/internal/adapter/memstore"
	"github.com/example/storefront-commerce/internal/adapter/natsstan"
	"github.com/example/storefront-commerce/internal/adapter/rates"
	"github.com/example/storefront-commerce/internal/adapter/repo"
	"github.com/example/storefront-commerce/internal/config"
	"github.com/example/storefront-commerce/internal/domain"
	"github.com/example/storefront-commerce/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	var snapshots domain.SnapshotRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("db connect")
		}
		defer pool.Close()
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("init schema")
		}
		snapshots = repo.NewPostgresSnapshotRepo(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, snapshots kept in memory only")
		snapshots = memstore.NewMemorySnapshotRepo()
	}

	var cartPub, currencyPub domain.StatePublisher
	sc, err := natsstan.Connect(cfg.StanClusterID, cfg.StanClientID, cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("stan connect failed, cross-instance sync disabled")
	} else {
		defer sc.Close()
		cartPub = &natsstan.Publisher{Conn: sc, Subject: cfg.CartSubject}
		currencyPub = &natsstan.Publisher{Conn: sc, Subject: cfg.CurrencySubject}
	}

	cart := store.NewCart(ctx, snapshots, cartPub, logger)
	currency := store.NewCurrency(ctx, snapshots, currencyPub,
		geoip.NewClient(cfg.IPDataURL, cfg.IPDataAPIKey),
		rates.NewClient(cfg.FXRatesURL, cfg.FXRatesAPIKey),
		logger)

	if sc != nil {
		cartSub := &natsstan.Subscriber{Conn: sc, Subject: cfg.CartSubject}
		if err := cartSub.Subscribe(ctx, cart.ApplySnapshot); err != nil {
			logger.Warn().Err(err).Msg("subscribe cart snapshots")
		}
		currencySub := &natsstan.Subscriber{Conn: sc, Subject: cfg.CurrencySubject}
		if err := currencySub.Subscribe(ctx, currency.ApplySnapshot); err != nil {
			logger.Warn().Err(err).Msg("subscribe currency snapshots")
		}
	}

	// автоопределение валюты только при самом первом запуске
	if currency.FirstRun() {
		if cfg.IPDataAPIKey == "" {
			logger.Warn().Msg("IPDATA_API_KEY not set, skipping currency auto-detection")
		} else {
			go func() {
				dctx, dcancel := context.WithTimeout(ctx, 15*time.Second)
				defer dcancel()
				if err := currency.Detect(dctx); err != nil {
					logger.Warn().Err(err).Msg("currency auto-detection failed")
				}
			}()
		}
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpapi.NewServer(cart, currency).Router}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}
