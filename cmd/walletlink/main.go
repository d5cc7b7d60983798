package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/turrn3r/walletlink/adapters/events"
	"github.com/turrn3r/walletlink/adapters/store"
	"github.com/turrn3r/walletlink/adapters/telegram"
	"github.com/turrn3r/walletlink/adapters/tokenizer"
	"github.com/turrn3r/walletlink/adapters/verifier"
	"github.com/turrn3r/walletlink/bot"
	"github.com/turrn3r/walletlink/config"
	"github.com/turrn3r/walletlink/observability"
	"github.com/turrn3r/walletlink/ports"
	"github.com/turrn3r/walletlink/service"
	transport "github.com/turrn3r/walletlink/transport/http"
	"gorm.io/gorm"
)

var version = "dev"

const purgeInterval = time.Hour

func main() {
	cfg := config.MustLoad()
	observability.SetupLogger(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("walletlink exited")
	}
}

type stores struct {
	nonces ports.NonceStore
	links  ports.LinkStore
	redis  *redis.Client
	close  func()
}

func openStores(cfg config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		st := store.NewMemoryStore()
		return &stores{nonces: st, links: st, close: func() {}}, nil

	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		st := store.NewRedisStore(client)
		return &stores{nonces: st, links: st, redis: client, close: func() { _ = client.Close() }}, nil

	default:
		var (
			db  *gorm.DB
			err error
		)
		if cfg.StoreBackend == config.StorePostgres {
			db, err = store.OpenPostgres(cfg.DatabaseURL)
		} else {
			db, err = store.OpenSQLite(cfg.DBPath)
		}
		if err != nil {
			return nil, err
		}
		if cfg.OTEL.Enabled {
			if err := store.EnableTracing(db); err != nil {
				return nil, err
			}
		}
		if err := store.AutoMigrate(db); err != nil {
			return nil, err
		}
		st := store.NewGormStore(db)
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return &stores{nonces: st, links: st, close: closeDB}, nil
	}
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	wmLogger := events.NewZerologAdapter(log.Logger)
	var (
		publisher  message.Publisher
		subscriber message.Subscriber
	)
	if st.redis != nil {
		publisher, subscriber, err = events.NewRedisStream(st.redis, wmLogger)
		if err != nil {
			return err
		}
	} else {
		publisher, subscriber = events.NewInProcess(wmLogger)
	}
	defer publisher.Close()
	defer subscriber.Close()

	var ticketer ports.Ticketer
	if cfg.LinkTicketSecret != "" {
		ticketer = tokenizer.NewJWTTicketer([]byte(cfg.LinkTicketSecret), cfg.LinkTicketTTL)
	}

	nonces := service.NewNonceService(st.nonces, cfg.NonceTTL, nil)
	links := service.NewLinkService(nonces, verifier.NewEthVerifier(), st.links, events.NewWatermillPublisher(publisher), ticketer)

	var wg sync.WaitGroup
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("task", name).Msg("background task failed")
			}
		}()
	}

	var dispatcher *bot.Dispatcher
	if cfg.Bot.Mode != config.BotDisabled {
		client, err := telegram.NewClient(cfg.Bot.Token, "", nil)
		if err != nil {
			return err
		}
		log.Info().Str("bot", client.Username()).Str("mode", cfg.Bot.Mode).Msg("bot connected")

		dispatcher = bot.NewDispatcher(st.links, client, ticketer, cfg.Bot.PublicBaseURL, client.Username())
		spawn("notifier", bot.NewNotifier(subscriber, client).Run)

		if cfg.Bot.Mode == config.BotPolling {
			spawn("poller", bot.NewPoller(client, dispatcher, cfg.Bot.PollTimeout, cfg.Bot.BackoffMax).Run)
		}
	}

	spawn("purge", func(ctx context.Context) error {
		purgeLoop(ctx, nonces)
		return nil
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           transport.SetupRouter(cfg, links, dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Str("version", version).Msg("walletlink listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-serveErr:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("http shutdown failed")
	}

	cancel()
	wg.Wait()

	return err
}

// purgeLoop drops expired challenges every purgeInterval
func purgeLoop(ctx context.Context, nonces *service.NonceService) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := nonces.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("nonce purge failed")
				continue
			}
			log.Debug().Int64("purged", n).Msg("expired nonces purged")
		}
	}
}
