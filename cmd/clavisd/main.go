package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/clavis-id/clavis/adapters/directory"
	"github.com/clavis-id/clavis/adapters/events"
	"github.com/clavis-id/clavis/adapters/registry"
	"github.com/clavis-id/clavis/adapters/resolver"
	"github.com/clavis-id/clavis/adapters/store"
	"github.com/clavis-id/clavis/adapters/tokenizer"
	"github.com/clavis-id/clavis/adapters/verifier"
	"github.com/clavis-id/clavis/internal/config"
	"github.com/clavis-id/clavis/ports"
	"github.com/clavis-id/clavis/service"
	transport "github.com/clavis-id/clavis/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Env)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Generate a fresh signing key per process. Tokens do not survive a
	// restart; load the key from a secret store when that matters.
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		slog.Error("failed to generate signing key", "error", err)
		os.Exit(1)
	}

	var (
		challenges  ports.ChallengeStore
		grants      ports.GrantStore
		revocations ports.RevocationStore
		consents    ports.ConsentStore
		publisher   ports.EventPublisher
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to parse Redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)

		wmPublisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewSlogLogger(slog.Default()),
		)
		if err != nil {
			slog.Error("failed to create event publisher", "error", err)
			os.Exit(1)
		}

		challenges = store.NewRedisChallengeStore(redisClient, cfg.ChallengeTTL)
		grants = store.NewRedisGrantStore(redisClient)
		revocations = store.NewRedisRevocationStore(redisClient)
		consents = store.NewRedisConsentStore(redisClient)
		publisher = events.NewWatermillPublisher(wmPublisher)

		slog.Info("using Redis-backed stores", "addr", opts.Addr)
	} else {
		challenges = store.NewMemoryChallengeStore(cfg.ChallengeTTL)
		grants = store.NewMemoryGrantStore()
		revocations = store.NewMemoryRevocationStore()
		consents = store.NewMemoryConsentStore()
		publisher = events.NewNopPublisher()

		slog.Info("using in-memory stores, state will not survive a restart")
	}

	var didResolver ports.Resolver
	if cfg.ResolverEndpoint != "" {
		didResolver = resolver.NewHTTPResolver(cfg.ResolverEndpoint)
		slog.Info("using universal resolver", "endpoint", cfg.ResolverEndpoint)
	} else {
		didResolver = resolver.NewStaticResolver()
		slog.Info("using static resolver, register DID documents at startup")
	}

	var verifierOpts []verifier.Option
	if cfg.DemoProofs {
		verifierOpts = append(verifierOpts, verifier.WithDemoProofs())
	}
	proofVerifier := verifier.New(didResolver, verifierOpts...)

	jwtTokenizer := tokenizer.NewJWTTokenizer(signKey, tokenizer.Config{
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})

	users := directory.NewStaticIdentityDirectory(true)
	permissions := directory.NewStaticPermissions()
	clients := registry.NewStaticClientRegistry()

	didAuth := service.NewDIDAuthService(challenges, proofVerifier, didResolver, users, jwtTokenizer, revocations, publisher)
	oauth := service.NewOAuthService(clients, grants, consents, users, jwtTokenizer, cfg.GrantTTL)
	contexts := service.NewContextRegistry(permissions, jwtTokenizer, publisher)

	router := transport.SetupRouter(didAuth, oauth, contexts, cfg.AuthorizeTimeout)

	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: router,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.Address, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
}

func setupLogging(env string) {
	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}
