package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"builder/internal/app"
	"builder/internal/auth"
	"builder/internal/chain"
	"builder/internal/config"
	"builder/internal/content"
	"builder/internal/gateway"
	"builder/internal/media"
	"builder/internal/outcome"
	"builder/internal/saga"
	"builder/internal/search"
	"builder/internal/session"
	"builder/internal/store"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the exit code once every deferred close in run has fired.
func realMain(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	flags := pflag.NewFlagSet("builder", pflag.ContinueOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or console")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "minimum log level")
	flags.StringVar(&cfg.ContractsFile, "contracts", cfg.ContractsFile, "contract address book (YAML)")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres URL; empty keeps state in memory")
	flags.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL; empty disables sessions and outcome history")
	if err := flags.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "flags: %v\n", err)
		return 2
	}

	logger, err := newLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("builder stopped", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(format, level string) (*zap.Logger, error) {
	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	return zcfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := store.NewState()
	bus := outcome.NewBus(logger.Named("bus"))
	bus.SubscribeAll(state.Handle)
	checks := make(map[string]app.Pinger)

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, store.Migrations()); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		pg := store.NewPostgresStore(db)
		snapshot, err := pg.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		state.Restore(snapshot)
		checks["database"] = pg

		persister := store.NewPersister(state, pg, cfg.PersistInterval, logger.Named("persist"))
		persistDone := make(chan struct{})
		persistCtx, stopPersist := context.WithCancel(context.Background())
		go func() {
			defer close(persistDone)
			persister.Run(persistCtx)
		}()
		defer func() {
			stopPersist()
			<-persistDone
		}()
	} else {
		logger.Warn("DATABASE_URL not set, state is kept in memory only")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger.Named("meili"))
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory(state), logger.Named("search"))
	searchService.ReindexAll(state.Collections(), state.Items())
	bus.SubscribeAll(searchService.Handle)

	deps := app.Deps{State: state, Search: searchService, Checks: checks, Logger: logger.Named("app")}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		sessions, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer sessions.Close()
		sink, err := outcome.NewRedisSink(cfg.RedisURL, logger.Named("outcomes"))
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer sink.Close()
		bus.SubscribeAll(sink.Handle)
		deps.Sessions = sessions
		deps.History = sink
		checks["redis"] = sink
	} else {
		logger.Warn("REDIS_URL not set, sessions cannot be revoked and outcome history is off")
	}

	var signer auth.Signer = auth.Anonymous{}
	authenticated := false
	if cfg.IdentityKey != "" {
		identity, err := auth.NewIdentityFromHex(cfg.IdentityKey)
		if err != nil {
			return fmt.Errorf("identity key: %w", err)
		}
		signer = identity
		authenticated = true
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	builderClient := gateway.NewBuilderClient(cfg.BuilderAPIURL, cfg.ContentURL, httpClient, signer, logger.Named("builder"))
	hubClient := gateway.NewHubClient(cfg.HubURL, httpClient, signer, logger.Named("hub"))
	landClient := gateway.NewLandClient(cfg.LandAPIURL, httpClient, logger.Named("land"))

	var cache content.Cache = content.NewMemoryCache()
	if cfg.MinioEndpoint != "" {
		minioCache, err := content.NewMinioCache(ctx, content.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Secure:    cfg.MinioSecure,
		})
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		cache = minioCache
	}
	contents := content.NewStore(builderClient, cache, logger.Named("contents"))

	chainClient, err := newChainClient(ctx, cfg, logger.Named("chain"))
	if err != nil {
		return err
	}

	var recorder media.Recorder
	if cfg.PreviewURL != "" {
		recorder = media.NewChromeRecorder(cfg.PreviewURL, cfg.ChromeURL, cfg.CaptureTimeout, logger.Named("recorder"))
	}

	runner := saga.NewRunner(saga.DefaultDisciplines, logger.Named("runner"))
	orchestrator := saga.New(saga.Deps{
		Builder:  builderClient,
		Hub:      hubClient,
		Lands:    landClient,
		Chain:    chainClient,
		Contents: contents,
		Recorder: recorder,
		State:    state,
		Bus:      bus,
		Runner:   runner,
		Logger:   logger.Named("saga"),
	}, saga.Config{
		LockAttempts:   cfg.LockAttempts,
		LockDelay:      cfg.LockDelay,
		SyncRetryDelay: cfg.SyncRetryDelay,
		Authenticated:  authenticated,
	})
	orchestrator.Subscribe(bus)
	deps.Workflows = orchestrator

	service := app.New(deps, app.Options{
		JWTSecret:  []byte(cfg.JWTSecret),
		SessionTTL: cfg.SessionTTL,
		LoginSkew:  cfg.LoginSkew,
		ChainID:    chainClient.ChainID(),
	})
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger.Named("http"))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("builder listening", zap.String("addr", cfg.Addr), zap.String("wallet", orchestrator.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	orchestrator.Connect(orchestrator.Address())

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("workflows still running at shutdown", zap.Error(err))
	}
	return nil
}

func newChainClient(ctx context.Context, cfg config.Config, logger *zap.Logger) (*chain.Client, error) {
	if cfg.PrivateKey == "" {
		return nil, errors.New("ETH_PRIVATE_KEY is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ETH_PRIVATE_KEY: %w", err)
	}
	book, err := config.LoadContracts(cfg.ContractsFile)
	if err != nil {
		return nil, err
	}
	set, err := book.For(cfg.ChainID)
	if err != nil {
		return nil, err
	}
	addresses, err := chain.ParseAddresses(set.Factory, set.Estate, set.Parcel, set.Scene, set.Bean, set.Mana)
	if err != nil {
		return nil, err
	}
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return chain.NewClient(backend, key, big.NewInt(cfg.ChainID), addresses, logger)
}
