package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"vaultcrack/internal/alert"
	"vaultcrack/internal/config"
	"vaultcrack/internal/economy"
	"vaultcrack/internal/handlers"
	"vaultcrack/internal/logger"
	"vaultcrack/internal/middleware"
	"vaultcrack/internal/oracle"
	"vaultcrack/internal/payment"
	"vaultcrack/internal/relay"
	"vaultcrack/internal/services"
	"vaultcrack/internal/tiers"
	"vaultcrack/internal/vault"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(false).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Verbose)
	if envErr != nil {
		log.Info("No .env file found, using environment variables")
	}

	if err := run(cfg); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.New(cfg.Verbose)
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}
	alerter := alert.New(log, cfg.SlackWebhookURL, cfg.SentryDSN != "")

	redisService, err := services.NewRedisService(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)

	backend, err := economy.ParseKeypair(cfg.BackendKey)
	if err != nil {
		return err
	}
	programID := cfg.MustProgramID()

	econ, err := economy.NewClient(economy.Config{
		Logger:              log,
		Clock:               clock,
		RPC:                 rpc.New(cfg.RPCEndpoint),
		ProgramID:           programID,
		Backend:             backend,
		EntryFee:            cfg.EntryFeeLamports,
		MinOperatingBalance: cfg.SignerFloorLamports,
		VaultReserve:        cfg.VaultReserve,
		ConfirmTimeout:      cfg.ConfirmTimeout,
	})
	if err != nil {
		return err
	}
	addrs := econ.Addresses()
	log.Info("economy client ready", "program", programID.String(), "gameState", addrs.GameState.String(),
		"potVault", addrs.PotVault.String(), "backend", backend.PublicKey().String())

	oracleClient, err := oracle.NewClient(oracle.Config{
		Endpoint:          cfg.OracleURL,
		APIKey:            cfg.OracleAPIKey,
		Caller:            backend.PublicKey().String(),
		Contract:          cfg.OracleContract,
		Timeout:           cfg.OracleTimeout,
		RequestsPerSecond: cfg.OracleRPS,
		Logger:            log,
	})
	if err != nil {
		return err
	}

	router := payment.NewRouter(log, econ)

	cracker, err := vault.NewCracker(vault.Config{
		Logger:   log,
		Clock:    clock,
		Economy:  econ,
		Oracle:   oracleClient,
		Tiers:    tiers.Default,
		Sessions: redisService,
		Recorder: redisService,
		Router:   router,
		Alerter:  alerter,
	})
	if err != nil {
		return err
	}

	monitor, err := economy.NewMonitor(economy.MonitorConfig{
		Logger:   log,
		Clock:    clock,
		Reader:   econ,
		Alerter:  alerter,
		Interval: cfg.SignerCheckInterval,
	})
	if err != nil {
		return err
	}
	monitor.Start(ctx)

	var broker relay.Broker
	switch cfg.RelayBroker {
	case "redis":
		broker = relay.NewRedisBroker(log, redisService.Client())
	default:
		broker = relay.NewMemoryBroker(log)
	}
	defer broker.Close()

	hub := relay.NewHub(log, broker)
	notifier := &relay.PotNotifier{Pot: econ, Broker: broker, Clock: clock}

	gameConfig := handlers.GameHandlerConfig{
		Logger:   log,
		Clock:    clock,
		Chain:    econ,
		Tiers:    tiers.Default,
		Sessions: redisService,
		Cracker:  cracker,
		Router:   router,
		Signer:   monitor,
	}
	if cfg.DisableChainWatcher {
		gameConfig.Notifier = notifier
	} else {
		watcher, err := relay.NewChainWatcher(relay.WatcherConfig{
			Logger:   log,
			Clock:    clock,
			Dial:     relay.WebsocketDialer(cfg.WSEndpoint, programID, rpc.CommitmentConfirmed),
			Notifier: notifier,
		})
		if err != nil {
			return err
		}
		watcher.Start(ctx)
	}

	gameHandler, err := handlers.NewGameHandler(gameConfig)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ipLimiter := middleware.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(cfg.IPRateLimitPerMinute)), cfg.IPRateLimitBurst)

	engine := gin.New()
	engine.Use(middleware.Recovery(log), middleware.RequestLogger(log), middleware.Metrics(), middleware.IPRateLimit(ipLimiter))

	engine.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+handlers.RelaySecretHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.Routes{
		Auth:    handlers.NewAuthHandler(log, clock, redisService, jwtService),
		Game:    gameHandler,
		Relay:   handlers.NewRelayHandler(log, clock, hub, broker, cfg.RelaySecret),
		Tokens:  jwtService,
		Limiter: redisService,
	}.Register(engine)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		ipLimiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
