package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/qchat-dispatch/internal/api"
	"github.com/rickgao/qchat-dispatch/internal/auth"
	"github.com/rickgao/qchat-dispatch/internal/config"
	"github.com/rickgao/qchat-dispatch/internal/connection"
	"github.com/rickgao/qchat-dispatch/internal/database"
	"github.com/rickgao/qchat-dispatch/internal/featuredev"
	"github.com/rickgao/qchat-dispatch/internal/links"
	"github.com/rickgao/qchat-dispatch/internal/router"
	"github.com/rickgao/qchat-dispatch/internal/settings"
	"github.com/rickgao/qchat-dispatch/internal/state"
	"github.com/rickgao/qchat-dispatch/internal/telemetry"
	"github.com/rickgao/qchat-dispatch/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadAndValidate(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting dispatcher",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("dispatcher failed", "error", err)
		os.Exit(1)
	}
	logger.Info("dispatcher stopped")
}

func run(ctx context.Context, cfg *config.DispatcherConfig, logger *slog.Logger) error {
	// Global state and the optional database
	var (
		pool  *pgxpool.Pool
		store state.Store = state.NewMemory()
	)
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		logger.Info("connecting to database", "host", pg.Host, "port", pg.Port, "database", pg.Name)

		var err error
		pool, err = database.Connect(ctx, pg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		store = state.NewPostgres(pool)
		logger.Info("database connected")
	}

	// Telemetry
	var (
		emitter telemetry.Emitter = telemetry.NewLogSink(logger)
		writer  *telemetry.Writer
	)
	if cfg.Telemetry.Sink == "postgres" {
		writer = telemetry.NewWriter(telemetry.WriterConfig{
			BatchSize:     cfg.Telemetry.BatchSize,
			FlushInterval: cfg.Telemetry.FlushInterval,
		}, pool, logger)
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start telemetry writer: %w", err)
		}
		emitter = telemetry.Multi{emitter, writer}
	}

	prompts, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		return err
	}

	// Webview bridge and the outbound path
	bridge := connection.NewServer(connection.ServerConfig{
		Conn: connection.ConnConfig{
			PingInterval:   cfg.Bridge.PingInterval,
			PingTimeout:    cfg.Bridge.PingTimeout,
			WriteTimeout:   cfg.Bridge.WriteTimeout,
			MaxMessageSize: cfg.Bridge.MaxMessageSize,
			RateLimit:      *cfg.Bridge.RateLimit,
			RateBurst:      cfg.Bridge.RateBurst,
		},
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		InboundBufferSize: cfg.Bridge.InboundBufferSize,
	}, logger)

	forwarder := router.NewForwarder(router.ForwarderConfig{
		QueueSize:       cfg.Forwarder.QueueSize,
		DeliveryTimeout: cfg.Forwarder.DeliveryTimeout,
	}, bridge, logger)

	source, err := newAuthSource(cfg.Auth, logger)
	if err != nil {
		return err
	}

	// Routing table
	builder := router.NewTableBuilder()
	app, err := featuredev.Register(builder, forwarder, source, nil, featuredev.AuthWatcherConfig{
		Debounce:     cfg.Auth.Debounce,
		FetchTimeout: cfg.Auth.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	table := builder.Build()
	logger.Info("routing table built", "keys", table.Keys())

	r := router.NewRouter(router.RouterConfig{
		ChatModuleName: cfg.Router.ChatModuleName,
		ChatTabType:    cfg.Router.ChatTabType,
	}, bridge.Messages(), table, router.Handlers{
		Telemetry: emitter,
		Settings:  prompts,
		State:     store,
		Links:     links.NewOpener(cfg.Links.OpenCommand, links.ExecLauncher, logger),
		ChatTimer: telemetry.NewChatDurations(emitter),
		UI:        forwarder,
	}, logger)
	bridge.OnOpen(func(connID string, at time.Time) {
		r.MarkOpen(at)
	})

	if err := forwarder.Start(ctx); err != nil {
		return fmt.Errorf("start forwarder: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start feature-dev app: %w", err)
	}
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	var hookAuth func(http.Handler) http.Handler
	if cfg.Server.HookPublicKeyPath != "" {
		pub, err := auth.LoadPublicKey(cfg.Server.HookPublicKeyPath)
		if err != nil {
			return fmt.Errorf("load hook public key: %w", err)
		}
		hookAuth = auth.RequireSignature(pub, auth.DefaultMaxSkew)
		logger.Info("auth hooks require signed requests")
	}

	httpServer := &http.Server{
		Addr: cfg.Server.ListenAddr,
		Handler: newHTTPHandler(hostDeps{
			WSPath:    cfg.Server.WSPath,
			Bridge:    bridge,
			Router:    r,
			Forwarder: forwarder,
			Listener:  app.Listener,
			Auth:      app.Watcher,
			HookAuth:  hookAuth,
			Writer:    writer,
			DB:        dbPinger(pool),
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening for webview",
			"addr", cfg.Server.ListenAddr,
			"ws_path", cfg.Server.WSPath,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Auth.PollInterval > 0 {
		g.Go(func() error {
			app.Watcher.Watch(gctx, cfg.Auth.PollInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()

		if err := r.Stop(shutdownCtx); err != nil {
			logger.Warn("router stop", "error", err)
		}
		if err := app.Stop(shutdownCtx); err != nil {
			logger.Warn("feature-dev app stop", "error", err)
		}
		// Flush what the apps already sent while the webview is still attached.
		if err := forwarder.Stop(shutdownCtx); err != nil {
			logger.Warn("forwarder stop", "error", err)
		}
		bridge.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		if writer != nil {
			if err := writer.Stop(shutdownCtx); err != nil {
				logger.Warn("telemetry writer stop", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// newAuthSource returns the auth-state service client, or a source that
// always reports connected when no service is configured.
func newAuthSource(cfg config.AuthConfig, logger *slog.Logger) (featuredev.AuthStateSource, error) {
	if cfg.StateURL == "" {
		logger.Info("no auth-state service configured, reporting connected")
		return featuredev.StaticAuthState{AmazonQ: api.StateConnected}, nil
	}

	var signer api.Signer
	if cfg.PrivateKeyPath != "" {
		creds, err := auth.LoadCredentials(cfg.APIKey, cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load auth credentials: %w", err)
		}
		signer = creds
	}

	clientCfg := api.DefaultClientConfig(cfg.StateURL)
	clientCfg.Timeout = cfg.Timeout
	clientCfg.MaxRetries = cfg.MaxRetries
	return api.NewClient(clientCfg, signer, logger), nil
}

// dbPinger keeps a nil pool from becoming a non-nil interface.
func dbPinger(pool *pgxpool.Pool) pinger {
	if pool == nil {
		return nil
	}
	return pool
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
