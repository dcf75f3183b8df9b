// spindexd is the moderation daemon: it persists community submissions,
// runs the approval workflow, serves the moderation HTTP API, and bridges
// moderation to the community chat server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/spindex/spindex/internal/build"
	"github.com/spindex/spindex/internal/config"
	"github.com/spindex/spindex/internal/db"
	"github.com/spindex/spindex/internal/gateway"
	"github.com/spindex/spindex/internal/guard"
	"github.com/spindex/spindex/internal/moderation"
	"github.com/spindex/spindex/internal/notify"
	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spindexd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile = flag.String("config", "",
			"Path to config file (optional)")
		listenAddr = flag.String("listen", "",
			"HTTP bind address (overrides config)")
		dbPath = flag.String("db", "",
			"SQLite database path (overrides config)")
		logDir = flag.String("logdir", "",
			"Directory for rotating log files (empty: console only)")
		debugLevel = flag.String("debuglevel", "",
			"Log level (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *debugLevel != "" {
		cfg.DebugLevel = *debugLevel
	}

	logger, logCleanup, err := build.NewLogger(build.LogConfig{
		LogDir:     *logDir,
		DebugLevel: cfg.DebugLevel,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCleanup()

	// Open the database and apply pending migrations.
	database, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: cfg.DatabasePath,
	}, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	storage := store.NewSqliteStore(database.DB)

	// Chat integration. Missing credentials disable announcements but
	// never the workflow itself.
	chatClient := notify.NewClient(notify.ClientConfig{
		BotToken: cfg.Chat.BotToken,
	})
	if !chatClient.Configured() {
		logger.Warn("Chat bot token not configured, " +
			"announcements disabled")
	}

	adminBase := fn.None[string]()
	if cfg.AdminBaseURL != "" {
		adminBase = fn.Some(cfg.AdminBaseURL)
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Client:       chatClient,
		ChannelID:    cfg.Chat.ChannelID,
		AdminBaseURL: adminBase,
		Logger:       logger.With("subsys", "notify"),
	})

	csrf, err := guard.NewCSRFGuard(cfg.CSRFSecret)
	if err != nil {
		return fmt.Errorf("csrf guard: %w", err)
	}
	limiter := guard.NewRateLimiter(
		cfg.RateLimit.Requests, cfg.RateLimit.Window,
	)

	policy := moderation.DefaultApprovalPolicy()
	policy.Default = cfg.Moderation.RequiredApprovals
	policy.PerType = cfg.ApprovalOverrides()

	// The engine's notifier fans out to chat and the websocket feed;
	// the feed is attached below once the server exists.
	notifiers := moderation.MultiNotifier{dispatcher}

	engine := moderation.NewEngine(moderation.EngineConfig{
		Store:    storage,
		Audit:    storage,
		Notifier: &notifiers,
		Policy:   policy,
		Logger:   logger.With("subsys", "moderation"),
	})

	// The interaction endpoint only mounts with a verification key;
	// without one there is no way to authenticate callbacks.
	var interactions http.Handler
	if cfg.Chat.PublicKey != "" {
		publicKey, err := gateway.ParsePublicKey(cfg.Chat.PublicKey)
		if err != nil {
			return fmt.Errorf("chat public key: %w", err)
		}

		interactions = gateway.NewHandler(gateway.HandlerConfig{
			PublicKey:        publicKey,
			Engine:           engine,
			Reader:           storage,
			ModeratorRoleIDs: cfg.Chat.ModeratorRoleIDs,
			Logger:           logger.With("subsys", "gateway"),
		})
	} else {
		logger.Warn("Chat public key not configured, interaction " +
			"endpoint disabled")
	}

	server := web.NewServer(web.Config{
		Addr:         cfg.ListenAddr,
		Storage:      storage,
		Engine:       engine,
		Announcer:    dispatcher,
		Interactions: interactions,
		CSRF:         csrf,
		Limiter:      limiter,
		Logger:       logger.With("subsys", "web"),
	})
	notifiers = append(notifiers, server.Feed())

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {

			errCh <- err
		}
	}()

	logger.Info("spindexd started",
		"listen", cfg.ListenAddr, "db", cfg.DatabasePath)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
