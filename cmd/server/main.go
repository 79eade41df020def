// Package main - Folder Mock Server entry point
// Wires config, persistence adapters, services and the two HTTP surfaces
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"folder-mock/internal/adapters/handler"
	"folder-mock/internal/adapters/repository"
	"folder-mock/internal/adapters/storage"
	"folder-mock/internal/adapters/websocket"
	"folder-mock/internal/config"
	"folder-mock/internal/core/ports"
	"folder-mock/internal/core/services"
	"folder-mock/internal/logging"
)

const shutdownTimeout = 5 * time.Second

var green = color.New(color.FgGreen).SprintFunc()

// serverCommand holds the raw flag values; they override config only when set
type serverCommand struct {
	configPath string
	envFile    string
	port       int
	root       string
	logLevel   string
	logFormat  string
	adminPort  int
}

func main() {
	c := &serverCommand{}
	cmd := &cobra.Command{
		Use:           "folder-mock",
		Short:         "Serve mock HTTP responses from files under a root folder",
		Long:          "Serves GET requests from ROOT/res, with overrides and weighted picks read from ROOT/map.txt.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}

	flags := cmd.Flags()
	flags.IntVarP(&c.port, "port", "p", config.DefaultPort, "mock server port")
	flags.StringVarP(&c.root, "root", "f", "", "root folder holding map.txt and res/ (default: current directory)")
	flags.StringVarP(&c.logLevel, "log-level", "l", config.DefaultLogLevel, "log level: error, warn, info, debug, trace")
	flags.StringVar(&c.logFormat, "log-format", config.DefaultLogFormat, "log format: text or json")
	flags.IntVar(&c.adminPort, "admin-port", config.DefaultAdminPort, "admin API port, 0 disables it")
	flags.StringVarP(&c.configPath, "config", "c", "", "optional .toml or .yaml config file")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("❌"), err)
		os.Exit(1)
	}
}

// loadConfig layers flags that were explicitly set over file and environment values
func (c *serverCommand) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = c.port
	}
	if flags.Changed("root") {
		cfg.Server.RootFolder = c.root
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}
	if flags.Changed("admin-port") {
		cfg.Admin.Port = c.adminPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *serverCommand) run(cmd *cobra.Command, _ []string) error {
	fmt.Println("=== Folder Mock Server ===")

	// 1. Configuration and logging
	fmt.Println("[1/5] Loading configuration...")
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The log hub only exists when the admin surface can serve it
	var hub *websocket.LogHub
	var logSinks []io.Writer
	if cfg.Admin.Port != 0 && cfg.Admin.Secret != "" {
		hub = websocket.NewLogHub(cfg.Admin.Secret)
		go hub.Run(ctx)
		logSinks = append(logSinks, hub)
	}
	logging.Setup(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, logSinks...)
	fmt.Printf("%s Config loaded (root: %s, port: %d, log level: %s)\n",
		green("✓"), cfg.Server.RootFolder, cfg.Server.Port, logging.LevelName(logging.ParseLevel(cfg.Log.Level)))

	// 2. Mapping table
	fmt.Println("[2/5] Loading map file...")
	mapPath := filepath.Join(cfg.Server.RootFolder, services.MapFile)
	table, issues, err := services.LoadMappingFile(mapPath)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		slog.Warn("Skipped map file line",
			"file", mapPath,
			"line", issue.Line,
			"text", issue.Text,
			"reason", issue.Reason,
		)
	}
	for _, entry := range table.Entries() {
		slog.Debug("Map entry", "request_path", entry.RequestPath, "targets", entry.Targets)
	}
	fmt.Printf("%s %d map entries loaded (%d lines skipped)\n", green("✓"), table.Len(), len(issues))

	// 3. Optional persistence
	fmt.Println("[3/5] Connecting storage backends...")
	var logRepo ports.AccessLogRepository
	if cfg.DB.Enabled() {
		db := connectMariaDB(cfg.DB, 5, 2*time.Second)
		defer db.Close()

		mariadbRepo := repository.NewMariaDBRepository(db)
		if err := mariadbRepo.EnsureSchema(ctx); err != nil {
			return err
		}
		logRepo = mariadbRepo
		fmt.Printf("%s MariaDB connection established (%s@%s:%d)\n", green("✓"), cfg.DB.User, cfg.DB.Host, cfg.DB.Port)
	} else {
		fmt.Println("- Access log persistence disabled (DB_HOST not set)")
	}

	var hits ports.HitCounter
	if cfg.Redis.Enabled() {
		rdb := connectRedis(cfg.Redis, 5, 2*time.Second)
		defer rdb.Close()

		hits = repository.NewRedisRepository(rdb, cfg.Redis.Prefix)
		fmt.Printf("%s Redis connection established (%s)\n", green("✓"), cfg.Redis.Addr)
	} else {
		fmt.Println("- Hit counters disabled (REDIS_ADDR not set)")
	}

	// 4. Services
	fmt.Println("[4/5] Initializing services...")
	disk := storage.LocalDisk{}
	resolver := services.NewResolver(table, cfg.Server.RootFolder, services.NewWeightedSelector(services.SystemRandom{}), disk)

	recorder := services.NewAccessRecorder(logRepo, hits, services.DefaultRecorderBuffer)
	recorder.Start(ctx)

	watchdog := services.NewWatchdog(logRepo, cfg.Server.RootFolder,
		cfg.Watchdog.Interval.Duration, cfg.Watchdog.DiskThreshold, cfg.Watchdog.Retention.Duration)
	go watchdog.Run(ctx)
	fmt.Printf("%s Services initialized\n", green("✓"))

	// 5. HTTP surfaces
	fmt.Println("[5/5] Starting HTTP servers...")
	servers := []*http.Server{{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.NewMockHandler(resolver, disk, recorder).Routes(),
	}}

	if cfg.Admin.Port != 0 {
		var stream handler.LogStreamer
		if hub != nil {
			stream = hub
		}
		admin := handler.NewAdminHandler(resolver, cfg.Server.RootFolder, hits, logRepo, stream, cfg.Watchdog.DiskThreshold)
		servers = append(servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
			Handler: admin.Routes(),
		})
	}

	serveErr := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			slog.Info("HTTP server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	fmt.Printf("%s Mock server: http://localhost:%d/\n", green("✓"), cfg.Server.Port)
	if cfg.Admin.Port != 0 {
		fmt.Printf("%s Admin API: http://localhost:%d/api/status\n", green("✓"), cfg.Admin.Port)
	}
	fmt.Println("[READY] Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case runErr = <-serveErr:
		slog.Error("HTTP server failed", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown failed", "addr", srv.Addr, "error", err)
		}
	}

	// Stop workers and let the recorder flush what is still queued
	cancel()
	select {
	case <-recorder.Done():
	case <-shutdownCtx.Done():
		slog.Warn("Access recorder did not drain before timeout")
	}

	slog.Info("Server stopped")
	return runErr
}

// connectMariaDB attempts to connect to MariaDB with retry logic
// Retries are necessary because Docker containers may still be initializing
func connectMariaDB(cfg config.DBConfig, maxRetries int, retryDelay time.Duration) *sql.DB {
	dsn := cfg.GetDSN()

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			log.Printf("  Attempt %d/%d: Failed to configure DB driver: %v", i, maxRetries, err)
			time.Sleep(retryDelay)
			continue
		}

		err = db.Ping()
		if err == nil {
			return db
		}

		log.Printf("  Attempt %d/%d: Cannot ping MariaDB: %v", i, maxRetries, err)
		db.Close()

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("❌ Cannot connect to MariaDB after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}

// connectRedis attempts to connect to Redis with retry logic
func connectRedis(cfg config.RedisConfig, maxRetries int, retryDelay time.Duration) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	var err error

	for i := 1; i <= maxRetries; i++ {
		err = rdb.Ping(ctx).Err()
		if err == nil {
			return rdb
		}

		log.Printf("  Attempt %d/%d: Cannot ping Redis: %v", i, maxRetries, err)

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("❌ Cannot connect to Redis after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}
