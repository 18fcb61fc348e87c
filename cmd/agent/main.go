// Command agent is the single entry point for every process this system
// runs, dispatching on --task the way systemd units or a process
// supervisor would invoke separate binaries. Flag-parsing shape grounded
// on the teacher's cmd/tarsy/main.go (flag.String with an env var
// fallback); signal-driven graceful shutdown grounded on
// giantswarm-muster's internal/app/modes.go runOrchestrator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rysavy-ondrej/project-inventor/internal/apperrors"
	"github.com/rysavy-ondrej/project-inventor/internal/calendar"
	"github.com/rysavy-ondrej/project-inventor/internal/cleaner"
	"github.com/rysavy-ondrej/project-inventor/internal/config"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/database"
	"github.com/rysavy-ondrej/project-inventor/internal/logging"
	"github.com/rysavy-ondrej/project-inventor/internal/probe"
	"github.com/rysavy-ondrej/project-inventor/internal/responder"
	"github.com/rysavy-ondrej/project-inventor/internal/stats"
	"github.com/rysavy-ondrej/project-inventor/internal/testsmanager"
	"github.com/rysavy-ondrej/project-inventor/internal/version"

	"github.com/rysavy-ondrej/project-inventor/internal/api"
	"github.com/rysavy-ondrej/project-inventor/internal/auth"
)

// resultBuffer is the Tests Manager's in-flight probe-result channel
// capacity -- generous relative to any realistic concurrent run count.
const resultBuffer = 256

// probeChildMaxDuration bounds a self-exec probe child as a backstop
// only; the real deadline enforcement is the Tests Manager's own
// terminate/kill/zombie escalation against the parent's view of the
// Test's timeout, not this process's local context.
const probeChildMaxDuration = 10 * time.Minute

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	task := flag.String("task", "",
		"one of: init_database, calendar, cleaner, responder, server, stats, tests_manager, probe")
	persistent := flag.String("persistent", getEnv("PERSISTENT_DIR", "./var"),
		"directory holding config.ini and, unless overridden, the log sinks")

	probeName := flag.String("probe", "", "probe name (only with --task probe)")
	probeParams := flag.String("params", "{}", "probe test_params JSON (only with --task probe)")
	probeRunID := flag.Int64("run-id", 0, "run id to report the result against (only with --task probe)")

	flag.Parse()

	if *task == "probe" {
		// No logging, no database, no config: a probe child is a short-lived
		// process whose entire contract is one JSON line on stdout.
		msg := probe.RunChild(*probeName, *probeParams, *probeRunID, probeChildMaxDuration)
		out, _ := json.Marshal(msg)
		fmt.Println(string(out))
		return
	}

	envPath := filepath.Join(*persistent, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	}

	slog.Info("starting", "app", version.Full(), "task", *task, "persistent", *persistent)

	configPath := filepath.Join(*persistent, "config.ini")
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("loading configuration", err)
	}
	slog.SetDefault(logging.NewOperationalLogger(logLevel(cfg.Logging.Level)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *task {
	case "init_database":
		runInitDatabase(ctx, cfg)
	case "calendar":
		runWithDB(ctx, cfg, func(set *dao.Set) lifecycle { return calendar.NewService(set) })
	case "cleaner":
		runWithDB(ctx, cfg, func(set *dao.Set) lifecycle { return cleaner.NewService(cfg.Cleaner, set) })
	case "stats":
		runWithDB(ctx, cfg, func(set *dao.Set) lifecycle { return stats.NewService(set) })
	case "tests_manager":
		runTestsManager(ctx, cfg)
	case "responder":
		runResponder(ctx, cfg)
	case "server":
		runServer(ctx, cfg, configPath, *persistent)
	default:
		fatal("parsing --task", fmt.Errorf("unknown task %q", *task))
	}

	slog.Info("stopped cleanly", "task", *task)
}

// lifecycle is the common Start/Stop shape every background service in
// this package implements.
type lifecycle interface {
	Start(ctx context.Context)
	Stop()
}

func runInitDatabase(ctx context.Context, cfg *config.Config) {
	client, err := database.NewClient(ctx, databaseConfig(cfg))
	if err != nil {
		fatal("connecting to database", err)
	}
	defer client.Close()
	slog.Info("database initialized (connection verified, migrations applied)")
}

// runWithDB connects, builds the dao.Set, starts svc via newService, and
// blocks until a signal arrives, then stops it -- the shape shared by
// calendar, cleaner, and stats, which differ only in which Service they
// construct.
func runWithDB(ctx context.Context, cfg *config.Config, newService func(*dao.Set) lifecycle) {
	client, err := database.NewClient(ctx, databaseConfig(cfg))
	if err != nil {
		fatal("connecting to database", err)
	}
	defer client.Close()

	set := dao.NewSet(client.DB)
	svc := newService(set)
	svc.Start(ctx)

	<-ctx.Done()
	svc.Stop()
}

func runTestsManager(ctx context.Context, cfg *config.Config) {
	client, err := database.NewClient(ctx, databaseConfig(cfg))
	if err != nil {
		fatal("connecting to database", err)
	}
	defer client.Close()

	set := dao.NewSet(client.DB)
	svc := testsmanager.NewService(set, cfg.Tests, resultBuffer)
	svc.Start(ctx)

	<-ctx.Done()
	svc.Stop()
}

func runResponder(ctx context.Context, cfg *config.Config) {
	svc := responder.NewService(cfg.Responder)
	if err := svc.Start(ctx); err != nil {
		fatal("starting UDP responder", err)
	}

	<-ctx.Done()
	svc.Stop()
}

func runServer(ctx context.Context, cfg *config.Config, configPath, persistent string) {
	client, err := database.NewClient(ctx, databaseConfig(cfg))
	if err != nil {
		fatal("connecting to database", err)
	}
	defer client.Close()

	set := dao.NewSet(client.DB)

	sessions := auth.NewSessionSigner(cfg.Authentication.TokenKey, time.Duration(cfg.Authentication.TokenValidityInt)*time.Second)
	verifier := auth.NewVerifier(set.Nonces, time.Duration(cfg.Authorization.RequestValidityInt)*time.Second, cfg.Authorization.AllowDevBypassBool)

	debugSink, err := logging.OpenSink(logFilePath(persistent, cfg.Logging.DebugLogFile))
	if err != nil {
		fatal("opening debug log sink", err)
	}
	defer debugSink.Close()

	accountingSink, err := logging.OpenSink(logFilePath(persistent, cfg.Logging.AccountingLogFile))
	if err != nil {
		fatal("opening accounting log sink", err)
	}
	defer accountingSink.Close()

	srv := api.NewServer(cfg, configPath, set, sessions, verifier, debugSink, accountingSink)

	addr := fmt.Sprintf("%s:%d", cfg.API.ListenIP, cfg.API.ListenPort)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", addr)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			fatal("running API server", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown error", "error", err)
	}
}

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.PortPort,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConnsInt,
		MaxIdleConns:    cfg.Database.MaxIdleConnsInt,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// logFilePath resolves a configured log file path relative to persistent
// when it isn't already absolute, so config.ini can name sinks with
// short filenames instead of repeating the persistent directory.
func logFilePath(persistent, configured string) string {
	if configured == "" {
		return ""
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(persistent, configured)
}

func logLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func fatal(op string, err error) {
	slog.Error(op+" failed", "error", apperrors.NewGlobalError(op, err))
	os.Exit(1)
}
