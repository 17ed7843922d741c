package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keibalab/racedata-ingester/internal/config"
	"github.com/keibalab/racedata-ingester/internal/db"
	racehttp "github.com/keibalab/racedata-ingester/internal/http"
	"github.com/keibalab/racedata-ingester/internal/ingest"
	"github.com/keibalab/racedata-ingester/internal/jvdata"
	"github.com/keibalab/racedata-ingester/internal/metrics"
	"github.com/keibalab/racedata-ingester/internal/schema"
	"github.com/keibalab/racedata-ingester/internal/session"
	"github.com/keibalab/racedata-ingester/internal/writer"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "backfill":
		runBackfill()
	case "monitor":
		runMonitor()
	case "migrate":
		runMigrate()
	case "chunk-worker":
		runChunkWorker()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: racedata-ingester <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  backfill      Fetch a historical date range into the database")
	fmt.Println("  monitor       Run the live monitor with the HTTP control surface")
	fmt.Println("  migrate       Create the schema catalogue's tables")
	fmt.Println("  chunk-worker  Run a single backfill chunk (spawned by backfill)")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>    Path to configuration YAML file")
	fmt.Println("  --log-level <lvl>  Override log level (debug, info, warn, error)")
	fmt.Println("  --spec <spec>      Data spec to open (backfill/chunk-worker, default RACE)")
	fmt.Println("  --from <date>      Range start, YYYYMMDD or YYYY-MM-DD")
	fmt.Println("  --to <date>        Range end; omit for everything the vendor has")
	fmt.Println("  --skip-file <f>    File already delivered, skip it (repeatable)")
	fmt.Println("  --from-archive <p> Replay a recorded archive instead of opening a session")
}

type flags struct {
	configPath  string
	logLevel    string
	spec        string
	from        string
	to          string
	skipFiles   []string
	fromArchive string
}

func parseFlags(args []string) flags {
	var f flags
	take := func(i *int) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		return ""
	}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			f.configPath = take(&i)
		case "--log-level":
			f.logLevel = take(&i)
		case "--spec":
			f.spec = take(&i)
		case "--from":
			f.from = take(&i)
		case "--to":
			f.to = take(&i)
		case "--skip-file":
			if v := take(&i); v != "" {
				f.skipFiles = append(f.skipFiles, v)
			}
		case "--from-archive":
			f.fromArchive = take(&i)
		}
	}
	return f
}

func loadConfig(f flags) (*config.Config, *zap.Logger) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if f.logLevel != "" {
		cfg.Service.LogLevel = f.logLevel
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYYMMDD or YYYY-MM-DD)", s)
}

func newDriver(cfg *config.Config) db.Driver {
	if cfg.Database.Driver == "sqlite" {
		return db.NewSQLite(cfg.Database.Path)
	}
	return db.NewPostgres(cfg.Database.DSN, cfg.Database.MaxConns, cfg.Database.MinConns)
}

// buildPipeline wires the full record path: vendor bridge session,
// parser registry, schema catalogue, database driver and writer.
func buildPipeline(ctx context.Context, cfg *config.Config, opts ingest.Options, logger *zap.Logger) (*ingest.Coordinator, db.Driver, *schema.Catalogue) {
	feed, err := cfg.Vendor.ParseFeed()
	if err != nil {
		logger.Fatal("invalid feed", zap.Error(err))
	}
	reg := jvdata.NewRegistry(feed)
	cat, err := schema.Build(reg)
	if err != nil {
		logger.Fatal("building schema catalogue", zap.Error(err))
	}

	drv := newDriver(cfg)
	if err := drv.Connect(ctx); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	w := writer.New(drv, cat, writer.Config{BatchCap: cfg.Ingest.BatchSize}, logger)

	factory := func() session.Session {
		b, err := session.StartBridge(ctx, cfg.Vendor.BridgeCmd, logger)
		if err != nil {
			logger.Fatal("starting vendor bridge", zap.Error(err))
		}
		return b
	}

	co := ingest.New(feed, reg, cat, w, factory, cfg.Vendor.SessionConfig(), opts, logger)
	return co, drv, cat
}

func ingestOptions(cfg *config.Config, f flags) ingest.Options {
	opts := ingest.Options{
		ArchiveDir:    cfg.Ingest.ArchiveDir,
		StateFile:     cfg.Ingest.StateFile,
		WorkerTimeout: time.Duration(cfg.Ingest.WorkerTimeoutSeconds) * time.Second,
	}
	if cfg.Ingest.UseWorkerProcess {
		exe, err := os.Executable()
		if err == nil {
			opts.WorkerCmd = []string{exe, "chunk-worker"}
			if f.configPath != "" {
				opts.WorkerCmd = append(opts.WorkerCmd, "--config", f.configPath)
			}
		}
	}
	return opts
}

func runBackfill() {
	f := parseFlags(os.Args[2:])
	cfg, logger := loadConfig(f)
	defer logger.Sync()

	metrics.Register()

	spec := f.spec
	if spec == "" {
		spec = "RACE"
	}
	from, err := parseDate(f.from)
	if err != nil || (from.IsZero() && f.fromArchive == "") {
		logger.Fatal("backfill requires --from", zap.Error(err))
	}
	to, err := parseDate(f.to)
	if err != nil {
		logger.Fatal("invalid --to", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	co, drv, cat := buildPipeline(ctx, cfg, ingestOptions(cfg, f), logger)
	defer drv.Close()

	// Tables must exist before the first flush.
	if err := db.Migrate(ctx, drv, cat, logger); err != nil {
		logger.Fatal("ensuring tables", zap.Error(err))
	}

	if f.fromArchive != "" {
		n, err := co.ReplayArchive(ctx, f.fromArchive, schema.PathAccumulated)
		if err != nil {
			logger.Fatal("archive replay failed", zap.String("path", f.fromArchive), zap.Error(err))
		}
		snap := co.Snapshot()
		logger.Info("archive replay complete",
			zap.Int("records", n),
			zap.Int64("imported", snap.Imported),
			zap.Int64("failed", snap.Failed))
		return
	}

	logger.Info("starting backfill",
		zap.String("spec", spec),
		zap.String("from", from.Format("20060102")),
		zap.String("to", f.to),
	)

	res, err := co.RunBackfill(ctx, ingest.BackfillRequest{
		Spec:      spec,
		From:      from,
		To:        to,
		ChunkDays: cfg.Ingest.ChunkDays,
	})
	if err != nil {
		var verr *session.VendorError
		if errors.As(err, &verr) {
			logger.Error("backfill aborted on vendor error",
				zap.Int("code", verr.Code),
				zap.String("remedy", verr.Remedy),
				zap.Error(err))
		} else {
			logger.Error("backfill failed", zap.Error(err))
		}
		os.Exit(1)
	}

	switch {
	case res.Completed && !res.CompletedWithErrors:
		logger.Info("backfill complete",
			zap.Int64("fetched", res.Stats.Fetched),
			zap.Int64("imported", res.Stats.Imported))
	case res.Completed:
		logger.Warn("backfill complete with errors",
			zap.Int64("fetched", res.Stats.Fetched),
			zap.Int64("imported", res.Stats.Imported),
			zap.Int64("failed", res.Stats.Failed))
	default:
		logger.Info("backfill interrupted, resume state saved",
			zap.String("last_chunk", res.Stats.LastChunk))
	}
}

func runMonitor() {
	f := parseFlags(os.Args[2:])
	cfg, logger := loadConfig(f)
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting racedata-ingester",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
		zap.String("feed", cfg.Vendor.Feed),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	co, drv, cat := buildPipeline(ctx, cfg, ingestOptions(cfg, f), logger)
	defer drv.Close()

	if err := db.Migrate(ctx, drv, cat, logger); err != nil {
		logger.Fatal("ensuring tables", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := time.Duration(cfg.Monitor.IntervalSeconds) * time.Second
		if err := co.Monitor(ctx, cfg.Monitor.Specs, interval); err != nil && ctx.Err() == nil {
			logger.Error("monitor stopped", zap.Error(err))
		}
	}()

	// The historical trigger catches up today's setup-path data without
	// stopping the monitor. One at a time.
	var histBusy sync.Mutex
	historical := func() {
		if !histBusy.TryLock() {
			logger.Warn("historical run already in progress, trigger ignored")
			return
		}
		go func() {
			defer histBusy.Unlock()
			today := time.Now().Truncate(24 * time.Hour)
			if _, err := co.RunBackfill(ctx, ingest.BackfillRequest{
				Spec: "RACE",
				From: today,
			}); err != nil {
				logger.Error("triggered historical run failed", zap.Error(err))
			}
		}()
	}

	httpServer := racehttp.NewServer(cfg.Service.HTTPListen, co, racehttp.Triggers{
		Realtime:   co.TriggerRealtime,
		Historical: historical,
	}, drv, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("monitor and HTTP server started",
		zap.Strings("specs", cfg.Monitor.Specs),
		zap.Int("interval_seconds", cfg.Monitor.IntervalSeconds),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting HTTP traffic first.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel to stop the monitor; it flushes pending rows on its way out.
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("monitor stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, monitor may not have flushed")
	}

	logger.Info("racedata-ingester stopped")
}

func runMigrate() {
	f := parseFlags(os.Args[2:])
	cfg, logger := loadConfig(f)
	defer logger.Sync()

	target := cfg.Database.Path
	if cfg.Database.Driver == "postgres" {
		target = redactDSN(cfg.Database.DSN)
	}
	logger.Info("creating tables",
		zap.String("driver", cfg.Database.Driver),
		zap.String("target", target),
	)

	ctx := context.Background()
	feed, err := cfg.Vendor.ParseFeed()
	if err != nil {
		logger.Fatal("invalid feed", zap.Error(err))
	}
	cat, err := schema.Build(jvdata.NewRegistry(feed))
	if err != nil {
		logger.Fatal("building schema catalogue", zap.Error(err))
	}

	drv := newDriver(cfg)
	if err := drv.Connect(ctx); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer drv.Close()

	if err := db.Migrate(ctx, drv, cat, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete", zap.Int("tables", len(cat.Tables())))
}

// runChunkWorker is the child side of process-isolated backfill. It
// runs exactly one chunk and reports the outcome as a single JSON line
// on stdout; logs go to stderr so the parent can forward them.
func runChunkWorker() {
	f := parseFlags(os.Args[2:])
	cfg, logger := loadConfig(f)
	defer logger.Sync()

	spec := f.spec
	if spec == "" {
		spec = "RACE"
	}
	from, err := parseDate(f.from)
	if err != nil || from.IsZero() {
		logger.Fatal("chunk-worker requires --from", zap.Error(err))
	}
	to, err := parseDate(f.to)
	if err != nil {
		logger.Fatal("invalid --to", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Children never spawn further workers.
	opts := ingest.Options{ArchiveDir: cfg.Ingest.ArchiveDir}
	co, drv, _ := buildPipeline(ctx, cfg, opts, logger)
	defer drv.Close()

	res, runErr := co.RunChunk(ctx, spec, from, to, f.skipFiles)
	if res == nil {
		res = &session.Result{}
	}
	if err := session.WriteWorkerResult(os.Stdout, res); err != nil {
		logger.Error("writing worker result", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("chunk failed", zap.Error(runErr))
		os.Exit(1)
	}
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		re := regexp.MustCompile(`password\s*=\s*\S+`)
		return re.ReplaceAllString(dsn, "password=***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
