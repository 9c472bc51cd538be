package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hpcdash/client/prefdb"
	"hpcdash/client/statusapi"
	"hpcdash/config"
	"hpcdash/internal/app/router"
	"hpcdash/internal/app/site"
	"hpcdash/internal/module/clusters"
	"hpcdash/internal/module/dashboard"
	prefmod "hpcdash/internal/module/preference"
	"hpcdash/internal/pkg/ingest"
	"hpcdash/internal/pkg/preference"
	"hpcdash/internal/pkg/render"
	"hpcdash/internal/pkg/session"

	docs "hpcdash/internal/app/docs"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const appName = "hpcdash"

// @title           hpcdash
// @version         0.1.0
// @description     HPC system status and allocation dashboard
// @schema			http
// @BasePath        /
func main() {
	// CLI flags
	var (
		addrFlag        = kingpin.Flag("addr", "Server listen address (e.g. :8080 or 127.0.0.1:8080)").Default(":8080").Envar("HPCDASH_ADDR").String()
		shutdownTimeout = kingpin.Flag("shutdown-timeout", "Graceful shutdown timeout (e.g. 10s)").Default("10s").Envar("HPCDASH_SHUTDOWN_TIMEOUT").String()
		logFormat       = kingpin.Flag("log-format", "Log format").Default("text").Envar("HPCDASH_LOG_FORMAT").Enum("text", "json")
		logOutput       = kingpin.Flag("log-output", "Log output destination").Default("stdout").Envar("HPCDASH_LOG_OUTPUT").Enum("stdout", "stderr", "file")
		logFile         = kingpin.Flag("log-file", "Log file path (used when --log-output=file)").Envar("HPCDASH_LOG_FILE").String()
		logLevel        = kingpin.Flag("log-level", "Minimum log level").Default("info").Envar("HPCDASH_LOG_LEVEL").Enum("debug", "info", "warn", "error")
		configFile      = kingpin.Flag("config", "Path to YAML config file").Short('c').Default("config.yaml").Envar("HPCDASH_CONFIG").String()
		urlPrefix       = kingpin.Flag("url-prefix", "Path prefix the dashboard is served under (overrides server.urlPrefix)").Envar("HPCDASH_URL_PREFIX").String()

		serveCmd    = kingpin.Command("serve", "Run the dashboard server").Default()
		snapshotCmd = kingpin.Command("snapshot", "Print the fleet summary and the clusters with the most hours left")
		snapshotTop = snapshotCmd.Flag("top", "Number of clusters to print").Default("5").Int()
	)
	kingpin.Version(version.Print(appName))
	kingpin.HelpFlag.Short('h')
	cmd := kingpin.Parse()

	// Internal helper to create configured logger
	logger, cleanup, err := newLogger(*logOutput, *logFormat, *logLevel, func() string {
		if logFile == nil {
			return ""
		}
		return *logFile
	}())
	if err != nil {
		// Fallback to stderr if logger setup fails
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// Load config
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configFile), slog.Any("err", err))
		os.Exit(1)
	}
	if *urlPrefix != "" {
		cfg.Server.URLPrefix = *urlPrefix
	}

	// Init status api client and set as default
	scli, err := statusapi.New(cfg.Server.Upstream, logger)
	if err != nil {
		logger.Error("failed to initialize status api client", slog.Any("err", err))
		os.Exit(1)
	}
	statusapi.SetDefault(scli)
	logger.Info("status api", slog.String("base_url", scli.BaseURL()))

	switch cmd {
	case snapshotCmd.FullCommand():
		ctx, cancel := context.WithTimeout(context.Background(), 2*config.ParseDuration(cfg.Server.Upstream.Timeout, 20*time.Second))
		defer cancel()
		if err := runSnapshot(ctx, os.Stdout, statusapi.Default(), cfg.Server.ClusterPages(), *snapshotTop, logger); err != nil {
			logger.Error("snapshot failed", slog.Any("err", err))
			os.Exit(1)
		}
	case serveCmd.FullCommand():
		if err := serve(cfg, *addrFlag, *shutdownTimeout, logger); err != nil {
			logger.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func serve(cfg *config.Config, addr, shutdownTimeout string, logger *slog.Logger) error {
	s := cfg.Server
	prefix := router.NormalizePrefix(s.URLPrefix)

	// Theme preferences: MySQL when configured, memory otherwise
	var prefStore preference.Store = preference.NewMemoryStore()
	if s.PrefDB.Host != "" {
		pcli, err := prefdb.New(s.PrefDB, logger)
		if err != nil {
			logger.Warn("preference database unavailable, keeping preferences in memory", slog.Any("err", err))
		} else {
			prefdb.SetDefault(pcli)
			prefStore = prefdb.Default()
			defer func() { _ = pcli.Close() }()
		}
	}
	themes := preference.NewThemes(prefStore, s.DefaultTheme, logger)

	// Feeds
	store := ingest.NewStore()
	ctrl := ingest.NewController(statusapi.Default(), store, ingest.Options{
		StatusRetry:     config.ParseDuration(s.Feeds.StatusRetry, 15*time.Second),
		StatusRefresh:   config.ParseDuration(s.Feeds.StatusRefresh, 3*time.Minute),
		ClusterRetry:    config.ParseDuration(s.Feeds.ClusterRetry, 60*time.Second),
		ClusterRefresh:  config.ParseDuration(s.Feeds.ClusterRefresh, 5*time.Minute),
		ClustersEnabled: s.ClusterPages(),
	}, logger)
	ctx, cancelFeeds := context.WithCancel(context.Background())
	defer cancelFeeds()
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Stop()

	tmpl, err := render.Templates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	sessions := session.NewManager(store, statusapi.Default(), config.ParseDuration(s.SessionTTL, 30*time.Minute), prefix, logger)
	pages := &site.Site{
		Title:        s.Title,
		Prefix:       prefix,
		ClusterPages: s.ClusterPages(),
		Templates:    tmpl,
		Store:        store,
		Themes:       themes,
		Logger:       logger,
	}

	// Build router
	r := router.New(logger)
	docs.SwaggerInfo.BasePath = prefix + "/"
	r.GET(prefix+"/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	prometheus.MustRegister(versioncollector.NewCollector(appName))
	r.GET(prefix+"/metrics", gin.WrapH(promhttp.Handler()))

	// 注册所有模块
	router.Register(
		dashboard.Router{Site: pages, Refresher: ctrl, Fetcher: statusapi.Default()},
		prefmod.Router{Site: pages},
	)
	if s.ClusterPages() {
		router.Register(clusters.Router{Site: pages})
	}
	router.MountAll(r.Group(prefix, sessions.Middleware()))

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", addr), slog.String("prefix", prefix), slog.String("version", version.Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
		// proceed to shutdown
	}
	logger.Info("shutting down server...")

	// Parse shutdown timeout
	to, err := time.ParseDuration(shutdownTimeout)
	if err != nil || to <= 0 {
		to = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), to)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	logger.Info("server exiting")
	return nil
}

func newLogger(logOutput, logFormat, logLevel, logFile string) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, nil, fmt.Errorf("unsupported log level: %s", logLevel)
	}

	var w io.Writer
	var closer io.Closer
	switch logOutput {
	case "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	case "file":
		if logFile == "" {
			return nil, nil, fmt.Errorf("--log-file is required when --log-output=file")
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = f
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", logOutput)
	}

	var handler slog.Handler
	switch logFormat {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: false})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, AddSource: false})
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", logFormat)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	cleanup := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return logger, cleanup, nil
}
