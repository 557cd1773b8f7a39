// Command tagsched runs the tag subscription scheduler as a standalone
// server.
//
// It loads a tag catalog, reads tag values from Redis or an in-process cache
// at every active update interval, and exposes Prometheus metrics and a JSON
// status document over HTTP.
//
// Usage:
//
//	tagsched [flags]
//
// Flags:
//
//	--config string     Configuration file (YAML)
//	--tags string       Tag catalog file (default "tags.yaml")
//	--listen string     HTTP listen address (default ":8090")
//	--redis string      Redis address for the value cache
//	--log-level string  debug, info, warn, error (default "info")
//	--event-log string  Write CBOR engine events to this file
//	--snapshot string   Write a scheduler snapshot on shutdown
//	--advertise         Announce the server over mDNS
//	-i, --interactive   Start the interactive console
//
// Examples:
//
//	# In-memory cache with a console
//	tagsched --tags plant.yaml -i
//
//	# Redis-backed values with event capture
//	tagsched --config /etc/tagsched.yaml --redis localhost:6379 --event-log events.cbor
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/mash-protocol/tagsched/cmd/tagsched/interactive"
	"github.com/mash-protocol/tagsched/pkg/discovery"
	"github.com/mash-protocol/tagsched/pkg/dispatch"
	"github.com/mash-protocol/tagsched/pkg/log"
	"github.com/mash-protocol/tagsched/pkg/metrics"
	"github.com/mash-protocol/tagsched/pkg/persistence"
	"github.com/mash-protocol/tagsched/pkg/service"
	"github.com/mash-protocol/tagsched/pkg/tag"
	"github.com/mash-protocol/tagsched/pkg/valuecache"
	"github.com/mash-protocol/tagsched/pkg/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	catalog, err := tag.LoadCatalog(cfg.Tags)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	var logOut io.Writer = os.Stderr
	if cfg.Interactive {
		console, err = interactive.New(catalog)
		if err != nil {
			return err
		}
		logOut = console.Stderr()
	}

	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	logger.Info("tagsched starting", slog.String("version", version.Current), slog.Int("tags", catalog.Len()))

	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg, cfg.Namespace)

	var events log.Logger
	if cfg.EventLog != "" {
		fl, err := log.NewFileLogger(cfg.EventLog)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer fl.Close()
		events = fl
		logger.Info("capturing events", slog.String("path", cfg.EventLog))
	}

	var cache valuecache.Service
	if cfg.Redis.Addr != "" {
		cache = valuecache.NewRedis(valuecache.NewGoRedisMGetter(cfg.Redis.Addr), cfg.Redis.KeyPrefix)
		logger.Info("reading values from redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		cache = valuecache.NewMemory()
	}

	svcCfg := cfg.serviceConfig()
	svcCfg.Logger = logger
	svcCfg.EventLogger = events
	svcCfg.Metrics = collector
	svcCfg.Dispatch.OnBatch = func(b dispatch.Batch) {
		logger.Debug("batch read",
			slog.Duration("interval", b.Interval),
			slog.Int("tags", len(b.Handles)),
			slog.Int("values", len(b.Values)))
	}

	srv := service.NewDataServer(catalog, cache, svcCfg)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			logger.Warn("stop failed", slog.Any("error", err))
		}
	}()

	var snapshots *persistence.SnapshotStore
	if cfg.Snapshot != "" {
		snapshots = persistence.NewSnapshotStore(cfg.Snapshot)
		defer func() {
			if err := snapshots.Save(srv.Snapshot()); err != nil {
				logger.Warn("snapshot save failed", slog.Any("error", err))
				return
			}
			logger.Info("snapshot saved", slog.String("path", snapshots.Path()))
		}()
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	httpSrv := &http.Server{
		Handler:           newMux(srv, reg, catalog.Len(), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
	logger.Info("http listening", slog.String("addr", ln.Addr().String()))

	if cfg.Advertise.Enabled {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Interface: cfg.Advertise.Interface,
			TTL:       cfg.Advertise.TTL,
		})
		info := discovery.ServiceInfo{
			InstanceName: cfg.Advertise.Name,
			Port:         listenPort(ln.Addr()),
			Tags:         catalog.Len(),
			Version:      version.Current,
		}
		if err := adv.Advertise(info); err != nil {
			logger.Warn("mdns advertise failed", slog.Any("error", err))
		} else {
			defer adv.Stop()
			logger.Info("advertising", slog.String("service", discovery.ServiceType))
		}
	}

	if console != nil {
		console.Attach(srv)
		console.SetSnapshotStore(snapshots)
		console.Run(ctx, cancel)
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	return nil
}

func listenPort(addr net.Addr) uint16 {
	_, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseUint(p, 10, 16)
	return uint16(n)
}
