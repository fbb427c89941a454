package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/netsentry/internal/config"
	"github.com/HerbHall/netsentry/internal/discover"
	"github.com/HerbHall/netsentry/internal/forward"
	"github.com/HerbHall/netsentry/internal/netflow"
	"github.com/HerbHall/netsentry/internal/poller"
	"github.com/HerbHall/netsentry/internal/profile"
	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/internal/syslogd"
	"github.com/HerbHall/netsentry/internal/traps"
	"github.com/HerbHall/netsentry/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Configuration errors are the only fatal startup condition; nothing
	// listens before Load succeeds.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("netsentry agent starting", zap.String("version", version.Short()))

	agentID := cfg.Agent.ID
	if agentID == "" {
		agentID = uuid.New().String()
	}
	hostname := cfg.Agent.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	registry := stats.NewRegistry(prometheus.DefaultRegisterer)
	q := queue.New(cfg.Queue.MaxSize)
	registry.RegisterQueueDepth(prometheus.DefaultRegisterer, func() float64 {
		return float64(q.Depth())
	})

	client := forward.NewClient(cfg.Ingest, agentID, hostname, logger.Named("forward"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Register(ctx, version.Short(), capabilities(cfg),
		cfg.Ingest.RegisterRetries, cfg.Ingest.RegisterBackoff); err != nil {
		logger.Fatal("registration failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				logger.Error(name+" terminated", zap.Error(err))
			}
		}()
	}

	devices := cfg.EnabledDevices()
	var p *poller.Poller
	if len(devices) > 0 {
		p = poller.New(cfg.SNMP, profile.Defaults(), poller.NewSNMPSession,
			q, registry.Collector("snmp-poller"), logger.Named("poller"))
		start("poller", func(ctx context.Context) error {
			p.Run(ctx, devices)
			return nil
		})
	}

	if cfg.Traps.Enabled {
		tr := traps.New(cfg.Traps.Listen, cfg.Traps.Community, cfg.Traps.V3,
			q, registry.Collector("traps"), logger.Named("traps"))
		start("trap receiver", tr.Run)
	}

	if cfg.Syslog.Enabled {
		policy := syslogd.NewSourcePolicy(cfg.Syslog.AllowedSources,
			cfg.Syslog.BlockedSources, cfg.DeviceIPs(), cfg.Syslog.AcceptKnownDevices)
		sl := syslogd.New(cfg.Syslog.UDPListen, cfg.Syslog.TCPListen, cfg.Syslog.Format,
			policy, q, registry.Collector("syslog"), logger.Named("syslog"))
		start("syslog receiver", sl.Run)
	}

	if cfg.NetFlow.Enabled {
		nf := netflow.New(cfg.NetFlow.Listen,
			q, registry.Collector("netflow"), logger.Named("netflow"))
		start("netflow collector", nf.Run)
	}

	if cfg.Discovery.Enabled {
		inventory := discover.NewInventory()
		sweeper := discover.NewSweeper(cfg.Discovery, inventory, logger.Named("discover"))
		start("discovery sweep", sweeper.Sweep)

		if cfg.Discovery.MDNS {
			listener := discover.NewMDNSListener(inventory, logger.Named("mdns"), 5*time.Minute)
			start("mdns listener", func(ctx context.Context) error {
				listener.Run(ctx)
				return nil
			})
		}
	}

	sender := forward.NewSender(q, client, cfg.Batch.Size, cfg.Batch.Interval,
		forward.RealClock, logger.Named("sender"))
	start("sender", func(ctx context.Context) error {
		sender.Run(ctx)
		return nil
	})

	hb := forward.NewHeartbeat(client, registry, q, cfg.Heartbeat.Interval, logger.Named("heartbeat"))
	start("heartbeat", func(ctx context.Context) error {
		hb.Run(ctx)
		return nil
	})

	start("stats logger", func(ctx context.Context) error {
		logStats(ctx, registry, q, p, logger)
		return nil
	})

	logger.Info("netsentry agent ready",
		zap.Int("devices", len(devices)),
		zap.Bool("traps", cfg.Traps.Enabled),
		zap.Bool("syslog", cfg.Syslog.Enabled),
		zap.Bool("netflow", cfg.NetFlow.Enabled),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	q.Close()
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("netsentry agent stopped")
}

// capabilities lists the protocol surfaces this agent has enabled.
func capabilities(cfg *config.Config) []string {
	caps := []string{}
	if len(cfg.EnabledDevices()) > 0 {
		caps = append(caps, "snmp")
	}
	if cfg.Traps.Enabled {
		caps = append(caps, "snmp-traps")
	}
	if cfg.Syslog.Enabled {
		caps = append(caps, "syslog")
	}
	if cfg.NetFlow.Enabled {
		caps = append(caps, "netflow")
	}
	if cfg.Discovery.Enabled {
		caps = append(caps, "discovery")
	}
	return caps
}

// logStats emits a periodic aggregate line so operators can watch the
// pipeline without scraping metrics.
func logStats(ctx context.Context, registry *stats.Registry, q *queue.Queue, p *poller.Poller, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fields := []zap.Field{zap.Int("queue_depth", q.Depth())}
			for name, snap := range registry.Snapshots() {
				fields = append(fields,
					zap.Uint64(name+"_parsed", snap.Parsed),
					zap.Uint64(name+"_dropped", snap.Dropped),
					zap.Uint64(name+"_errors", snap.Errors),
				)
			}
			if p != nil {
				fields = append(fields, zap.Int("polled_devices", len(p.Cache().All())))
			}
			logger.Info("collector stats", fields...)
		}
	}
}

// buildLogger constructs the zap logger per the log config.
func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
