package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventbus-fabric/eventbus/internal/agent"
	"github.com/eventbus-fabric/eventbus/internal/breaker"
	"github.com/eventbus-fabric/eventbus/internal/config"
	"github.com/eventbus-fabric/eventbus/internal/keys"
	"github.com/eventbus-fabric/eventbus/internal/logger"
	"github.com/eventbus-fabric/eventbus/internal/metrics"
	"github.com/eventbus-fabric/eventbus/internal/probes"
	"github.com/eventbus-fabric/eventbus/internal/transport"
	"github.com/eventbus-fabric/eventbus/internal/transport/httprpc"
	"github.com/eventbus-fabric/eventbus/internal/transport/wsrpc"
	"github.com/eventbus-fabric/eventbus/internal/wal/filestore"
	"github.com/eventbus-fabric/eventbus/internal/wal/pgstore"
)

var (
	runConfigDir string
	runEnv       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Agent's collection and drain loops",
	Long: `run loads configuration, opens the local write-ahead log, dials the
EventBus over mTLS, and runs the probe-collection loop and the drain loop
as independent goroutines until SIGINT/SIGTERM.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigDir, "config-dir", "config", "directory to search for <env>.yaml/default.yaml/config.yaml")
	runCmd.Flags().StringVar(&runEnv, "env", "", "environment name (overrides EVENTBUS_ENV)")
	rootCmd.AddCommand(runCmd)
}

// collectionInterval is the per-cycle scheduling period (spec.md §4.6
// "scheduled every collection_interval, default 30 s"). Every probe is
// polled on this one shared ticker; a probe's own Interval is not consulted.
const collectionInterval = 30 * time.Second

func runRun(cmd *cobra.Command, args []string) error {
	opts := config.DefaultLoaderOptions()
	opts.ConfigDir = runConfigDir
	if runEnv != "" {
		opts.Environment = runEnv
	}
	cfg, err := config.Load(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.Logging)
	log.Info("starting agent", logger.String("source_identity", cfg.Agent.SourceIdentity))

	kp, err := keys.LoadEd25519PrivateKeyPEM(cfg.Agent.Ed25519PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	store, err := filestore.Open(filestore.Config{
		Path:             cfg.Agent.WALPath,
		MaxBytes:         cfg.Agent.WALMaxBytes,
		MaxRecords:       cfg.Agent.WALMaxRecords,
		FsyncEveryAppend: cfg.Agent.WALFsyncEveryAppend,
	})
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer store.Close()

	tlsCfg, err := transport.ClientTLSConfig(cfg.Agent.TLSCAPath, cfg.Agent.TLSClientCertPath, cfg.Agent.TLSClientKeyPath)
	if err != nil {
		return fmt.Errorf("build client TLS config: %w", err)
	}

	var rpc transport.RPC
	switch cfg.Agent.Transport {
	case "ws":
		wsClient, err := wsrpc.Dial(context.Background(), streamURL(cfg.Agent.BusAddress), tlsCfg)
		if err != nil {
			return fmt.Errorf("dial bus stream: %w", err)
		}
		rpc = wsClient
	default:
		rpc = httprpc.New(cfg.Agent.BusAddress, tlsCfg)
	}

	br := breaker.New(breaker.Config{
		FailureThreshold: cfg.Agent.BreakerFailureThreshold,
		OpenDuration:     time.Duration(cfg.Agent.BreakerOpenSeconds) * time.Second,
	})

	agentMetrics := metrics.NewAgentMetrics()

	probeSet := defaultProbeSet(cfg)

	core := agent.New(cfg.Agent.SourceIdentity, kp, probeSet, store, rpc, br, agentMetrics, log).
		WithConfig(agent.Config{
			BatchSize:     cfg.Agent.BatchSize,
			SendTimeout:   10 * time.Second,
			SendInterval:  sendInterval(cfg.Agent.SendRate),
			ShutdownGrace: time.Duration(cfg.Agent.ShutdownGraceSeconds) * time.Second,
			Backoff: agent.BackoffConfig{
				Base:   time.Duration(cfg.Agent.RetryBaseMS) * time.Millisecond,
				Factor: 2.0,
				Cap:    time.Duration(cfg.Agent.RetryMaxMS) * time.Millisecond,
				Jitter: cfg.Agent.RetryJitter,
				Floor:  time.Duration(cfg.Agent.RetryFloorMS) * time.Millisecond,
			},
		})

	if cfg.Agent.PayloadConfidentialityEnabled {
		busPub, err := base64.StdEncoding.DecodeString(cfg.Agent.BusEd25519PublicKeyB64)
		if err != nil {
			return fmt.Errorf("decode bus_ed25519_public_key_b64: %w", err)
		}
		if len(busPub) != ed25519.PublicKeySize {
			return fmt.Errorf("bus_ed25519_public_key_b64 decodes to %d bytes, want %d", len(busPub), ed25519.PublicKeySize)
		}
		core.WithConfidentiality(ed25519.PublicKey(busPub))
		log.Info("payload confidentiality enabled")
	}

	if cfg.Agent.PgMirror.Enabled {
		mirror, err := pgstore.Open(context.Background(), pgstore.Config{
			Host:     cfg.Agent.PgMirror.Host,
			Port:     cfg.Agent.PgMirror.Port,
			User:     cfg.Agent.PgMirror.User,
			Password: cfg.Agent.PgMirror.Password,
			Database: cfg.Agent.PgMirror.Database,
			SSLMode:  cfg.Agent.PgMirror.SSLMode,
		})
		if err != nil {
			return fmt.Errorf("open postgres mirror: %w", err)
		}
		core.WithPostgresMirror(mirror)
		log.Info("postgres wal mirror enabled", logger.String("database", cfg.Agent.PgMirror.Database))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsAddr := fmt.Sprintf(":%d", cfg.Agent.MetricsPort)
	go func() {
		if err := metrics.StartServer(metricsAddr); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", logger.Error(err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runCollectLoop(ctx, core, log)
	}()
	go func() {
		defer wg.Done()
		runDrainLoop(ctx, core, log)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", logger.String("signal", sig.String()))

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Agent.ShutdownGraceSeconds)*time.Second)
	defer shutdownCancel()
	if err := core.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown drain error", logger.Error(err))
	}
	return nil
}

func runCollectLoop(ctx context.Context, core *agent.Agent, log logger.Logger) {
	ticker := time.NewTicker(collectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := core.CollectOnce(ctx); err != nil {
				log.Error("collection cycle failed", logger.Error(err))
			}
		}
	}
}

func runDrainLoop(ctx context.Context, core *agent.Agent, log logger.Logger) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := core.DrainOnce(ctx)
		if err != nil {
			log.Error("drain cycle failed", logger.Error(err))
		}
		if n == 0 {
			attempt++
		} else {
			attempt = 0
		}

		delay := core.RetryDelay(attempt)
		if delay <= 0 {
			delay = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// streamURL derives the wsrpc dial target from the Agent's configured
// bus_address (an https:// base URL shared with httprpc), per SPEC_FULL.md
// §4.11's scoping of the Stream Handshake to the PublishStream endpoint.
func streamURL(busAddress string) string {
	url := strings.Replace(busAddress, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return strings.TrimRight(url, "/") + "/publish/stream"
}

func sendInterval(sendRate float64) time.Duration {
	if sendRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / sendRate)
}

func defaultProbeSet(cfg *config.Config) []probes.Probe {
	return []probes.Probe{
		probes.NewProcessProbe(collectionInterval),
		probes.NewFlowProbe(collectionInterval),
		probes.NewAuthProbe(collectionInterval),
		probes.NewDNSProbe(collectionInterval),
		probes.NewFileChangeProbe(collectionInterval),
		probes.NewPeripheralProbe(collectionInterval),
	}
}
