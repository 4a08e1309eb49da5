package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventbus-fabric/eventbus/internal/admission"
	"github.com/eventbus-fabric/eventbus/internal/busserver"
	"github.com/eventbus-fabric/eventbus/internal/config"
	"github.com/eventbus-fabric/eventbus/internal/dedup"
	"github.com/eventbus-fabric/eventbus/internal/keys"
	"github.com/eventbus-fabric/eventbus/internal/logger"
	"github.com/eventbus-fabric/eventbus/internal/metrics"
	"github.com/eventbus-fabric/eventbus/internal/transport"
	"github.com/eventbus-fabric/eventbus/internal/transport/httprpc"
	"github.com/eventbus-fabric/eventbus/internal/transport/wsrpc"
	"github.com/eventbus-fabric/eventbus/internal/trustmap"
	"github.com/eventbus-fabric/eventbus/pkg/health"
)

var (
	serveConfigDir string
	serveEnv       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the EventBus server",
	Long: `serve loads configuration, builds the trust map, dedup cache,
admission controller, and sink, then accepts mTLS Publish calls over both
the unary HTTP transport and the streaming WebSocket transport.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigDir, "config-dir", "config", "directory to search for <env>.yaml/default.yaml/config.yaml")
	serveCmd.Flags().StringVar(&serveEnv, "env", "", "environment name (overrides EVENTBUS_ENV)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := config.DefaultLoaderOptions()
	opts.ConfigDir = serveConfigDir
	if serveEnv != "" {
		opts.Environment = serveEnv
	}
	cfg, err := config.Load(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.Logging)
	log.Info("starting eventbus server", logger.String("environment", cfg.Environment))

	trust, err := trustmap.Load(cfg.Bus.TrustMapPath)
	if err != nil {
		return fmt.Errorf("load trust map: %w", err)
	}
	log.Info("trust map loaded", logger.Int("entries", trust.Size()))

	dedupe := dedup.New(cfg.Bus.DedupTTL, cfg.Bus.DedupCapacity)
	adm := admission.New(admission.Config{
		MaxInflightSoft:    cfg.Bus.MaxInflightSoft,
		MaxInflightHard:    cfg.Bus.MaxInflightHard,
		OverloadHysteresis: cfg.Bus.OverloadHysteresis,
	})
	sink := busserver.NewBoundedChannelSink(cfg.Bus.SinkBuffer)
	busMetrics := metrics.NewBusMetrics()

	srv := busserver.New(trust, dedupe, adm, sink, busMetrics, log)

	if cfg.Bus.PayloadConfidentialityEnabled {
		busKP, err := keys.LoadEd25519PrivateKeyPEM(cfg.Bus.Ed25519PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("load bus identity key: %w", err)
		}
		priv, ok := busKP.PrivateKey().(ed25519.PrivateKey)
		if !ok {
			return fmt.Errorf("bus identity key at %s is not an ed25519 key", cfg.Bus.Ed25519PrivateKeyPath)
		}
		srv.WithConfidentiality(priv)
		log.Info("payload confidentiality enabled")
	}

	tlsCfg, err := transport.ServerTLSConfig(cfg.Bus.TLSCAPath, cfg.Bus.TLSServerCertPath, cfg.Bus.TLSServerKeyPath)
	if err != nil {
		return fmt.Errorf("build server TLS config: %w", err)
	}

	httpTransport := httprpc.New(srv.HandlePublish, tlsCfg)
	wsTransport := wsrpc.New(srv.HandlePublish)

	mux := http.NewServeMux()
	mux.Handle("/publish", httpTransport.Handler())
	mux.Handle("/publish/stream", wsTransport.Handler())

	listenAddr := fmt.Sprintf("%s:%d", cfg.Bus.ListenHost, cfg.Bus.ListenPort)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	checker := health.NewHealthChecker(5 * time.Second)
	checker.RegisterCheck("trust_map", health.TrustMapHealthCheck(trust.Size))
	var listenerBound atomic.Bool
	checker.RegisterCheck("listener", health.ListenerHealthCheck(func() error {
		if !listenerBound.Load() {
			return fmt.Errorf("listener is not bound")
		}
		return nil
	}))
	checker.RegisterCheck("sink", health.SinkHealthCheck(func(ctx context.Context) error {
		if len(sink.C()) == cap(sink.C()) {
			return fmt.Errorf("sink buffer is full")
		}
		return nil
	}))
	healthSrv := health.NewServer(checker, log, cfg.Bus.HealthPort)

	go drainSink(sink, log)

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	listenerBound.Store(true)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", listenAddr))
		if err := httpServer.ServeTLS(ln, "", ""); err != nil && err != http.ErrServerClosed {
			listenerBound.Store(false)
			errCh <- err
		}
	}()
	if err := healthSrv.Start(); err != nil {
		return fmt.Errorf("start health server: %w", err)
	}
	metricsAddr := fmt.Sprintf(":%d", cfg.Bus.MetricsPort)
	go func() {
		if err := metrics.StartServer(metricsAddr); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("listener failed", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", logger.Error(err))
	}
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		log.Error("health shutdown error", logger.Error(err))
	}
	return nil
}

// drainSink is the example downstream consumer: a real deployment replaces
// this with a forwarder to the organization's SIEM or log pipeline
// (spec.md §1 Non-goals excludes "the downstream sink/SIEM integration
// itself").
func drainSink(sink *busserver.BoundedChannelSink, log logger.Logger) {
	for e := range sink.C() {
		log.Debug("sink received envelope",
			logger.String("source_identity", e.SourceIdentity),
			logger.String("variant", string(e.Variant)),
		)
	}
}
