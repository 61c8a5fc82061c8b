// Command hedge-engine runs the XAUUSD hedging-and-recovery closure engine
// as a standalone process: it loads configuration, wires a BrokerGateway
// (simulated in -dry-run mode), starts the orchestrator's tick loop, and
// serves Prometheus metrics and the WebSocket observer feed over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isnooker21/huakuy-hedge-engine/internal/broker"
	"github.com/isnooker21/huakuy-hedge-engine/internal/config"
	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
	"github.com/isnooker21/huakuy-hedge-engine/internal/observer"
	"github.com/isnooker21/huakuy-hedge-engine/internal/orchestrator"
	"github.com/isnooker21/huakuy-hedge-engine/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the engine's JSON config file")
	dryRun := flag.Bool("dry-run", false, "use the in-memory simulated broker gateway instead of a real one")
	listenAddr := flag.String("listen", ":9090", "address to serve /metrics and /ws on")
	tickInterval := flag.Duration("tick-interval", 2*time.Second, "interval between orchestrator ticks")
	development := flag.Bool("dev", false, "use a human-readable development logger instead of JSON production logging")
	flag.Parse()

	log, err := telemetry.NewLogger(*development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Default()
	if *configPath != "" {
		if loaded, err := config.Load(*configPath, log); err != nil {
			log.Warn("using defaults, config load failed", zap.String("path", *configPath), zap.Error(err))
		} else {
			cfg = loaded
		}
	}

	telem := telemetry.New(log)
	hub := observer.NewHub(log)
	wsBroadcaster := observer.NewWebSocketBroadcaster(hub, log)

	var gateway broker.Gateway
	if *dryRun {
		log.Info("starting in dry-run mode against the simulated gateway")
		gateway = broker.NewSimulatedGateway(nil, model.Account{MarginLevel: 1000}, cfg.DefaultSpreadPoints)
	} else {
		log.Fatal("no production BrokerGateway wired in; run with -dry-run or supply one in code")
		return
	}

	orch := orchestrator.New(cfg, gateway, broker.NeutralMarketAnalyzer{}, telem, hub)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttpHandlerFor(telem))
	mux.HandleFunc("/ws", wsBroadcaster.ServeHTTP)
	server := &http.Server{Addr: *listenAddr, Handler: mux}

	go func() {
		log.Info("serving metrics and websocket feed", zap.String("addr", *listenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orch.Start(ctx, *tickInterval)
	log.Info("engine started", zap.Duration("tickInterval", *tickInterval))

	<-ctx.Done()
	log.Info("shutting down")
	orch.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}
}

func promhttpHandlerFor(telem *telemetry.Handle) http.Handler {
	return promhttp.HandlerFor(telem.Registry, promhttp.HandlerOpts{})
}
