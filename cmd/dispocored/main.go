// Command dispocored wires the whole stack together: config → simplugin →
// the three domain graphs → orchestrator → telemetry, with an optional
// persisted debug dump on shutdown. Grounded on
// 99souls-ariadne/cli/cmd/ariadne/main.go's shape: flag-parsed paths and
// addresses, a context cancelled on the first SIGINT (a forced exit on the
// second), and the metrics and websocket endpoints served only when an
// address is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/stskit-go/dispocore/bus"
	"github.com/stskit-go/dispocore/config"
	"github.com/stskit-go/dispocore/dispo"
	"github.com/stskit-go/dispocore/ereignisgraph"
	"github.com/stskit-go/dispocore/ingest"
	"github.com/stskit-go/dispocore/orchestrator"
	"github.com/stskit-go/dispocore/persist"
	"github.com/stskit-go/dispocore/simplugin"
	"github.com/stskit-go/dispocore/telemetry"
	"github.com/stskit-go/dispocore/wsview"
	"github.com/stskit-go/dispocore/zielgraph"
	"github.com/stskit-go/dispocore/zuggraph"
)

func main() {
	var (
		configPath  string
		dumpPath    string
		metricsAddr string
		wsAddr      string
		serviceName string
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML tunables file (defaults used if empty)")
	flag.StringVar(&dumpPath, "dump", "", "Path to write a JSON node-link dump of the target graph on shutdown (disabled if empty)")
	flag.StringVar(&metricsAddr, "metrics", "", "Expose Prometheus metrics on address (e.g. :9090); disabled if empty")
	flag.StringVar(&wsAddr, "ws", "", "Serve the /ws ticker-view feed on address (e.g. :8090); disabled if empty")
	flag.StringVar(&serviceName, "service-name", "dispocored", "Service name tagged on telemetry spans and metrics")
	flag.Parse()

	tunables := config.Defaults()
	if configPath != "" {
		t, err := config.LoadYAML(configPath)
		if err != nil {
			log.Fatalf("dispocored: load config: %v", err)
		}
		tunables = t
	}

	logger := telemetry.NewLogger(slog.Default())
	metrics := telemetry.NewMetrics(serviceName)
	tracer := telemetry.NewTracer(serviceName)

	zug := zuggraph.New()
	zg := zielgraph.New()
	eg := ereignisgraph.New()

	// A real Transport speaks the simulator's own wire protocol, which is
	// not specified here (§6: "the core treats the transport as opaque");
	// FakeTransport stands in so this binary runs standalone.
	transport := simplugin.NewFakeTransport()
	client := simplugin.New(transport, simplugin.WithLog(logger.Func(context.Background())))

	in := ingest.New(zg, eg, zug, logger.Func(context.Background()))
	observerBus := bus.New()

	// dispatcher exposes the C8 intent API over the same graphs the
	// orchestrator refreshes; nothing in this binary drives it yet, but
	// it shares the bus so a future control surface (CLI, HTTP, gRPC)
	// only needs to be handed this value to start steering a live plan.
	dispatcher := dispo.New(zg, eg, logger.Func(context.Background()))
	dispatcher.Bus = observerBus

	hub := wsview.NewHub(logger.Func(context.Background()))
	hub.Subscribe(observerBus, "anlage_changed", dispo.PlanChanged)

	previousTrains := map[zuggraph.TrainID]bool{}
	refresh := func(ctx context.Context) error {
		roster, err := client.PullRoster(ctx)
		if err != nil {
			return fmt.Errorf("pull roster: %w", err)
		}
		seen := make(map[zuggraph.TrainID]bool, len(roster.Trains))
		for _, t := range roster.Trains {
			seen[t.ID] = true
			if err := zug.Upsert(t); err != nil {
				return fmt.Errorf("upsert train %d: %w", t.ID, err)
			}
		}
		// §4.1: a train absent from the roster for one tick after previously
		// being visible is terminated — roster row and target nodes alike.
		for id := range previousTrains {
			if seen[id] {
				continue
			}
			prior, err := zug.Train(id)
			if err != nil || !prior.Visible {
				continue
			}
			if err := zug.Terminate(id); err != nil {
				return fmt.Errorf("terminate train %d: %w", id, err)
			}
			zg.MarkTrainDeparted(id)
		}
		previousTrains = seen
		if err := zg.RebuildFromRoster(roster.Stops, nil); err != nil {
			return fmt.Errorf("rebuild target graph: %w", err)
		}
		if _, err := zg.Recompute(nil); err != nil {
			return fmt.Errorf("recompute target order: %w", err)
		}
		if err := eg.Rebuild(zg, tunables.BuildConfig(), nil); err != nil {
			return fmt.Errorf("rebuild event graph: %w", err)
		}
		observerBus.Trigger("anlage_changed")
		return nil
	}

	orch := orchestrator.New(zg, eg, in, orchestrator.Config{RefreshInterval: tunables.RefreshInterval()},
		orchestrator.WithBus(observerBus),
		orchestrator.WithLog(logger.Func(context.Background())),
		orchestrator.WithTelemetry(tracer, metrics),
		orchestrator.WithRefresher(refresh),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("dispocored: signal received; shutting down")
		cancel()
		<-sigCh
		log.Println("dispocored: second signal received; forcing exit")
		os.Exit(1)
	}()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		go func() {
			log.Printf("dispocored: metrics listening on %s", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("dispocored: metrics server: %v", err)
			}
		}()
	}

	if wsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := &http.Server{Addr: wsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		go func() {
			log.Printf("dispocored: ticker feed listening on %s", wsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("dispocored: ws server: %v", err)
			}
		}()
	}

	go orch.Run(ctx)
	<-ctx.Done()
	orch.Stop()

	if dumpPath != "" {
		if err := persist.DumpTargetGraph(zg, dumpPath); err != nil {
			log.Printf("dispocored: dump target graph: %v", err)
		}
	}
}
