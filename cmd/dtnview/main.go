package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaonanln/dtnview/cmd/dtnview/dashconfig"
	"github.com/xiaonanln/dtnview/config"
	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/dashserver"
	"github.com/xiaonanln/dtnview/history"
	"github.com/xiaonanln/dtnview/telemclient"
	"github.com/xiaonanln/dtnview/util/logger"
)

const (
	defaultHistoryWorkers = 2
	pruneInterval         = time.Minute
)

// openHistory opens the configured history store. It returns nil when
// history is disabled.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.GetHistoryBackend() {
	case config.BackendMemory:
		return history.NewMemoryStore(cfg.History.Retention), nil
	case config.BackendPostgres:
		store, err := history.OpenPostgresStore(ctx, cfg.History.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// pruneHistory drops points older than retention every interval until ctx
// is done. The memory store prunes on write and does not need it.
func pruneHistory(ctx context.Context, store history.Store, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.Prune(ctx, now.Add(-retention).UnixMilli())
			if err != nil {
				log.Printf("Failed to prune history: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Pruned %d history points", n)
			}
		}
	}
}

func main() {
	cfg := dashconfig.Get()
	logger.SetGlobalLevel(cfg.GetLogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openHistory(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	opts := dashboard.DefaultOptions()
	opts.Slots = cfg.GetSlots()
	opts.Display = cfg.GetDisplay()

	var recorder *history.AsyncRecorder
	if store != nil {
		workers := cfg.History.Workers
		if workers <= 0 {
			workers = defaultHistoryWorkers
		}
		filter, err := cfg.NewSeriesFilter()
		if err != nil {
			log.Fatalf("Invalid history series rules: %v", err)
		}
		// Pending writes are flushed after the feed stops, so the recorder
		// outlives ctx.
		recorder = history.NewAsyncRecorder(context.Background(), store, workers)
		if filter != nil {
			recorder.SetFilter(filter)
		}
		opts.Recorder = recorder
		if cfg.GetHistoryBackend() == config.BackendPostgres && cfg.History.Retention > 0 {
			go pruneHistory(ctx, store, cfg.History.Retention, pruneInterval)
		}
		log.Printf("Recording rate history to %s", store.Backend())
	}

	dash := dashboard.New(opts)
	srv := dashserver.New(dash, store, dashserver.Config{
		HTTPAddr:  cfg.Server.HTTPAddr,
		GRPCAddr:  cfg.Server.GRPCAddr,
		StaticDir: cfg.Server.StaticDir,
	})

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Track server completion
	serversDone := make(chan struct{}, 2)
	servers := 0

	if err := srv.ServeHTTP(serversDone); err != nil {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
	servers++
	if cfg.Server.GRPCAddr != "" {
		if err := srv.ServeGRPC(serversDone); err != nil {
			log.Fatalf("Failed to start gRPC server: %v", err)
		}
		servers++
	}

	feedDone := make(chan struct{})
	if cfg.Telemetry.URL != "" {
		client, err := telemclient.New(telemclient.Config{
			URL:            cfg.Telemetry.URL,
			InitialBackoff: cfg.Telemetry.InitialBackoff,
			MaxBackoff:     cfg.Telemetry.MaxBackoff,
			Multiplier:     cfg.Telemetry.Multiplier,
		}, dash)
		if err != nil {
			log.Fatalf("Failed to create telemetry client: %v", err)
		}
		go func() {
			defer close(feedDone)
			_ = client.Run(ctx)
			stats := client.Stats()
			log.Printf("Telemetry feed stopped after %d connections, %d messages, %d rejected",
				stats.Connects, stats.Messages, stats.Rejected)
		}()
	} else {
		close(feedDone)
		log.Println("No telemetry URL configured, waiting for pushed telemetry")
	}

	// Wait for shutdown signal
	<-sigChan
	log.Println("Received shutdown signal")
	cancel()
	srv.Shutdown()
	<-feedDone

	// Wait for the servers to stop with timeout
	timeout := time.After(5 * time.Second)
	for stopped := 0; stopped < servers; {
		select {
		case <-serversDone:
			stopped++
		case <-timeout:
			log.Println("Timeout waiting for servers to shutdown")
			stopped = servers
		}
	}

	if recorder != nil {
		recorder.Close()
		if n := recorder.Dropped(); n > 0 {
			log.Printf("History writer dropped %d batches", n)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close history store: %v", err)
		}
	}

	log.Println("Dashboard stopped")
}
