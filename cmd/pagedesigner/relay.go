package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdsdk/pagedesigner/internal/observability"
	"github.com/pdsdk/pagedesigner/internal/transport/ws"
)

const relayShutdownTimeout = 5 * time.Second

func newRelayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the WebSocket relay designer peers connect to",
		RunE:  runRelay,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides relay.addr)")
	cmd.Flags().String("path", "", "HTTP path of the relay endpoint (overrides relay.path)")
	cmd.Flags().StringSlice("origin", nil, "Allowed cross-origin host patterns")
	return cmd
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Relay.Addr = v
	}
	if v, _ := cmd.Flags().GetString("path"); v != "" {
		cfg.Relay.Path = v
	}
	if v, _ := cmd.Flags().GetStringSlice("origin"); len(v) > 0 {
		cfg.Relay.OriginPatterns = v
	}

	counter := observability.NewEventCounter()
	relay := ws.NewRelay(
		ws.WithLogger(log.Default()),
		ws.WithOriginPatterns(cfg.Relay.OriginPatterns...),
		ws.WithFrameObserver(counter.Observe),
	)
	mux := http.NewServeMux()
	mux.Handle(cfg.Relay.Path, relay)
	mux.Handle("/metrics", observability.NewPrometheusExporter(counter).WithRelay(relay))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	listener, err := net.Listen("tcp", cfg.Relay.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Relay.Addr, err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	log.Printf("Relay listening on ws://%s%s (PID: %d)", listener.Addr(), cfg.Relay.Path, os.Getpid())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %s, shutting down...", sig)
	case err := <-errChan:
		relay.Close()
		return fmt.Errorf("relay server: %w", err)
	}

	relay.Close()
	ctx, cancel := context.WithTimeout(context.Background(), relayShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Relay stopped")
	return nil
}
