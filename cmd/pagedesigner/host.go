package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/pdsdk/pagedesigner/internal/config"
	"github.com/pdsdk/pagedesigner/internal/design"
	"github.com/pdsdk/pagedesigner/internal/pagestore"
	"github.com/pdsdk/pagedesigner/internal/studio"
	"github.com/pdsdk/pagedesigner/internal/transport"
	"github.com/pdsdk/pagedesigner/internal/transport/redisbus"
	"github.com/pdsdk/pagedesigner/internal/transport/ws"
)

const dialTimeout = 10 * time.Second

func newHostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Serve a stored page to a designer client over the relay or Redis",
		RunE:  runHost,
	}
	cmd.Flags().String("id", "", "Host id (random when empty)")
	cmd.Flags().String("relay-url", "", "Relay URL (overrides host.relay_url)")
	cmd.Flags().String("redis-url", "", "Redis URL; when set the host uses Redis pub/sub instead of the relay")
	cmd.Flags().String("session", "", "Session (relay room or Redis channel suffix)")
	cmd.Flags().String("page", "", "Page id to serve")
	cmd.Flags().String("store", "", "Page store path")
	cmd.Flags().Bool("insecure", false, "Skip TLS certificate verification for wss:// relays")
	return cmd
}

func applyHostFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := map[string]*string{
		"id":        &cfg.Host.ID,
		"relay-url": &cfg.Host.RelayURL,
		"redis-url": &cfg.Host.RedisURL,
		"session":   &cfg.Host.Session,
		"page":      &cfg.Host.PageID,
		"store":     &cfg.Store.Path,
	}
	for name, target := range flags {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			*target = v
		}
	}
	if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
		cfg.Host.InsecureTLS = true
	}
}

// hostTransport is a transport the host command owns and closes.
type hostTransport interface {
	transport.Transport
	Close() error
}

// redisTransport closes the Redis client along with the subscription.
type redisTransport struct {
	*redisbus.Bus
	client *redis.Client
}

func (t *redisTransport) Close() error {
	err := t.Bus.Close()
	if cerr := t.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func dialHostTransport(ctx context.Context, cfg config.Config) (hostTransport, <-chan struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if cfg.Host.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Host.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		bus, err := redisbus.New(ctx, client, redisbus.Options{Session: cfg.Host.Session, Logger: log.Default()})
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Printf("Connected to Redis channel %s", bus.Channel())
		return &redisTransport{Bus: bus, client: client}, nil, nil
	}

	conn, err := ws.Dial(ctx, cfg.Host.RelayURL, ws.DialOptions{
		Session:            cfg.Host.Session,
		Logger:             log.Default(),
		InsecureSkipVerify: cfg.Host.InsecureTLS,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Connected to relay %s (session %s)", cfg.Host.RelayURL, cfg.Host.Session)
	return conn, conn.Done(), nil
}

func runHost(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyHostFlags(cmd, &cfg)

	store, err := pagestore.Open(pagestore.Options{Path: cfg.Store.Path})
	if err != nil {
		return fmt.Errorf("failed to open page store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tr, done, err := dialHostTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer tr.Close()

	host, err := design.NewHost(design.HostOptions{ID: cfg.Host.ID, Transport: tr, Logger: log.Default()})
	if err != nil {
		return err
	}
	svc, err := studio.New(studio.Options{
		Host:   host,
		Store:  store,
		PageID: cfg.Host.PageID,
		Logger: log.Default(),
	})
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()
	log.Printf("Host %s serving page %s from %s", host.ID(), cfg.Host.PageID, store.Path())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %s, shutting down...", sig)
	case <-done:
		return fmt.Errorf("relay connection closed")
	case <-ctx.Done():
	}
	log.Println("Host stopped")
	return nil
}
