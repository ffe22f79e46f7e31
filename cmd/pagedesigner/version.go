package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdsdk/pagedesigner/internal/transport/ws"
	pdversion "github.com/pdsdk/pagedesigner/internal/version"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the local version and the version of the configured relay",
		RunE:  runVersion,
	}
	cmd.Flags().String("relay-url", "", "Relay to query (overrides host.relay_url)")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	localVersion := pdversion.String()

	relayURL, _ := cmd.Flags().GetString("relay-url")
	if relayURL == "" {
		if cfg, err := loadConfig(); err == nil {
			relayURL = cfg.Host.RelayURL
		}
	}

	var (
		relayVersion   string
		relayReachable bool
		relayErr       error
	)
	if relayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		conn, err := ws.Dial(ctx, relayURL, ws.DialOptions{Session: "version-check"})
		if err == nil {
			relayReachable = true
			relayVersion = conn.RelayVersion()
			conn.Close()
		} else {
			relayErr = err
		}
	} else {
		relayErr = fmt.Errorf("no relay configured")
	}

	if out.jsonMode {
		data := map[string]any{"client": localVersion}
		if relayReachable {
			if relayVersion != "" {
				data["relay"] = relayVersion
			} else {
				data["relay"] = "unknown"
			}
			if w := pdversion.CheckRelayVersion(relayVersion); w != "" {
				data["mismatch"] = true
				data["warning"] = w
			}
		} else {
			data["relay"] = nil
			data["relay_error"] = relayErr.Error()
		}
		return out.Print(data)
	}

	fmt.Printf("Client: %s\n", pdversion.FormatVersion(localVersion))
	if relayReachable {
		if relayVersion != "" {
			fmt.Printf("Relay: %s\n", pdversion.FormatVersion(relayVersion))
		} else {
			fmt.Println("Relay: running (version unknown)")
		}
		if w := pdversion.CheckRelayVersion(relayVersion); w != "" {
			fmt.Println(w)
		}
	} else {
		fmt.Printf("Relay: unavailable (%v)\n", relayErr)
	}
	return nil
}
