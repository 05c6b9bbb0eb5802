package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/openvibe/pairrelay/internal/bus"
	"github.com/openvibe/pairrelay/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pairing relay server",
		Long: `Start the relay. Devices connect on /register?id=<identifier> and
mobiles on /pair?id=<identifier>; every text frame is forwarded to all
peers of the opposite role attached under the same identifier.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default: SERVER_PORT env or :3000)")
	cmd.Flags().Int("backlog", bus.DefaultBacklog, "per-subscriber message buffer size")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logger := newLogger(logLevel)

	addrFlag, _ := cmd.Flags().GetString("addr")
	addr := resolveListenAddr(addrFlag, os.Getenv("SERVER_PORT"))

	backlog, _ := cmd.Flags().GetInt("backlog")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := resolveMetrics(ctx, cmd, logger)
	if err != nil {
		return err
	}

	return server.ListenAndServe(ctx, server.Config{
		Addr:    addr,
		Backlog: backlog,
		Logger:  logger,
		Metrics: m,
	})
}

// resolveListenAddr normalizes the configured listen address.
//
// Accepted input formats:
//   - Bare port: "3000" → ":3000" (the SERVER_PORT convention)
//   - Port with colon: ":3000" → used as-is
//   - host:port: "0.0.0.0:3000" → used as-is
//
// The flag wins over the env value. When both are empty the server
// default applies (empty string is returned).
func resolveListenAddr(flag, env string) string {
	addr := strings.TrimSpace(flag)
	if addr == "" {
		addr = strings.TrimSpace(env)
	}
	if addr == "" {
		return ""
	}
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
