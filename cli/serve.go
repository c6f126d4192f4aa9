// ABOUTME: Commands that serve the console over other transports
// ABOUTME: serve runs the dev REST API, seed fills the local database, mcp speaks MCP on stdio
package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/harperreed/devicedrop/handlers"
	"github.com/harperreed/devicedrop/server"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr string
		seed bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local database as the admin REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, backend, database, err := g.openBackend(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if seed {
				n, err := backend.Seed(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Info("seeded demo data", "records", n)
				}
			}

			logger.Info("serving local database", "path", cfg.DBPath)
			return server.NewServer(backend, logger).Start(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "Seed demo data into an empty database first")
	return cmd
}

func newSeedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo devices, requests, users and team members into an empty local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, backend, database, err := g.openBackend(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			n, err := backend.Seed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if n == 0 {
				_, _ = fmt.Fprintf(out, "Database already has records, nothing seeded (%s)\n", cfg.DBPath)
				return nil
			}
			_, _ = fmt.Fprintf(out, "✓ Seeded %d records into %s\n", n, cfg.DBPath)
			return nil
		},
	}
}

func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol; logs stay on stderr.
			a, err := g.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.logger.Info("starting MCP server", "backend", a.cfg.Backend)
			srv := handlers.NewServer(version, a.facade, a.newLoader(a.presets()))
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
