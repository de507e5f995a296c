package main

import (
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/gyeh/clinscore/internal/config"
	"github.com/gyeh/clinscore/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assessment tools over MCP (stdio or streamable HTTP)",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cfg.Server.Transport, "transport", cfg.Server.Transport, "Transport: stdio or http")
	f.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "HTTP listen host (or set MCP_HOST)")
	f.IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP listen port (or set MCP_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ApplyEnv ran after flag parsing; explicit flags still win.
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("transport") {
		cfg.Server.Transport, _ = flags.GetString("transport")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a := setup(ctx)
	defer a.Close()

	m := mcpserver.New(a.svc, a.log, version)
	a.log.Info().
		Str("transport", cfg.Server.Transport).
		Str("driver", cfg.Driver).
		Str("version", version).
		Msg("starting tool server")

	if cfg.Server.Transport == config.TransportHTTP {
		h := mcpserver.NewHTTPHandler(m, a.svc, cfg.Server.CORSOrigins, a.log)
		return mcpserver.ListenAndServe(ctx, cfg.Server.Addr(), h, a.log.With().Str("port", strconv.Itoa(cfg.Server.Port)).Logger())
	}
	return server.ServeStdio(m)
}
