// Command aptmcp serves apt package management over MCP and runs the same
// operations from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deixis/aptmcp"
	"github.com/deixis/aptmcp/internal/apt"
	"github.com/deixis/aptmcp/internal/config"
	"github.com/deixis/aptmcp/internal/logging"
	aptmcpserver "github.com/deixis/aptmcp/internal/mcp"
	"github.com/deixis/aptmcp/internal/metrics"
	"github.com/deixis/aptmcp/internal/runner"
	"github.com/deixis/aptmcp/internal/tracing"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// exitError carries a process exit code without printing an error.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := newRootCommand(a).ExecuteContext(ctx)
	a.close()
	stop()

	var ee exitError
	switch {
	case errors.As(err, &ee):
		os.Exit(ee.code)
	case err != nil:
		fmt.Fprintf(os.Stderr, "aptmcp: %v\n", err)
		os.Exit(2)
	}
}

// app holds process-wide state built once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	log      zerolog.Logger
	shutdown func(context.Context) error
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "aptmcp",
		Short: "apt package management over MCP",
		Long: `aptmcp runs apt operations (install, remove, upgrade, status) and returns
one structured result per operation. "aptmcp mcp" serves them as MCP tools;
every operation is also available as a subcommand.`,
		Version:       aptmcp.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (default $"+config.EnvPath+", ./.aptmcp.yaml, /etc/aptmcp/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(newMCPCommand(a))
	root.AddCommand(newVersionCommand())
	for _, op := range apt.Operations() {
		root.AddCommand(newOperationCommand(a, op))
	}

	return root
}

// init loads the configuration and starts logging and tracing.
func (a *app) init(ctx context.Context) error {
	loaded, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = loaded.Config

	level := a.cfg.LogLevel()
	if a.logLevel != "" {
		level = a.logLevel
	}
	// stdout belongs to the stdio transport and to command output.
	a.log = logging.New(level, a.cfg.LogFormat(), os.Stderr).With().Str("service", "aptmcp").Logger()
	if loaded.Path != "" {
		a.log.Debug().Str("path", loaded.Path).Msg("Loaded config")
	}

	a.shutdown, err = tracing.Setup(ctx, tracing.Config{
		Enabled:      a.cfg.Tracing.Enabled,
		Exporter:     a.cfg.Tracing.Exporter,
		Endpoint:     a.cfg.Tracing.Endpoint,
		SamplingRate: a.cfg.Tracing.SamplingRate,
		ServiceName:  "aptmcp",
		Version:      aptmcp.Version,
		Writer:       os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	return nil
}

// close flushes pending spans.
func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Tracing shutdown failed")
	}
}

// engine builds the operation engine over a real process runner.
func (a *app) engine() *apt.Engine {
	r := &runner.Runner{
		Timeout:   a.cfg.Timeout(),
		MaxOutput: a.cfg.MaxOutputBytes(),
		Env:       a.cfg.Environment(),
	}
	return apt.NewEngine(a.cfg, r)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), aptmcp.Version)
		},
	}
}

// --- mcp ---

func newMCPCommand(a *app) *cobra.Command {
	var (
		instructions bool
		httpAddr     string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the MCP server on stdio, or as a streamable HTTP server with --http.
In HTTP mode Prometheus metrics are served on the configured metrics path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), aptmcpserver.Instructions)
				return nil
			}
			return a.serve(cmd.Context(), httpAddr)
		},
	}

	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")

	return cmd
}

func (a *app) serve(ctx context.Context, httpAddr string) error {
	server := aptmcpserver.NewServer(a.engine(), logging.Zerolog(a.log))

	if httpAddr != "" {
		return a.serveHTTP(ctx, server, httpAddr)
	}
	a.log.Info().Msg("Serving MCP on stdio")
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (a *app) serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))
	if !a.cfg.Metrics.Disabled {
		mux.Handle(a.cfg.MetricsPath(), metrics.Handler())
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	a.log.Info().Str("addr", addr).Msg("Listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
