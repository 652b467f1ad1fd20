package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codemod/pkg/mcp"
	"github.com/Sumatoshi-tech/codemod/pkg/observability"
)

// MCPCommand holds the flags of the mcp command.
type MCPCommand struct {
	global *GlobalOptions

	debug       bool
	metricsAddr string
}

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(global *GlobalOptions) *cobra.Command {
	mc := &MCPCommand{global: global}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes structural rewriting as tools that AI agents can
discover and invoke:
  - codemod_rewrite: Apply inline YAML rules to inline code, returning the result and a diff
  - codemod_scan: List rule matches in inline code
  - codemod_check_rules: Compile a rule file and report its rules and errors`,
		RunE: mc.run,
	}

	cmd.Flags().BoolVar(&mc.debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&mc.metricsAddr, "metrics-addr", "",
		"Serve /metrics, /healthz and /readyz on this address (e.g. :9464)")

	return cmd
}

func (mc *MCPCommand) run(cmd *cobra.Command, _ []string) error {
	s, err := mc.global.open(cmd, observability.ModeMCP, func(cfg *observability.Config) {
		cfg.LogJSON = true
		cfg.Prometheus = mc.metricsAddr != ""

		if mc.debug {
			cfg.LogLevel = slog.LevelDebug
			cfg.DebugTrace = true
		}
	})
	if err != nil {
		return err
	}
	defer s.close()

	red, err := observability.NewREDMetrics(s.providers.Meter)
	if err != nil {
		return err
	}

	if mc.metricsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(mc.metricsAddr, s.providers.Tracer, s.providers.MetricsHandler)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diag.Close(context.Background())
			if closeErr != nil {
				s.logger.Warn("diagnostics shutdown failed", "error", closeErr)
			}
		}()

		s.logger.Info("diagnostics listening", "addr", diag.Addr())
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Logger:         s.logger,
		Metrics:        red,
		RewriteMetrics: s.metrics,
		Tracer:         s.providers.Tracer,
		Cache:          s.cache,
	})

	return srv.Run(cmd.Context())
}
