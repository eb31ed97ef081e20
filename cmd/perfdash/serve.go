package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"perfdash/internal/config"
	"perfdash/internal/git"
	"perfdash/internal/metadata"
	"perfdash/internal/metrics"
	"perfdash/internal/plot"
	"perfdash/internal/results"
	"perfdash/internal/route"
	"perfdash/internal/telemetry"
	"perfdash/internal/web"
)

const (
	shutdownTimeout = 10 * time.Second
	// Result files never change once written.
	dataCacheTTL = 30 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := buildServer(cmd.Context(), cfg, prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Dashboard listening on http://%s\n", cfg.Addr())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case err := <-errCh:
			return err
		case s := <-sig:
			telemetry.LogInfo("Shutting down", "signal", s.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 3000, "Port to listen on")
	serveCmd.Flags().String("engine", "native", "Plot engine (native or script)")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("engine", serveCmd.Flags().Lookup("engine"))

	rootCmd.AddCommand(serveCmd)
}

// newEngine returns the plot engine selected by c.Engine.
func newEngine(c config.Config) (plot.Engine, error) {
	switch c.Engine {
	case "native":
		return plot.NewNativeEngine(dataCacheTTL), nil
	case "script":
		return &plot.ScriptEngine{
			Interpreter: c.Script.Interpreter,
			Script:      c.Script.Path,
			Timeout:     c.Script.Timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", c.Engine)
	}
}

// buildServer wires the dashboard from c. Metrics are registered with reg
// when enabled.
func buildServer(ctx context.Context, c config.Config, reg prometheus.Registerer) (*web.Server, error) {
	engine, err := newEngine(c)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if c.Metrics.Enabled {
		m = metrics.NewMetrics(reg)
	}

	var opts []metadata.Option
	if c.LegacyCommitRoutes {
		client := git.NewClient()
		client.Timeout = c.Git.Timeout
		if !client.RepoExists(ctx, c.Git.Repo) {
			telemetry.LogWarn("Legacy commit routes enabled but git repository not found", "repo", c.Git.Repo)
		}
		opts = append(opts, metadata.WithGit(client, c.Git.Repo, c.Git.CacheTTL))
	}

	layout := results.NewLayout(c.ResultsDir, c.Extension)
	if _, err := os.Stat(layout.Dir); err != nil {
		telemetry.LogWarn("Results directory is not readable", "dir", layout.Dir, "error", err)
	}

	return web.NewServer(web.Options{
		Addr:       c.Addr(),
		Layout:     layout,
		Parser:     route.Parser{Extension: c.Extension, Legacy: c.LegacyCommitRoutes},
		Resolver:   metadata.New(opts...),
		Dispatcher: &plot.Dispatcher{Engine: engine, Metrics: m},
		Benchmarks: c.Benchmarks,
		Metrics:    m,
	})
}
