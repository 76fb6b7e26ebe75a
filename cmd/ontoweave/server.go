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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoweave/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ontoweave HTTP server",
	Long: `Start the ontoweave HTTP server to provide REST access to the engine.

The server provides endpoints for:
- Reading the ontology, its clusters and the knowledge graph
- Adding concept batches and triplet batches
- Applying merge, bridge and prune operations
- Health checks and Prometheus metrics

Accepted changes are saved to the configured storage after every request.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")
	serverCmd.Flags().Bool("no-persist", false, "keep changes in memory only")
}

func runServer(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	noPersist, _ := cmd.Flags().GetBool("no-persist")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var metrics prometheus.Registerer
	if cfg.Telemetry.Metrics {
		metrics = reg
	}
	s, err := openEngine(cmd.Context(), metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer s.Close()

	srv := server.New(cfg, s.engine,
		server.WithLogger(log),
		server.WithGatherer(reg),
		server.WithPersistence(!noPersist))
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("server stopped gracefully")
		return nil
	}
}
