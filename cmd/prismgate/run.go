package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"prismgate/pkg/config"
	"prismgate/pkg/server"
	"prismgate/pkg/telemetry/logging"
)

// credentialEnvVar names the environment variable holding the service API
// key pinned onto the relay endpoint.
const credentialEnvVar = "AMP_API_KEY"

var runFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

The server listens on the configured address and forwards requests to the
upstreams in the endpoint table, transcoding streaming and buffered
responses per route.

Examples:
  # Start with the built-in endpoint table
  prismgate run

  # Start with a configuration file
  prismgate run --config /etc/prismgate/config.yaml

  # Override listen address
  prismgate run --listen 0.0.0.0:8080

  # Reload routes when the config file changes
  prismgate run --config config.yaml --watch`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload routes when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if runFlags.watch {
		cfg.Watch = true
	}

	logger := logging.Setup(cfg.Logging)

	credential := os.Getenv(credentialEnvVar)
	if credential == "" {
		logger.Warn("no service credential set, relay requests keep caller authorization",
			"env", credentialEnvVar)
	}

	srv, err := server.New(server.Options{
		Config:     cfg,
		ConfigPath: cfgFile,
		Credential: credential,
		Version:    Version,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
