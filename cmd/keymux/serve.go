package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/keymux/keymux/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the keymux proxy server",
	Long: `Start the proxy server that accepts client requests on the gateway
credential and forwards them upstream across the configured key pool.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	injector := di.NewContainer(resolveConfigPath())

	// Resolving the logger also loads and validates config; any config
	// error is fatal here, before the listener opens.
	logSvc, err := do.Invoke[*di.LoggerService](injector)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}

	log.Logger = *logSvc.Logger
	zerolog.DefaultContextLogger = logSvc.Logger

	serverSvc, err := do.Invoke[*di.ServerService](injector)
	if err != nil {
		log.Error().Err(err).Msg("failed to build server")
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM: the container shutdown drains
	// the listener, which unblocks Start below.
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down...")
		if err := injector.Shutdown(); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
		close(done)
	}()

	if err := serverSvc.Server.Start(); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}

// resolveConfigPath picks the config file: the --config flag, then
// ./keymux.yaml if present, then empty for environment-only configuration.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}
