package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keymux/keymux/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check if the keymux server is running",
	Long: `Check the health of a running keymux server by querying its /healthz
endpoint at the configured listen address.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	healthURL := fmt.Sprintf("http://%s/healthz", cfg.Server.Addr())

	client := &http.Client{Timeout: 5 * time.Second}

	//nolint:noctx // simple health check doesn't need context propagation
	resp, err := client.Get(healthURL)
	if err != nil {
		fmt.Printf("✗ keymux is not running (%s)\n", cfg.Server.Addr())
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("✓ keymux is running (%s)\n", cfg.Server.Addr())
		return nil
	}

	fmt.Printf("✗ keymux returned unexpected status: %d\n", resp.StatusCode)

	return fmt.Errorf("health check failed with status %d", resp.StatusCode)
}
