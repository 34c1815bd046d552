// Package main is the entry point for keymux.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "keymux.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "keymux",
	Short: "API key multiplexing proxy for OpenAI-compatible backends",
	Long: `keymux is a reverse proxy that multiplexes client requests across a pool
of upstream API keys. Rate-limited keys cool down and rotate out, revoked
keys are disabled, and clients see a single stable endpoint with one shared
gateway credential.`,
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" if present, else environment variables)")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
