package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	csp "github.com/SamuelRCrider/csp-risk"
	"github.com/SamuelRCrider/csp-risk/core"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitSuccess = 0
	exitError   = 1
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "csp-risk",
		Short: "Risk and compliance assessment of sensitive data",
		Long: `csp-risk scores datasets and detector findings for privacy risk,
flags HIPAA, PCI DSS and GDPR violations and plans mitigations.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "engine configuration file (default "+csp.DefaultConfigPath+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	rootCmd.AddCommand(assessCmd, geoCmd, transferCmd, classifyCmd, patternsCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

// newLogger writes JSON logs to stderr; stdout carries command output and the MCP protocol
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine creates the engine from --config or the default configuration file
func newEngine(logger *slog.Logger) (*core.Engine, error) {
	if configPath != "" {
		return csp.NewEngineWithConfig(configPath, core.WithLogger(logger))
	}
	return csp.NewEngine(core.WithLogger(logger))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
