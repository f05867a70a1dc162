// Package main implements the budget CLI for one-off runs of the extraction
// and pricing pipeline.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
)

var (
	// logLevel is the slog level for diagnostics on stderr
	logLevel string
	version  = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "budget",
	Short: "Extract and price construction measurement documents",
	Long: `budget turns a bill-of-quantities document (PDF, text or image) into a
priced budget using a generative model and a price catalog.

Configuration comes from the environment (OPENAI_API_KEY, LLM_PROVIDER,
CATALOG_PATH, PRICING_CONFIG, ...). Flags override it per run.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(remoteCmd)
}

// newLogger writes JSON logs to stderr so stdout stays machine readable.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig() (*common.Config, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
