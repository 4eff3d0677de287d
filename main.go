package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hed-standard/hed-lsp/pkg/config"
)

var (
	configPath string

	cfg    *config.Config
	loader *config.Loader
)

var rootCmd = &cobra.Command{
	Use:   "hedlsp",
	Short: "HED annotation tooling: completion, validation and tag search",
	Long: `hedlsp validates HED annotations in BIDS sidecars and event files,
completes partially typed tags and finds tags for plain-language terms.

Settings come from built-in defaults, an optional YAML file (--config),
HEDLSP__* environment variables and flags, in increasing priority.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, loader, err = config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.String("schema-version", "", "HED schema version when no dataset_description.json declares one")
	flags.String("schema-dir", "", "directory holding HED XML schema files")
	flags.Int("max-problems", 0, "maximum diagnostics reported per document (0 = unlimited)")
	flags.Bool("semantic", true, "enable semantic tag search")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("embedding-provider", "", "embedding provider: none, ollama or genai")
	flags.String("embedding-model", "", "embedding model name")
	flags.String("embedding-store", "", "precomputed embedding file")

	rootCmd.AddCommand(serveCmd, mcpCmd, validateCmd, suggestCmd, searchCmd, indexCmd, configCmd)
}

func setupLogging(c *config.Config) {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
