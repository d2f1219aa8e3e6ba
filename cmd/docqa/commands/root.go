// Package commands implements the docqa command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calque-ai/docqa/pkg/app"
	"github.com/calque-ai/docqa/pkg/config"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	provider   string
	store      string
}

// NewRootCmd creates the docqa root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "docqa",
		Short: "Document ingestion and grounded question answering",
		Long: `docqa splits documents into chunks, embeds them into a vector store and
answers questions using only the retrieved context.

Sources can be raw text, PDF files, plain text files or web pages. Settings
come from an optional YAML file, a .env file and the environment.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "Override the AI provider (gemini, openai, ollama, mock)")
	cmd.PersistentFlags().StringVar(&opts.store, "vector-store", "", "Override the vector store (qdrant, pgvector, weaviate, memory)")

	cmd.AddCommand(
		NewServeCmd(opts),
		NewMCPCmd(opts),
		NewIngestCmd(opts),
		NewAskCmd(opts),
		NewCollectionsCmd(opts),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// load reads the configuration and applies flag overrides.
func (o *globalOptions) load() (config.Config, error) {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	if o.provider != "" {
		cfg.AI.Provider = o.provider
	}
	if o.store != "" {
		cfg.Store.Backend = o.store
	}
	return cfg, cfg.Validate()
}

// open loads the configuration and assembles the service. Logs go to logs.
func (o *globalOptions) open(ctx context.Context, logs io.Writer) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a, err := app.New(ctx, cfg, app.WithLogOutput(logs))
	if err != nil {
		return nil, fmt.Errorf("starting service: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App) {
	_ = a.Close(context.Background())
}
