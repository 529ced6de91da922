package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"caremind/internal/analyzer"
	"caremind/internal/client"
	"caremind/internal/config"
	"caremind/internal/engine"
	"caremind/internal/logging"
	"caremind/internal/types"
)

var (
	// Global flags
	configPath string
	verbose    bool
	provider   string

	cfg *config.Config
	eng *engine.Engine
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "caremind",
	Short: "caremind - conversation-memory synchronization engine",
	Long: `caremind tracks conversational sessions, ranks prior exchanges for
relevance, and keeps redundant memory views of every session consistent
after each turn.

Run 'caremind chat' to start an interactive session against the configured
reasoning service (use --provider mock for offline use).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if provider != "" {
			cfg.Client.Provider = provider
		}
		if err := logging.Initialize(logging.Options{
			Level:       cfg.Logging.Level,
			Categories:  cfg.Logging.Categories,
			Development: cfg.Logging.Development,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		// version needs no reasoning client; building one would demand an
		// API key just to print a string.
		if cmd.Name() == "version" {
			return nil
		}

		rc, err := buildClient(cmd.Context())
		if err != nil {
			return err
		}
		eng = engine.New(cfg, rc, analyzer.New())
		logging.Boot("caremind %s started (provider=%s)", cfg.Version, cfg.Client.Provider)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func buildClient(ctx context.Context) (types.ReasoningClient, error) {
	switch cfg.Client.Provider {
	case "mock":
		m := client.NewMockClient()
		m.RegisterAgent(types.AgentIdentity{ID: cfg.Client.AgentID, Name: "Care Companion", Role: "mock agent"})
		return m, nil
	case "genai", "":
		return client.NewGenAIClient(ctx, cfg.Client)
	default:
		return nil, fmt.Errorf("unknown client provider %q", cfg.Client.Provider)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "caremind.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "override client provider (genai|mock)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the caremind version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("caremind %s\n", cfg.Version)
	},
}
