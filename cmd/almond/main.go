// Package main is the entry point for the almond CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	// Compiled-in modules.
	_ "github.com/flemzord/almond/internal/gateway"
	_ "github.com/flemzord/almond/modules/channel/telegram"
	_ "github.com/flemzord/almond/modules/memory/elasticsearch"
	_ "github.com/flemzord/almond/modules/memory/mongo"
	_ "github.com/flemzord/almond/modules/memory/sqlite"
	_ "github.com/flemzord/almond/modules/provider/anthropic"
	_ "github.com/flemzord/almond/modules/provider/openai"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that reads the configuration.
type globalFlags struct {
	configPath string
	dataDir    string
	verbose    bool
}

func (g *globalFlags) logLevel() slog.Level {
	if g.verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "almond",
		Short:         "A group-chat assistant with long-term conversational memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Persistent data directory (default $XDG_DATA_HOME/almond)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		versionCmd(),
		startCmd(&flags),
		configCmd(&flags),
		memoryCmd(&flags),
	)
	return root
}
