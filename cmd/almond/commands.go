package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flemzord/almond/internal/config"
	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/pkg/app"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "almond %s (commit: %s, built: %s)\n", version, commit, date)
	mods := core.GetModules()
	if len(mods) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	for _, mod := range mods {
		fmt.Fprintf(w, "  %s\n", mod.ID)
	}
}

func startCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start almond with all configured modules",
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(app.RunParams{
				ConfigPath: flags.configPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				DataDir:    flags.dataDir,
				LogLevel:   flags.logLevel(),
			})
		},
	}
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if len(args) == 1 {
				path = args[0]
			}
			path, cfg, err := app.LoadConfig(path)
			if err != nil {
				return err
			}
			printConfigSummary(cmd.OutOrStdout(), path, cfg)
			return nil
		},
	})
	return cmd
}

func printConfigSummary(w io.Writer, path string, cfg *config.Config) {
	ids := config.Resolve(cfg)
	fmt.Fprintf(w, "Configuration OK: %s (%d modules)\n", path, len(ids))
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
}

func memoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain stored memories",
	}
	cmd.AddCommand(memoryListCmd(flags), memoryForgetCmd(flags))
	return cmd
}

func memoryListCmd(flags *globalFlags) *cobra.Command {
	var (
		conversation string
		tier         string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored fragments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tier != "" && memory.Tier(tier) != memory.TierShort && memory.Tier(tier) != memory.TierLong {
				return fmt.Errorf("--tier must be %q or %q", memory.TierShort, memory.TierLong)
			}
			h, err := app.OpenMemory(app.RunParams{
				ConfigPath: flags.configPath,
				DataDir:    flags.dataDir,
				LogLevel:   flags.logLevel(),
			})
			if err != nil {
				return err
			}
			defer h.Close()

			frags, err := listFragments(cmd.Context(), h.Manager.Router(), conversation, memory.Tier(tier))
			if err != nil {
				return err
			}
			printFragments(cmd.OutOrStdout(), frags)
			return nil
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation ID (all conversations when empty)")
	cmd.Flags().StringVar(&tier, "tier", "", "Restrict to the short or long tier")
	return cmd
}

func listFragments(ctx context.Context, r *memory.Router, conversation string, tier memory.Tier) ([]memory.Fragment, error) {
	var out []memory.Fragment
	if tier == "" || tier == memory.TierShort {
		fs, err := r.Short().List(ctx, conversation)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	if tier == "" || tier == memory.TierLong {
		fs, err := r.Long().List(ctx, conversation)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

func printFragments(w io.Writer, frags []memory.Fragment) {
	if len(frags) == 0 {
		fmt.Fprintln(w, "No fragments.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONVERSATION\tTIER\tROLE\tCREATED\tCONTENT")
	for _, f := range frags {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			f.ConversationID, f.Tier, f.Role,
			f.CreatedAt.Format("2006-01-02 15:04"),
			truncate(f.Content, 60),
		)
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func memoryForgetCmd(flags *globalFlags) *cobra.Command {
	var conversation string
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Delete every stored fragment of a conversation",
		Long: `Delete every stored fragment of a conversation from both tiers.

Usage-based forgetting runs inside the assistant process on the
memory.forget.schedule cron expression and through the /forget admin chat
command, since usage statistics live in that process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if conversation == "" {
				return fmt.Errorf("--conversation is required")
			}
			h, err := app.OpenMemory(app.RunParams{
				ConfigPath: flags.configPath,
				DataDir:    flags.dataDir,
				LogLevel:   flags.logLevel(),
			})
			if err != nil {
				return err
			}
			defer h.Close()

			n, err := h.Manager.Purge(cmd.Context(), conversation)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d fragments from %s\n", n, conversation)
			return nil
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation ID to forget")
	return cmd
}
