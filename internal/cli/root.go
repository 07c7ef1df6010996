// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tlchat/internal/logger"
	"github.com/jeranaias/tlchat/internal/ui"
	"github.com/jeranaias/tlchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "tlchat",
		Short: "Chat with a question-answering service from the terminal",
		Long: `tlchat keeps a local history of chat sessions with a remote
question-answering service and reveals each answer progressively.

Run without arguments on a terminal to open the full-screen client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if IsInteractive() {
				return runTUI(cmd.Context(), flags)
			}
			return runChat(cmd, flags)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if !ColorsEnabled() || !renderMarkdownHelp(cmd) {
			defaultHelp(cmd, args)
		}
	})
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error(), Example: cmd.UseLine()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file (default ~/.tlchat/config.toml)")
	pf.StringVar(&flags.APIURL, "api-url", "", "answer service base URL")
	pf.StringVar(&flags.DataDir, "data-dir", "", "directory for sessions and drafts")
	pf.StringVar(&flags.Store, "store", "", "storage backend: file, sqlite or memory")
	pf.BoolVar(&flags.Debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newTUICmd(flags),
		newChatCmd(flags),
		newSessionsCmd(flags),
		newGatewayCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Commands reconfigure once the config is loaded.
	logger.Configure(logger.GetLogLevelFromEnv(false), false)

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		DisplayError(os.Stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// renderMarkdownHelp renders command help through glamour. It reports false
// when rendering failed and nothing was written.
func renderMarkdownHelp(cmd *cobra.Command) bool {
	var b strings.Builder

	if cmd.Long != "" {
		b.WriteString(cmd.Long + "\n\n")
	} else if cmd.Short != "" {
		b.WriteString("# " + cmd.Short + "\n\n")
	}

	b.WriteString("## Usage\n\n```\n" + cmd.UseLine() + "\n```\n\n")

	if cmd.Example != "" {
		b.WriteString("## Examples\n\n```\n" + cmd.Example + "\n```\n\n")
	}

	if cmd.HasAvailableSubCommands() {
		b.WriteString("## Commands\n\n")
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				fmt.Fprintf(&b, "- **%s** - %s\n", sub.Name(), sub.Short)
			}
		}
		b.WriteString("\n")
	}

	if cmd.HasAvailableLocalFlags() {
		b.WriteString("## Flags\n\n```\n" + cmd.LocalFlags().FlagUsages() + "```\n\n")
	}
	if cmd.HasAvailableInheritedFlags() {
		b.WriteString("## Global Flags\n\n```\n" + cmd.InheritedFlags().FlagUsages() + "```\n\n")
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()),
	)
	if err != nil {
		return false
	}
	out, err := renderer.Render(b.String())
	if err != nil {
		return false
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return true
}

// exactArgs is cobra.ExactArgs with a UsageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &UsageError{
				Reason:  fmt.Sprintf("%s expects %d argument(s), got %d", cmd.Name(), n, len(args)),
				Example: cmd.UseLine(),
			}
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return &UsageError{
				Reason:  fmt.Sprintf("%s expects at least %d argument(s), got %d", cmd.Name(), n, len(args)),
				Example: cmd.UseLine(),
			}
		}
		return nil
	}
}

// =============================================================================
// TUI
// =============================================================================

func newTUICmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat client",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}
}

func runTUI(ctx context.Context, flags *GlobalFlags) error {
	cfg, err := flags.LoadConfig()
	if err != nil {
		return err
	}
	app, err := OpenApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.LogToFile(); err != nil {
		return err
	}

	return ui.Run(ctx, app.Engine, ui.Options{
		Theme:          styles.ParseMode(cfg.UI.Theme),
		SidebarWidth:   cfg.UI.SidebarWidth,
		ShowTimestamps: cfg.UI.ShowTimestamps,
	})
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tlchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
