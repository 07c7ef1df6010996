// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/session"
	"github.com/jeranaias/tlchat/internal/util"
)

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

func newSessionsCmd(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and manage stored sessions",
		Long: `Inspect and manage the locally stored chat sessions.

Session ids may be abbreviated to any unique prefix.`,
	}

	var asJSON bool
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, most recent first",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(app *App) error {
				return printSessionList(cmd.OutOrStdout(), app.Registry.List(), asJSON)
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var searchJSON bool
	search := &cobra.Command{
		Use:     "search <query>",
		Short:   "Find sessions whose title contains query",
		Example: `  tlchat sessions search kubernetes`,
		Args:    minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(app *App) error {
				found := app.Registry.Search(strings.Join(args, " "))
				return printSessionList(cmd.OutOrStdout(), found, searchJSON)
			})
		},
	}
	search.Flags().BoolVar(&searchJSON, "json", false, "print JSON")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session transcript",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(app *App) error {
				id, err := ResolveSessionID(app.Registry, args[0])
				if err != nil {
					return err
				}
				s, _ := app.Registry.Get(id)
				printTranscript(cmd.OutOrStdout(), s, IsStdoutTTY())
				return nil
			})
		},
	}

	rename := &cobra.Command{
		Use:     "rename <id> <title>",
		Short:   "Rename a session",
		Example: `  tlchat sessions rename 3f2a "Deployment notes"`,
		Args:    minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(app *App) error {
				id, err := ResolveSessionID(app.Registry, args[0])
				if err != nil {
					return err
				}
				if err := app.Registry.Rename(id, strings.Join(args[1:], " ")); err != nil {
					return fmt.Errorf("rename %s: %w", id, err)
				}
				s, _ := app.Registry.Get(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render(SuccessStyle, "Renamed"), s.Title)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session and its draft",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(app *App) error {
				id, err := ResolveSessionID(app.Registry, args[0])
				if err != nil {
					return err
				}
				app.Registry.Delete(&session.Active{}, id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render(SuccessStyle, "Deleted"), id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, search, show, rename, del)
	return cmd
}

// withApp opens the store for a one-shot command with logging on stderr.
func withApp(cmd *cobra.Command, flags *GlobalFlags, fn func(*App) error) error {
	cfg, err := flags.LoadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg, cmd.ErrOrStderr())

	app, err := OpenApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// =============================================================================
// OUTPUT
// =============================================================================

// sessionSummary is the JSON shape of one row of "sessions list".
type sessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func printSessionList(w io.Writer, sessions []model.Session, asJSON bool) error {
	if asJSON {
		rows := make([]sessionSummary, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, sessionSummary{
				ID:           s.ID,
				Title:        s.Title,
				MessageCount: s.MessageCount(),
				UpdatedAt:    s.UpdatedAt.UTC(),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(w, render(DimStyle, "No sessions."))
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			render(LabelStyle, shortID(s.ID)),
			util.PadWidth(util.ClampWidth(s.Title, 40), 40),
			render(DimStyle, util.PadWidth(messageCount(s.MessageCount()), 12)),
			render(DimStyle, s.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
	return nil
}

// printTranscript writes every message of s. Assistant answers go through
// glamour when markdown is true.
func printTranscript(w io.Writer, s model.Session, markdown bool) {
	fmt.Fprintln(w, render(TitleStyle, s.Title))
	fmt.Fprintln(w, RenderSeparator(GetTerminalWidth()))

	var renderer *glamour.TermRenderer
	if markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			renderer = r
		}
	}

	for _, m := range s.Messages {
		label := render(UserStyle, m.Role.DisplayName())
		if m.IsAssistant() {
			label = render(AssistantStyle, m.Role.DisplayName())
		}
		if m.CreatedAt != nil {
			label += " " + render(DimStyle, m.CreatedAt.Local().Format("15:04"))
		}
		fmt.Fprintln(w, label)

		body := m.Content
		if renderer != nil && m.IsAssistant() {
			if out, err := renderer.Render(body); err == nil {
				body = strings.TrimRight(out, "\n")
			}
		}
		fmt.Fprintln(w, body)
		fmt.Fprintln(w)
	}
}
