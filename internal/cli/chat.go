// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - line-oriented chat for terminals where the full-screen client
// is unavailable or unwanted.
//
// Interactive commands:
//
//	/new                   Start a new chat
//	/sessions, /ls         List sessions
//	/switch <id>           Show another session
//	/delete <id>           Delete a session
//	/rename <id> <title>   Rename a session
//	/search <query>        Find sessions by title
//	/history               Print the current transcript
//	/regen                 Ask the last question again
//	/retry                 Resubmit the last query
//	/help, /h              Show commands
//	/quit, /q              Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tlchat/internal/chat"
	"github.com/jeranaias/tlchat/internal/config"
	"github.com/jeranaias/tlchat/internal/model"
	"github.com/jeranaias/tlchat/internal/util"
)

const promptText = "you> "

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives next to the config file.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, name := range commandNames {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	return out
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-oriented chat",
		Long: `Chat with the answer service one line at a time.

Answers are revealed progressively as they would be in the full-screen
client. Type /help for the list of commands.`,
		Example: `  tlchat chat
  echo "What is a goroutine?" | tlchat chat`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags)
		},
	}
}

func runChat(cmd *cobra.Command, flags *GlobalFlags) error {
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

	repl := newChatREPL(app, cmd.OutOrStdout())
	input := NewChatCLI()
	defer input.Close()

	ctx := cmd.Context()
	interactive := IsInteractive()
	if interactive {
		repl.printBanner()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := input.ReadInput(promptText)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				if interactive {
					fmt.Fprintln(repl.out, render(DimStyle, "(use /quit or Ctrl+D to exit)"))
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if repl.Handle(ctx, line) {
			return nil
		}
	}
}

// =============================================================================
// REPL
// =============================================================================

// chatREPL executes one line of input at a time against the engine.
type chatREPL struct {
	app *App
	out io.Writer
}

func newChatREPL(app *App, out io.Writer) *chatREPL {
	return &chatREPL{app: app, out: out}
}

// slashCommand is a parsed "/name args..." line.
type slashCommand struct {
	Name string
	Args []string
	Rest string
}

var commandNames = []string{
	"/new", "/sessions", "/ls", "/switch", "/delete", "/rename", "/search",
	"/history", "/regen", "/retry", "/help", "/h", "/quit", "/q", "/exit",
}

// parseSlashCommand reports whether input is a command. Rest holds
// everything after the first argument, for titles and queries.
func parseSlashCommand(input string) (slashCommand, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return slashCommand{}, false
	}
	fields := strings.Fields(input)
	cmd := slashCommand{Name: strings.ToLower(fields[0]), Args: fields[1:]}

	rest := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
	if len(cmd.Args) > 0 {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, cmd.Args[0]))
	}
	cmd.Rest = rest
	return cmd, true
}

// Handle runs one input line and reports whether the user asked to quit.
func (r *chatREPL) Handle(ctx context.Context, line string) bool {
	cmd, ok := parseSlashCommand(line)
	if !ok {
		if strings.TrimSpace(line) == "" {
			return false
		}
		r.stream(ctx, func() error { return r.app.Engine.Ask(ctx, line) })
		return false
	}

	engine := r.app.Engine
	switch cmd.Name {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		r.printHelp()

	case "/new":
		engine.NewChat(ctx)
		fmt.Fprintln(r.out, render(SuccessStyle, "Started a new chat."))

	case "/sessions", "/ls":
		r.printSessions(engine.Sessions())

	case "/search":
		query := strings.TrimSpace(strings.Join(cmd.Args, " "))
		r.printSessions(engine.SearchSessions(query))

	case "/switch":
		id, err := r.resolve(cmd.Args)
		if err != nil {
			r.printError(err)
			return false
		}
		if err := engine.SwitchSession(id); err != nil {
			r.printError(err)
			return false
		}
		r.printTranscript(engine.Snapshot().Messages)

	case "/delete":
		id, err := r.resolve(cmd.Args)
		if err != nil {
			r.printError(err)
			return false
		}
		engine.DeleteSession(id)
		fmt.Fprintln(r.out, render(SuccessStyle, "Deleted "+shortID(id)+"."))

	case "/rename":
		id, err := r.resolve(cmd.Args)
		if err != nil {
			r.printError(err)
			return false
		}
		if cmd.Rest == "" {
			r.printError(&UsageError{Reason: "a title is required", Example: "/rename <id> <title>"})
			return false
		}
		if err := engine.RenameSession(id, cmd.Rest); err != nil {
			r.printError(err)
			return false
		}
		fmt.Fprintln(r.out, render(SuccessStyle, "Renamed "+shortID(id)+"."))

	case "/history":
		r.printTranscript(engine.Snapshot().Messages)

	case "/regen":
		r.stream(ctx, func() error { return engine.Regenerate(ctx) })

	case "/retry":
		if !engine.Snapshot().CanRetry() {
			fmt.Fprintln(r.out, render(DimStyle, "Nothing to retry."))
			return false
		}
		r.stream(ctx, func() error { return engine.Retry(ctx) })

	default:
		r.printError(&UsageError{Reason: "unknown command " + cmd.Name, Example: "/help"})
	}
	return false
}

func (r *chatREPL) resolve(args []string) (string, error) {
	if len(args) == 0 {
		return "", &UsageError{Reason: "session id is required"}
	}
	return ResolveSessionID(r.app.Registry, args[0])
}

// stream runs a blocking request and then prints the answer as the engine
// reveals it.
func (r *chatREPL) stream(ctx context.Context, request func() error) {
	changed := make(chan struct{}, 1)
	unsubscribe := r.app.Engine.Subscribe(func(chat.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	err := request()
	st := r.app.Engine.Snapshot()
	if err != nil {
		if st.Error != "" {
			fmt.Fprintln(r.out, render(ErrorStyle, st.Error))
			if st.CanRetry() {
				fmt.Fprintln(r.out, render(DimStyle, "Type /retry to try again."))
			}
		} else if !errors.Is(err, chat.ErrBusy) {
			r.printError(err)
		}
		return
	}
	if st.ActiveID == "" || len(st.Messages) == 0 || !st.Messages[len(st.Messages)-1].IsAssistant() {
		return
	}

	fmt.Fprint(r.out, render(AssistantStyle, "assistant> "))
	printed := 0
	for {
		text := lastAssistantText(st.Messages)
		if len(text) > printed {
			fmt.Fprint(r.out, text[printed:])
			printed = len(text)
		}
		if !st.Typing {
			break
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return
		case <-changed:
		}
		st = r.app.Engine.Snapshot()
	}
	fmt.Fprintln(r.out)
}

func lastAssistantText(msgs []model.Message) string {
	if n := len(msgs); n > 0 && msgs[n-1].IsAssistant() {
		return msgs[n-1].Content
	}
	return ""
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *chatREPL) printBanner() {
	fmt.Fprintln(r.out, render(TitleStyle, "tlchat"))
	fmt.Fprintln(r.out, render(DimStyle, "Connected to "+r.app.Client.BaseURL()+". Type /help for commands."))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printHelp() {
	rows := [][2]string{
		{"/new", "Start a new chat"},
		{"/sessions", "List sessions"},
		{"/switch <id>", "Show another session"},
		{"/delete <id>", "Delete a session"},
		{"/rename <id> <title>", "Rename a session"},
		{"/search <query>", "Find sessions by title"},
		{"/history", "Print the current transcript"},
		{"/regen", "Ask the last question again"},
		{"/retry", "Resubmit the last query"},
		{"/quit", "Exit"},
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s %s\n", render(LabelStyle, util.PadWidth(row[0], 22)), row[1])
	}
}

func (r *chatREPL) printSessions(sessions []model.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, render(DimStyle, "No sessions."))
		return
	}
	active := r.app.Engine.Snapshot().ActiveID
	for _, s := range sessions {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s  %s  %s\n",
			marker,
			render(LabelStyle, shortID(s.ID)),
			util.PadWidth(util.ClampWidth(s.Title, 40), 40),
			render(DimStyle, messageCount(s.MessageCount())))
	}
}

func (r *chatREPL) printTranscript(msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, render(DimStyle, "No messages yet."))
		return
	}
	for _, m := range msgs {
		if m.IsAssistant() {
			fmt.Fprintln(r.out, render(AssistantStyle, "assistant> ")+m.Content)
		} else {
			fmt.Fprintln(r.out, render(UserStyle, promptText)+m.Content)
		}
	}
}

func (r *chatREPL) printError(err error) {
	fmt.Fprintln(r.out, render(ErrorStyle, "Error: ")+err.Error())
}

// shortID is the first eight characters of a session id.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func messageCount(n int) string {
	if n == 1 {
		return "1 message"
	}
	return fmt.Sprintf("%d messages", n)
}
