package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/aretw0/canopy/internal/config"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
)

// ChatOptions configures one interactive chat run.
type ChatOptions struct {
	ConfigPath string
	SessionID  string
	Debug      bool
}

// RunChat starts the interactive REPL against a fully wired engine.
func RunChat(opts ChatOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		tui.PrintBanner()
	}

	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	app, err := Build(ctx, cfg, opts.Debug)
	if err != nil {
		return fmt.Errorf("error initializing canopy: %w", err)
	}
	defer app.Close()

	if interactive {
		printSystemMessage("Session '%s' active. Type 'exit' to quit.", sessionID)
	}

	render := tui.NewRenderer()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var history []domain.Message
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		history = append(history, domain.UserMessage(line))
		runCtx := context.Context(ctx)
		cancel := context.CancelFunc(func() {})
		if cfg.Limits.RunTimeout > 0 {
			runCtx, cancel = context.WithTimeout(runCtx, time.Duration(cfg.Limits.RunTimeout))
		}
		conversation, err := app.Agent.Run(runCtx, sessionID, history)
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		history = conversation

		answer := lastAssistant(conversation)
		if answer == "" {
			printSystemMessage("The agent ran out of turns without a final answer.")
			continue
		}
		if interactive {
			if out, err := render(answer); err == nil {
				fmt.Print(out)
				continue
			}
		}
		fmt.Println(answer)
	}

	if ctx.Signal() != nil && interactive {
		printSystemMessage("Interrupted (%v).", ctx.Signal())
	}
	return scanner.Err()
}

func lastAssistant(conversation []domain.Message) string {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == domain.RoleAssistant {
			return conversation[i].Content
		}
	}
	return ""
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}
