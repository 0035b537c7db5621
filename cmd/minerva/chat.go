package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/benekli/minerva/pkg/engine"
	"github.com/benekli/minerva/pkg/logger"
)

// ChatCmd runs an interactive session against a locally built engine. Every
// turn goes through the full router, so a chat session can still answer
// weather or code questions.
type ChatCmd struct {
	TimeoutMS int64 `name:"timeout-ms" help:"Per-turn timeout in milliseconds." default:"120000"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer func() { _ = loader.Close() }()
	}

	eng, err := engine.New(cfg, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer func() { _ = eng.Close() }()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("\nChat session started. Commands:")
		fmt.Println("  /quit or /exit - end the session")
		fmt.Println("  /new           - start a fresh conversation")
		fmt.Println()
	}

	conversationID := uuid.NewString()
	reader := bufio.NewReader(os.Stdin)

	for {
		if interactive {
			fmt.Print("You: ")
		}

		input, err := reader.ReadString('\n')
		if err != nil {
			// EOF ends a piped session cleanly.
			if interactive {
				fmt.Println()
			}
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			switch input {
			case "/quit", "/exit":
				return nil
			case "/new":
				conversationID = uuid.NewString()
				fmt.Println("Started a fresh conversation")
				continue
			default:
				fmt.Printf("Unknown command: %s\n", input)
				continue
			}
		}

		response, err := eng.Query(ctx, &engine.Request{
			Query:     input,
			TimeoutMS: c.TimeoutMS,
			Context:   map[string]string{"conversation_id": conversationID},
		})
		if err != nil {
			fmt.Printf("Error: %v\n\n", err)
			continue
		}

		if interactive {
			fmt.Printf("\n[%s] %s\n\n", response.Kind, renderResponse(response))
		} else {
			fmt.Println(renderResponse(response))
		}
	}
}
