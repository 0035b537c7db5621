package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/benekli/minerva/pkg/engine"
	"github.com/benekli/minerva/pkg/logger"
)

// QueryCmd runs a single query against a locally built engine and prints
// the result, without starting a server.
type QueryCmd struct {
	Text []string `arg:"" help:"The query text."`

	TimeoutMS int64  `name:"timeout-ms" help:"Per-query timeout in milliseconds." default:"120000"`
	Language  string `help:"Language hint (en, zh). Detected when empty."`
	JSON      bool   `help:"Print the full response as JSON."`
}

func (c *QueryCmd) Run(cli *CLI) error {
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

	req := &engine.Request{
		Query:     strings.Join(c.Text, " "),
		TimeoutMS: c.TimeoutMS,
	}
	if c.Language != "" {
		req.Context = map[string]string{"language_hint": c.Language}
	}

	response, err := eng.Query(ctx, req)
	if err != nil {
		return err
	}

	if c.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	}

	fmt.Printf("[%s, %s, confidence %.2f]\n\n",
		response.Decision.PrimaryTask, response.Decision.Method, response.Decision.Confidence)
	fmt.Println(renderResponse(response))
	return nil
}

// renderResponse flattens a typed response to terminal text.
func renderResponse(response *engine.Response) string {
	switch {
	case response.Research != nil:
		var b strings.Builder
		b.WriteString(response.Research.Summary)
		if len(response.Research.Sources) > 0 {
			b.WriteString("\n\nSources:\n")
			for i, src := range response.Research.Sources {
				fmt.Fprintf(&b, "  [%d] %s\n", i+1, src.URL)
			}
		}
		return b.String()
	case response.Code != nil:
		if response.Code.Success {
			var b strings.Builder
			b.WriteString(strings.TrimRight(response.Code.Stdout, "\n"))
			if response.Code.Explanation != "" {
				b.WriteString("\n\n")
				b.WriteString(response.Code.Explanation)
			}
			return b.String()
		}
		return response.Code.Explanation
	case response.Chat != nil:
		return response.Chat.Message
	case response.RAG != nil:
		return response.RAG.Answer
	case response.Domain != nil:
		return response.Domain.FormattedSummary
	case response.Workflow != nil:
		return response.Workflow.Answer
	}
	return "(no result)"
}
