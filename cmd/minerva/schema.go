package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/benekli/minerva/pkg/config"
)

// SchemaCmd generates JSON Schema from the config structs. Output goes to
// stdout so it can be redirected.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://github.com/benekli/minerva/schemas/config.json"
	schema.Title = "Minerva Configuration Schema"
	schema.Description = "Complete configuration schema for the minerva query engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"name": "minerva",
			"llm": map[string]interface{}{
				"primary": "openai",
				"providers": []interface{}{
					map[string]interface{}{
						"name":    "openai",
						"type":    "openai",
						"model":   "gpt-4o",
						"api_key": "${OPENAI_API_KEY}",
					},
				},
			},
			"router": map[string]interface{}{
				"mode": "hybrid",
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	return nil
}
