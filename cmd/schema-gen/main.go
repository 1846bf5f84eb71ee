package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bherbruck/scriptcache/internal/config"

	"github.com/invopop/jsonschema"
)

func main() {
	reflector := &jsonschema.Reflector{
		Anonymous:                  false, // Don't inline definitions
		DoNotReference:             false, // Use $ref for reusable types
		AllowAdditionalProperties:  false, // Strict validation
		RequiredFromJSONSchemaTags: true,  // Use jsonschema:"required" tags
	}

	schema := reflector.Reflect(&config.Config{})

	schema.ID = "https://github.com/bherbruck/scriptcache/schema/manifest/v1/schema.json"
	schema.Title = "scriptcache Script Manifest"
	schema.Description = "Scripts to register with scriptcache and load into Redis on startup"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"directories": []string{"./lua"},
			"scripts": []map[string]interface{}{
				{
					"name":        "rate_limit",
					"description": "Sliding window rate limiter",
					"file":        "./lua/rate_limit.lua",
				},
				{
					"name":    "ping",
					"content": "return 'pong'",
				},
				{
					"name":    "legacy",
					"enabled": false,
					"content": "return redis.call('GET', KEYS[1])",
					"metadata": map[string]interface{}{
						"owner": "${TEAM:-platform}",
					},
				},
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding schema: %v\n", err)
		os.Exit(1)
	}
}
