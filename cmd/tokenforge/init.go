package main

import (
	"fmt"
	"log/slog"
	"os"
)

const starterConfig = `# tokenforge configuration
version: 1

sources:
  - name: core
    patterns:
      - tokens/*.json

output:
  directory: ./dist
  # clean: true

dependencies:
  cache_dir: .tokenforge-cache
  strategy:
    name: snapshot
    # name: graph
    # options:
    #   maxDepth: 3
    #   transitive: true

# transforms:
#   - name/kebab
#   - value/string
# formatters:
#   - css/variables
#   - json/flat

watch:
  debounce: 250ms
  # rebuild_interval: 30m

# events:
#   store_path: .tokenforge-cache/events.db
#   nats:
#     enabled: true
#     url: nats://localhost:4222
#     subject: tokenforge.build.events

# metrics:
#   enabled: true
`

func runInit(configPath string, force bool) error {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", configPath)
		}
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	slog.Info("Configuration file created", "path", configPath)
	return nil
}
