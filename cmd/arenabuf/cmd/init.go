package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/config"
)

// starterSchema is written by init when no schema file exists yet
const starterSchema = `{
  "type": "table",
  "columns": [
    ["name", {"type": "string"}],
    ["age", {"type": "uint8"}],
    ["tags", {"type": "list", "of": {"type": "string"}}]
  ]
}
`

func newInitCmd(a *app) *cobra.Command {
	var force, printKey bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration, data directory and starter schema",
		Long: `Create the arenabuf configuration file with a generated API key, the data
directory and, when the schema file does not exist yet, a starter schema.

Examples:
  arenabuf init
  arenabuf init --data-dir ./mydata --schema ./users.yaml
  arenabuf --config ./arenabuf.yaml init --force --print-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := a.resolvedConfigPath()
			if config.ConfigExists(configPath) && !force {
				cmd.Printf("Configuration already exists at %s. Use --force to recreate it.\n", configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(configPath, a.dataDir, a.schemaPath)
			if err != nil {
				return err
			}
			cmd.Printf("Configuration created at %s\n", configPath)

			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			cmd.Printf("Data directory: %s\n", cfg.DataDir)

			if _, err := os.Stat(cfg.SchemaPath); os.IsNotExist(err) {
				if err := os.MkdirAll(filepath.Dir(cfg.SchemaPath), 0750); err != nil {
					return fmt.Errorf("failed to create schema directory: %w", err)
				}
				if err := os.WriteFile(cfg.SchemaPath, []byte(starterSchema), 0600); err != nil {
					return fmt.Errorf("failed to write starter schema: %w", err)
				}
				cmd.Printf("Starter schema written to %s\n", cfg.SchemaPath)
			} else {
				cmd.Printf("Schema: %s\n", cfg.SchemaPath)
			}

			if printKey {
				cmd.Printf("API key: %s\n", cfg.Security.APIKey)
			}
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Recreate the configuration even if it exists")
	initCmd.Flags().BoolVar(&printKey, "print-key", false, "Print the generated API key")
	return initCmd
}
