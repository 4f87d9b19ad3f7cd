package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/di"
)

func newSchemaCmd(a *app) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and validate schemas",
	}

	schemaCmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a schema file",
		Long: `Validate a schema file (JSON, or YAML for .yaml/.yml) and print its fingerprint.
Without a file the configured schema is validated.

Examples:
  arenabuf schema validate ./users.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.schemaPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.SchemaPath
			}
			s, err := di.LoadSchema(path)
			if err != nil {
				return err
			}
			cmd.Printf("%s: valid\n", path)
			cmd.Printf("fingerprint: %016x\n", s.Fingerprint())
			cmd.Printf("sortable: %t\n", s.Sortable())
			return nil
		},
	})

	schemaCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configured schema in canonical form",
		Args:  cobra.NoArgs,
		RunE: a.withContainer(func(cmd *cobra.Command, args []string, c *di.Container) error {
			f, err := c.Factory()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(f.Schema(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render schema: %w", err)
			}
			cmd.Println(string(out))
			return nil
		}),
	})

	return schemaCmd
}
