package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/di"
)

func newPutCmd(a *app) *cobra.Command {
	var rawFile string
	putCmd := &cobra.Command{
		Use:   "put [json|-]",
		Short: "Store a new document",
		Long: `Encode a JSON document with the configured schema and store it. The new
document id is printed. Use - to read the JSON from stdin, or --raw to store a
buffer exported with "arenabuf export --format raw".

Examples:
  arenabuf put '{"name": "Alice", "age": 18}'
  cat doc.json | arenabuf put -
  arenabuf put --raw ./alice.bin`,
		Args: func(cmd *cobra.Command, args []string) error {
			if rawFile != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: a.withContainer(func(cmd *cobra.Command, args []string, c *di.Container) error {
			store, err := c.Store()
			if err != nil {
				return err
			}

			var data []byte
			if rawFile != "" {
				data, err = os.ReadFile(rawFile)
				if err != nil {
					return fmt.Errorf("failed to read buffer: %w", err)
				}
			} else {
				doc, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				b, err := buffer.FromJSON(store.Factory().Schema(), doc)
				if err != nil {
					return err
				}
				data = b.Finish()
			}

			id, err := store.Create(data)
			if err != nil {
				return err
			}
			cmd.Println(id.String())
			return nil
		}),
	}
	putCmd.Flags().StringVar(&rawFile, "raw", "", "Store the buffer bytes in this file instead of JSON")
	return putCmd
}
