package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/buffer"
	"github.com/ssargent/arenabuf/pkg/di"
)

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <path> <json|->",
		Short: "Set one value of a document",
		Long: `Decode a JSON value and store it at path inside the document. An empty path
("") replaces the whole document.

Examples:
  arenabuf set 2bQ4gWDkWgCRxR5pOBEOzbLs5jh age 19
  arenabuf set 2bQ4gWDkWgCRxR5pOBEOzbLs5jh tags '["admin", "ops"]'`,
		Args: cobra.ExactArgs(3),
		RunE: a.withContainer(func(cmd *cobra.Command, args []string, c *di.Container) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := readInput(cmd, args[2])
			if err != nil {
				return err
			}
			store, err := c.Store()
			if err != nil {
				return err
			}
			if err := store.Mutate(id, func(b *buffer.Buffer) error {
				return b.SetJSON(args[1], value)
			}); err != nil {
				return err
			}
			cmd.Printf("Updated %s %s\n", id, args[1])
			return nil
		}),
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var path string
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document or one value of it",
		Long: `Delete a stored document. With --path only the value at that path is cleared.

Examples:
  arenabuf delete 2bQ4gWDkWgCRxR5pOBEOzbLs5jh
  arenabuf delete 2bQ4gWDkWgCRxR5pOBEOzbLs5jh --path tags.1`,
		Args: cobra.ExactArgs(1),
		RunE: a.withContainer(func(cmd *cobra.Command, args []string, c *di.Container) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, err := c.Store()
			if err != nil {
				return err
			}
			if path == "" {
				if err := store.Delete(id); err != nil {
					return err
				}
				cmd.Printf("Deleted %s\n", id)
				return nil
			}
			if err := store.Mutate(id, func(b *buffer.Buffer) error {
				return b.Delete(path)
			}); err != nil {
				return err
			}
			cmd.Printf("Deleted %s %s\n", id, path)
			return nil
		}),
	}
	deleteCmd.Flags().StringVarP(&path, "path", "p", "", "Path of the value to delete")
	return deleteCmd
}
