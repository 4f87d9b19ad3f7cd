package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/di"
)

func newCompactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact [id]",
		Short: "Reclaim the space orphaned by updates",
		Long: `Rewrite a document, or every document when no id is given, dropping the bytes
left behind by updates and deletes. Documents with nothing to reclaim are left
untouched.

Examples:
  arenabuf compact
  arenabuf compact 2bQ4gWDkWgCRxR5pOBEOzbLs5jh`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.withContainer(func(cmd *cobra.Command, args []string, c *di.Container) error {
			store, err := c.Store()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				sizes, err := store.Compact(id)
				if err != nil {
					return err
				}
				cmd.Printf("%s: %d -> %d bytes\n", id, sizes.Current, sizes.AfterCompaction)
				return nil
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			stats, err := store.CompactAll(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Compacted %d of %d documents: %d -> %d bytes\n",
				stats.Rewritten, stats.Documents, stats.Before, stats.After)
			return nil
		}),
	}
}
