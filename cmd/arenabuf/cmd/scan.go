package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/di"
)

var errScanLimit = errors.New("scan limit reached")

func newScanCmd(a *app) *cobra.Command {
	var limit int
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "List documents in sort order",
		Long: `Print every stored document as "<id> <json>", one per line. Documents of a
sortable schema are listed in value order, all others in id (creation) order.

Examples:
  arenabuf scan
  arenabuf scan --limit 10`,
		Args: cobra.NoArgs,
		RunE: a.withContainer(func(cmd *cobra.Command, args []string, c *di.Container) error {
			store, err := c.Store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			n := 0
			err = store.Scan(ctx, func(id ksuid.KSUID, data []byte) error {
				b, err := store.Factory().OpenBuffer(data)
				if err != nil {
					return fmt.Errorf("document %s: %w", id, err)
				}
				out, err := b.ToJSON()
				if err != nil {
					return fmt.Errorf("document %s: %w", id, err)
				}
				cmd.Printf("%s %s\n", id, out)
				n++
				if limit > 0 && n >= limit {
					return errScanLimit
				}
				return nil
			})
			if err != nil && !errors.Is(err, errScanLimit) {
				return err
			}
			return nil
		}),
	}
	scanCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many documents (0 for all)")
	return scanCmd
}
