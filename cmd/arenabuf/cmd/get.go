package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/codec"
	"github.com/ssargent/arenabuf/pkg/di"
)

// Export formats
const (
	formatJSON = "json"
	formatCBOR = "cbor"
	formatRaw  = "raw"
)

func newGetCmd(a *app) *cobra.Command {
	var path string
	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a document or one value as JSON",
		Long: `Print a stored document as JSON. With --path only the value at that path is
printed; absent values print as null.

Examples:
  arenabuf get 2bQ4gWDkWgCRxR5pOBEOzbLs5jh
  arenabuf get 2bQ4gWDkWgCRxR5pOBEOzbLs5jh --path tags.0`,
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
			b, err := store.Open(id)
			if err != nil {
				return err
			}
			out, err := b.PathJSON(path)
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}),
	}
	getCmd.Flags().StringVarP(&path, "path", "p", "", "Path of the value to print")
	return getCmd
}

func newExportCmd(a *app) *cobra.Command {
	var format, outFile string
	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a document as JSON, CBOR or raw buffer bytes",
		Long: `Export a stored document. json and cbor decode the buffer; raw writes the
buffer bytes exactly as stored, ready for "arenabuf put --raw".

Examples:
  arenabuf export 2bQ4gWDkWgCRxR5pOBEOzbLs5jh --format cbor --out alice.cbor
  arenabuf export 2bQ4gWDkWgCRxR5pOBEOzbLs5jh --format raw > alice.bin`,
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

			var out []byte
			switch format {
			case formatRaw:
				out, err = store.Read(id)
			case formatJSON:
				b, oerr := store.Open(id)
				if oerr != nil {
					return oerr
				}
				out, err = b.ToJSON()
			case formatCBOR:
				b, oerr := store.Open(id)
				if oerr != nil {
					return oerr
				}
				v, _, gerr := b.Get("")
				if gerr != nil {
					return gerr
				}
				out, err = codec.MarshalCBOR(v)
			default:
				return fmt.Errorf("unknown format %q (want json, cbor or raw)", format)
			}
			if err != nil {
				return err
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, out, 0600); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				cmd.Printf("Exported %d bytes to %s\n", len(out), outFile)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}),
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format: json, cbor or raw")
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write to this file instead of stdout")
	return exportCmd
}
