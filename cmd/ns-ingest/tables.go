package main

import (
	"Go2NetIngest/internal/enum"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/spf13/cobra"
)

func newTablesCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Print the embedded protocol and ethertype name tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTables(cmd.OutOrStdout(), kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "protocol or ethertype (default: both)")
	return cmd
}

// printTables renders each table with gopacket's decoder name next to every
// code, so mismatches between the registry and the decoder stand out.
func printTables(out io.Writer, kind string) error {
	var builders []func() (*enum.Table, error)
	switch kind {
	case "":
		builders = append(builders, enum.BuildProtocolTable, enum.BuildEtherTypeTable)
	case "protocol":
		builders = append(builders, enum.BuildProtocolTable)
	case "ethertype":
		builders = append(builders, enum.BuildEtherTypeTable)
	default:
		return fmt.Errorf("unknown table kind: '%s'", kind)
	}

	for i, build := range builders {
		t, err := build()
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}

		w := table.NewWriter()
		w.SetOutputMirror(out)
		w.SetTitle(fmt.Sprintf("%s (%d entries)", t.Kind(), t.Len()))
		// Don't uppercase the header values.
		w.Style().Format.Header = text.FormatDefault
		w.AppendHeader(table.Row{"name", "code", "decoder"})
		for _, e := range t.Entries() {
			code := fmt.Sprintf("%d", e.Code)
			if t.Kind() == enum.KindEtherType {
				code = fmt.Sprintf("0x%04X", e.Code)
			}
			w.AppendRow(table.Row{e.Name, code, t.LayerName(e.Code)})
		}
		w.Render()
	}
	return nil
}
