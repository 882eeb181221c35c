package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"idbkit/internal/idb"
	"idbkit/internal/scan"
)

// CallSite is one caller in JSON output.
type CallSite struct {
	Address     string `json:"address"`
	Function    string `json:"function,omitempty"`
	Instruction string `json:"instruction"`
}

func newCallersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callers <file> [target]",
		Short: "List the call sites of a function",
		Long: `List every call instruction referencing the target. Without a target
the highlighted name (--highlight) is used when it resolves, then the
cursor location (--here).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			var cur idb.Cursor
			cur.Highlighted, _ = cmd.Flags().GetString("highlight")
			if here, _ := cmd.Flags().GetString("here"); here != "" {
				if cur.Here, err = resolveAddr(db, here); err != nil {
					return err
				}
			}
			var target idb.Addr
			if len(args) == 2 {
				if target, err = resolveAddr(db, args[1]); err != nil {
					return err
				}
			}

			s := a.scanner(db)
			var (
				addrs []idb.Addr
				sites = []CallSite{}
			)
			s.ForEachCallTo(cur, target, func(va idb.Addr) {
				site := CallSite{Address: scan.Phex(va), Function: db.FuncName(va)}
				if in, ok := db.Inst(va); ok {
					site.Instruction = db.Listing(in)
				}
				addrs = append(addrs, va)
				sites = append(sites, site)
			})

			out := cmd.OutOrStdout()
			if a.json {
				return writeJSON(out, sites)
			}
			if len(addrs) == 0 {
				fmt.Fprintf(out, "no callers of %s\n", location(db, s.Target(cur, target)))
				return nil
			}
			for _, va := range addrs {
				fmt.Fprintf(out, "%-40s %s\n", location(db, va), a.listingLine(db, va))
			}
			return nil
		},
	}
	cmd.Flags().String("here", "", "Cursor location (name or address)")
	cmd.Flags().String("highlight", "", "Identifier under the cursor")
	return cmd
}
