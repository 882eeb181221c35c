package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
	"idbkit/internal/idb/elfdb"
	"idbkit/internal/scan"
)

// Line is one listing line in JSON output.
type Line struct {
	Address     string `json:"address"`
	Bytes       string `json:"bytes"`
	Instruction string `json:"instruction"`
}

// functionListing returns the instructions of the function containing va,
// or up to count instructions from va through the first return when va is
// outside any function.
func functionListing(db *elfdb.DB, va idb.Addr, count int) (string, disasm.Stream) {
	if fn, ok := db.FuncAt(va); ok {
		return fn.Display(), db.Heads(fn.Start, fn.End)
	}
	var out disasm.Stream
	for ea := va; len(out) < count; {
		in, ok := db.Inst(ea)
		if !ok {
			break
		}
		out = append(out, *in)
		if in.Flow == disasm.FlowRet {
			break
		}
		ea = db.NextHead(ea, idb.BadAddr)
	}
	return scan.Phex(va), out
}

func newDisasmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <file> <name|addr>",
		Short: "Print the listing of a function",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			va, err := resolveAddr(db, args[1])
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")
			title, insts := functionListing(db, va, count)
			if len(insts) == 0 {
				return fmt.Errorf("%w: no instruction at %s", scan.ErrInvalidArgument, scan.Phex(va))
			}

			out := cmd.OutOrStdout()
			if a.json {
				lines := make([]Line, len(insts))
				for n := range insts {
					lines[n] = Line{
						Address:     scan.Phex(insts[n].VA),
						Bytes:       fmt.Sprintf("%x", insts[n].Raw),
						Instruction: db.Listing(&insts[n]),
					}
				}
				return writeJSON(out, lines)
			}
			fmt.Fprintf(out, "%s:\n", title)
			for _, in := range insts {
				fmt.Fprintln(out, a.listingLine(db, in.VA))
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 64, "Instructions to print outside a function")
	return cmd
}
