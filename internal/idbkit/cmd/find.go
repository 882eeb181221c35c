package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"idbkit/internal/idb"
	"idbkit/internal/scan"
)

// FindResult is the JSON output of find.
type FindResult struct {
	Found       bool   `json:"found"`
	Address     string `json:"address,omitempty"`
	Function    string `json:"function,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// parseOpSpecs parses repeated --op flags.
func parseOpSpecs(raw []string) ([]scan.OpSpec, error) {
	specs := make([]scan.OpSpec, 0, len(raw))
	for _, r := range raw {
		spec, err := scan.ParseOpSpec(r)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func newFindCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <file>",
		Short: "Find the nearest instruction matching a pattern",
		Long: `Walk from --from through the enclosing function, one instruction at a
time, and print the first one whose mnemonic is one of --mnem and whose
operands match every --op.

An operand spec is pos:type:name. type is a name (reg, mem, phrase, displ,
imm, far, near) or a numeric code and may be empty. name is matched as a
substring for phrase and displ operands, numerically for imm, far and near
operands when it is an integer, and exactly otherwise. Quote the name to
force a text match.`,
		Example: `
idbkit find ./a.out --from main --mnem call
idbkit find ./a.out --from 0x401000 --dir up --mnem mov --op 0:reg:eax
idbkit find ./a.out --from main --op 1:displ:rbp
  `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirFlag, _ := cmd.Flags().GetString("dir")
			dir, err := scan.ParseDirection(dirFlag)
			if err != nil {
				return err
			}
			rawOps, _ := cmd.Flags().GetStringArray("op")
			specs, err := parseOpSpecs(rawOps)
			if err != nil {
				return err
			}
			mnems, _ := cmd.Flags().GetStringArray("mnem")
			budget, _ := cmd.Flags().GetInt("max")

			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			var cur idb.Cursor
			if from, _ := cmd.Flags().GetString("from"); from != "" {
				if cur.Here, err = resolveAddr(db, from); err != nil {
					return err
				}
			} else {
				cur.Here = db.Info().Entry
			}

			va, ok, err := a.scanner(db).FindInstr(cur, scan.Query{
				Direction: dir,
				Mnemonics: mnems,
				Operands:  specs,
				MaxInstrs: budget,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.json {
				r := FindResult{Found: ok}
				if ok {
					in, _ := db.Inst(va)
					r.Address = scan.Phex(va)
					r.Function = db.FuncName(va)
					r.Instruction = db.Listing(in)
				}
				return writeJSON(out, r)
			}
			if !ok {
				fmt.Fprintf(out, "no match %s from %s\n", dir, location(db, cur.Here))
				return nil
			}
			fmt.Fprintf(out, "%-40s %s\n", location(db, va), a.listingLine(db, va))
			return nil
		},
	}
	cmd.Flags().String("from", "", "Start location, name or address (default entry point)")
	cmd.Flags().String("dir", "down", "Direction: down, forward, next, up, back, backward, previous, prev")
	cmd.Flags().StringArray("mnem", nil, "Accepted mnemonic (repeatable)")
	cmd.Flags().StringArray("op", nil, "Operand spec pos:type:name (repeatable)")
	cmd.Flags().Int("max", 0, "Instructions to visit before giving up (default from config)")
	return cmd
}
