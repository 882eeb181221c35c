package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"idbkit/internal/idbkit/styles"
	"idbkit/internal/scan"
)

// InfoReport summarizes a loaded image.
type InfoReport struct {
	Path         string `json:"path"`
	Processor    string `json:"processor"`
	Bits         int    `json:"bits"`
	Entry        string `json:"entry"`
	MinEA        string `json:"min_ea"`
	MaxEA        string `json:"max_ea"`
	Functions    int    `json:"functions"`
	Instructions int    `json:"instructions"`
}

func (r InfoReport) markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Path)
	b.WriteString("| field | value |\n|---|---|\n")
	fmt.Fprintf(&b, "| processor | `%s` |\n", r.Processor)
	fmt.Fprintf(&b, "| bits | %d |\n", r.Bits)
	fmt.Fprintf(&b, "| entry | `%s` |\n", r.Entry)
	fmt.Fprintf(&b, "| range | `%s`-`%s` |\n", r.MinEA, r.MaxEA)
	fmt.Fprintf(&b, "| functions | %d |\n", r.Functions)
	fmt.Fprintf(&b, "| instructions | %d |\n", r.Instructions)
	return b.String()
}

func (r InfoReport) text() string {
	return fmt.Sprintf("path: %s\nprocessor: %s\nbits: %d\nentry: %s\nrange: %s-%s\nfunctions: %d\ninstructions: %d\n",
		r.Path, r.Processor, r.Bits, r.Entry, r.MinEA, r.MaxEA, r.Functions, r.Instructions)
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Describe a binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			info := db.Info()
			r := InfoReport{
				Path:         args[0],
				Processor:    info.Proc,
				Bits:         scan.Bitness(info),
				Entry:        scan.Phex(info.Entry),
				MinEA:        scan.Phex(info.MinEA),
				MaxEA:        scan.Phex(info.MaxEA),
				Functions:    len(db.Functions()),
				Instructions: db.NumHeads(),
			}

			out := cmd.OutOrStdout()
			switch {
			case a.json:
				return writeJSON(out, r)
			case !a.noColor:
				width, _, err := term.GetSize(os.Stdout.Fd())
				if err != nil || width <= 0 {
					width = 80
				}
				fmt.Fprint(out, styles.RenderMarkdown(r.markdown(), width-2))
			default:
				fmt.Fprint(out, r.text())
			}
			return nil
		},
	}
}
