package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"idbkit/internal/scan"
)

// parseInt accepts signed integers in any Go base, or an address.
func parseInt(s string) (string, error) {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return scan.Phex(n), nil
	}
	va, err := scan.ParseAddr(s)
	if err != nil {
		return "", err
	}
	return scan.Phex(va), nil
}

func newHexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hex <n>...",
		Short: "Format integers as 0x-prefixed hex",
		Example: `
idbkit hex 4096 0x7f 10h
idbkit hex -- -16
  `,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]string, 0, len(args))
			for _, arg := range args {
				h, err := parseInt(arg)
				if err != nil {
					return err
				}
				out = append(out, h)
			}
			if a.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			for _, h := range out {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
			return nil
		},
	}
}
