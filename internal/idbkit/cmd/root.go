package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
	"idbkit/internal/idb/elfdb"
	"idbkit/internal/idbkit/log"
	"idbkit/internal/scan"
	"idbkit/internal/ui/colorize"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfg     Config
	json    bool
	noColor bool
}

// NewRootCmd builds the idbkit command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "idbkit",
		Short: "Scripting helpers for an analysis database of an ELF binary",
		Long: `idbkit loads an ELF binary into an analysis database and runs the
scripting helpers against it: address formatting, bitness detection,
call-site enumeration and the instruction pattern scanner.`,
		Example: `
# Show what was loaded
idbkit info ./a.out

# Who calls malloc?
idbkit callers ./a.out malloc@plt

# Find the next "mov" whose second operand is an immediate 0
idbkit find ./a.out --from main --mnem mov --op 1:imm:0

# Browse interactively
idbkit browse ./a.out
  `,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ResolveCwd(cmd); err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("config")
			cfg, err := LoadConfig(path)
			if err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			cfg.Debug = cfg.Debug || debug
			a.cfg = cfg
			a.json, _ = cmd.Flags().GetBool("json")

			log.Setup(cfg.Debug)

			a.noColor = cfg.NoColor || a.json || colorize.Disabled() || !term.IsTerminal(os.Stdout.Fd())
			return nil
		},
	}

	root.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	root.PersistentFlags().String("config", "", "Config file (default $IDBKIT_CONFIG)")
	root.PersistentFlags().BoolP("debug", "d", false, "Debug")
	root.PersistentFlags().BoolP("json", "j", false, "Output results as JSON")

	root.AddCommand(
		newInfoCmd(a),
		newHexCmd(a),
		newCallersCmd(a),
		newFindCmd(a),
		newDisasmCmd(a),
		newBrowseCmd(a),
		newSchemaCmd(),
	)
	return root
}

func Execute() {
	rootCmd := NewRootCmd()
	defer log.Close()

	// fang renders help and errors as markdown; skip it when piped.
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func ResolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		err := os.Chdir(cwd)
		if err != nil {
			return "", fmt.Errorf("failed to change directory: %v", err)
		}
		return cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %v", err)
	}
	return cwd, nil
}

// openDB resolves path and loads it.
func openDB(path string) (*elfdb.DB, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %v", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot access file: %v", err)
	}
	db, err := elfdb.Open(absPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Opened database", "path", absPath, "proc", db.Info().Proc)
	return db, nil
}

// resolveAddr accepts a symbol name or an address.
func resolveAddr(db idb.Database, s string) (idb.Addr, error) {
	if va := db.NameAddr(s); va != idb.BadAddr {
		return va, nil
	}
	va, err := scan.ParseAddr(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is neither a known name nor an address", scan.ErrInvalidArgument, s)
	}
	return va, nil
}

func (a *app) scanner(db *elfdb.DB) *scan.Scanner {
	return scan.New(db, a.cfg.ScanConfig(db.CallMnemonics()))
}

// listingText formats one instruction as "<addr> <text>  ; <comment>".
func listingText(db *elfdb.DB, in *disasm.Inst) string {
	text := scan.Phex(in.VA) + " " + db.Listing(in)
	if c := db.Comment(in); c != "" {
		text += "  ; " + c
	}
	return text
}

// listingLine is listingText for the instruction at va, colorized unless
// colors are off.
func (a *app) listingLine(db *elfdb.DB, va idb.Addr) string {
	in, ok := db.Inst(va)
	if !ok {
		return scan.Phex(va) + " ??"
	}
	return a.colorLine(db.Info().Proc, listingText(db, in))
}

func (a *app) colorLine(proc, line string) string {
	if a.noColor {
		return line
	}
	return colorize.Line(proc, line)
}

// location renders va as "func+0xoff" when it lies in a function.
func location(db *elfdb.DB, va idb.Addr) string {
	fn, ok := db.FuncAt(va)
	if !ok {
		return scan.Phex(va)
	}
	if va == fn.Start {
		return fn.Display()
	}
	return fn.Display() + "+" + scan.Phex(va-fn.Start)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
