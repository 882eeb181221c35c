package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
	"idbkit/internal/idb/elfdb"
	"idbkit/internal/idbkit/styles"
	"idbkit/internal/scan"
	"idbkit/internal/ui/colorize"
)

type viewMode int

const (
	viewFunctions viewMode = iota
	viewListing
	viewCallers
)

type funcItem struct {
	fn elfdb.Func
}

func (i funcItem) FilterValue() string { return fmt.Sprintf("%x %s", i.fn.Start, i.fn.Display()) }

type funcDelegate struct{}

func (d funcDelegate) Height() int                               { return 1 }
func (d funcDelegate) Spacing() int                              { return 0 }
func (d funcDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d funcDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(funcItem)
	if !ok {
		return
	}
	indicator := " "
	addrStyle := styles.Muted
	if index == m.Index() {
		indicator = ">"
		addrStyle = styles.Address
	}
	fmt.Fprintf(w, " %s  %s  %s", indicator, addrStyle.Render(fmt.Sprintf("%x", i.fn.Start)), i.fn.Display())
}

type dbLoadedMsg struct {
	db  *elfdb.DB
	err error
}

func loadDBCmd(path string) tea.Cmd {
	return func() tea.Msg {
		db, err := openDB(path)
		return dbLoadedMsg{db: db, err: err}
	}
}

type browseModel struct {
	app  *app
	path string

	db        *elfdb.DB
	scanner   *scan.Scanner
	callMnems []string
	err       error

	mode      viewMode
	spinner   spinner.Model
	functions list.Model
	listing   viewport.Model

	fn    elfdb.Func
	insts disasm.Stream
	sel   int
	top   int

	callers   []idb.Addr
	callerSel int
	target    idb.Addr

	status        string
	width, height int
}

func newBrowseModel(a *app, path string) browseModel {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(22)

	functions := list.New([]list.Item{}, funcDelegate{}, 80, 22)
	functions.SetShowStatusBar(false)
	functions.SetFilteringEnabled(true)
	functions.Title = "Functions"
	functions.Styles.Title = styles.Title.MarginLeft(2)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	return browseModel{
		app:       a,
		path:      path,
		spinner:   s,
		functions: functions,
		listing:   vp,
		width:     80,
		height:    24,
	}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(loadDBCmd(m.path), m.spinner.Tick)
}

// setDB installs a loaded database.
func (m *browseModel) setDB(db *elfdb.DB) {
	m.db = db
	sc := m.app.cfg.ScanConfig(db.CallMnemonics())
	m.scanner = scan.New(db, sc)
	m.callMnems = sc.CallMnemonics

	fns := db.Functions()
	items := make([]list.Item, len(fns))
	for n, fn := range fns {
		items[n] = funcItem{fn: fn}
	}
	m.functions.SetItems(items)
	m.functions.Title = fmt.Sprintf("Functions (%d)", len(fns))
}

// openAt shows the function containing va with va selected.
func (m *browseModel) openAt(va idb.Addr) bool {
	fn, ok := m.db.FuncAt(va)
	if !ok {
		m.status = scan.Phex(va) + " is not in a function"
		return false
	}
	m.fn = fn
	m.insts = m.db.Heads(fn.Start, fn.End)
	m.sel = sort.Search(len(m.insts), func(i int) bool { return m.insts[i].VA >= va })
	if m.sel >= len(m.insts) {
		m.sel = max(len(m.insts)-1, 0)
	}
	m.top = 0
	m.scrollTo(m.sel)
	m.mode = viewListing
	m.status = ""
	return true
}

func (m *browseModel) current() (idb.Addr, bool) {
	if m.sel < 0 || m.sel >= len(m.insts) {
		return 0, false
	}
	return m.insts[m.sel].VA, true
}

// moveCall selects the nearest call instruction in dir.
func (m *browseModel) moveCall(dir scan.Direction) {
	here, ok := m.current()
	if !ok {
		return
	}
	va, found, err := m.scanner.FindInstr(idb.Cursor{Here: here}, scan.Query{
		Direction: dir,
		Mnemonics: m.callMnems,
	})
	switch {
	case err != nil:
		m.status = err.Error()
	case !found:
		m.status = fmt.Sprintf("no call %s", dir)
	default:
		m.openAt(va)
	}
}

// showCallers lists the callers of the selected call's target, or of the
// current function when the selection is not a direct call.
func (m *browseModel) showCallers() {
	target := m.fn.Start
	if here, ok := m.current(); ok {
		if in, ok := m.db.Inst(here); ok && in.Flow == disasm.FlowCall && in.Target != 0 {
			target = in.Target
		}
	}

	// Resolve through the highlighted name the way a script would.
	cur := idb.Cursor{Highlighted: m.db.NameAt(target)}
	if cur.Highlighted == "" {
		cur.Here = target
	}
	m.target = target
	m.callers = m.scanner.CallSites(cur, 0)
	m.callerSel = 0
	m.mode = viewCallers
	slog.Debug("Browsing callers", "target", scan.Phex(target), "sites", len(m.callers))
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case dbLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setDB(msg.db)
		return m, nil

	case spinner.TickMsg:
		if m.db == nil && m.err == nil {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.functions.SetWidth(msg.Width)
		m.functions.SetHeight(msg.Height - 2)
		m.listing.SetWidth(msg.Width)
		m.listing.SetHeight(msg.Height - 2)
		m.scrollTo(m.sel)
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m.quit()
		}
		if m.db == nil {
			if key == "q" {
				return m.quit()
			}
			return m, nil
		}
		if m.mode == viewFunctions && m.functions.FilterState() == list.Filtering {
			break
		}
		if key == "q" {
			return m.quit()
		}
		if m.handleKey(key) {
			m.scrollTo(m.sel)
			return m, nil
		}
	}

	if m.mode == viewFunctions && m.db != nil {
		m.functions, cmd = m.functions.Update(msg)
	}
	return m, cmd
}

// handleKey applies a key outside list filtering and reports whether it
// was consumed.
func (m *browseModel) handleKey(key string) bool {
	switch m.mode {
	case viewFunctions:
		if key == "enter" {
			if it, ok := m.functions.SelectedItem().(funcItem); ok {
				m.openAt(it.fn.Start)
			}
			return true
		}
	case viewListing:
		switch key {
		case "up", "k":
			m.sel = max(m.sel-1, 0)
		case "down", "j":
			m.sel = min(m.sel+1, len(m.insts)-1)
		case "pgup":
			m.sel = max(m.sel-m.pageSize(), 0)
		case "pgdown":
			m.sel = min(m.sel+m.pageSize(), len(m.insts)-1)
		case "n":
			m.moveCall(scan.Forward)
		case "p":
			m.moveCall(scan.Backward)
		case "x":
			m.showCallers()
		case "enter":
			if here, ok := m.current(); ok {
				if in, _ := m.db.Inst(here); in.Flow != disasm.FlowNone && in.Target != 0 {
					m.openAt(in.Target)
				}
			}
		case "esc":
			m.mode = viewFunctions
		default:
			return false
		}
		return true
	case viewCallers:
		switch key {
		case "up", "k":
			m.callerSel = max(m.callerSel-1, 0)
		case "down", "j":
			m.callerSel = min(m.callerSel+1, max(len(m.callers)-1, 0))
		case "enter":
			if m.callerSel < len(m.callers) {
				m.openAt(m.callers[m.callerSel])
			}
		case "esc":
			m.mode = viewListing
		default:
			return false
		}
		return true
	}
	return false
}

func (m browseModel) quit() (tea.Model, tea.Cmd) {
	if m.db != nil {
		m.db.Close()
	}
	return m, tea.Quit
}

func (m *browseModel) pageSize() int { return max(m.height-3, 1) }

// scrollTo keeps the line at sel inside the visible page.
func (m *browseModel) scrollTo(sel int) {
	if sel < 0 {
		m.top = 0
		return
	}
	page := m.pageSize()
	if sel < m.top {
		m.top = sel
	}
	if sel >= m.top+page {
		m.top = sel - page + 1
	}
}

func (m *browseModel) renderListing() string {
	var b strings.Builder
	b.WriteString(styles.Function.Render(m.fn.Display()))
	b.WriteString(styles.Muted.Render(fmt.Sprintf("  %s-%s", scan.Phex(m.fn.Start), scan.Phex(m.fn.End))))
	end := min(m.top+m.pageSize(), len(m.insts))
	for n := m.top; n < end; n++ {
		line := listingText(m.db, &m.insts[n])
		b.WriteByte('\n')
		if n == m.sel {
			b.WriteString(styles.Selected.Render(line))
		} else {
			b.WriteString(m.app.colorLine(m.db.Info().Proc, line))
		}
	}
	return b.String()
}

func (m *browseModel) renderCallers() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("Callers of %s (%d)", location(m.db, m.target), len(m.callers))))
	if len(m.callers) == 0 {
		b.WriteString("\n" + styles.Muted.Render("no callers"))
	}
	for n, va := range m.callers {
		line := fmt.Sprintf("%-40s %s", location(m.db, va), m.app.listingLine(m.db, va))
		b.WriteByte('\n')
		if n == m.callerSel {
			b.WriteString(styles.Selected.Render(colorize.Strip(line)))
		} else {
			b.WriteString(line)
		}
	}
	return b.String()
}

func (m browseModel) View() string {
	if m.err != nil {
		return styles.Error.Render(m.err.Error()) + "\n\n q: quit\n"
	}
	if m.db == nil {
		return fmt.Sprintf("\n %s Loading %s...\n", m.spinner.View(), m.path)
	}

	var content, menu string
	switch m.mode {
	case viewListing:
		content = m.renderListing()
		menu = " ↑/↓: move • n/p: next/prev call • x: callers • Enter: follow • Esc: functions • Q: quit "
	case viewCallers:
		content = m.renderCallers()
		menu = " ↑/↓: move • Enter: go to caller • Esc: listing • Q: quit "
	default:
		content = m.functions.View()
		menu = " Enter: open • /: filter • Q: quit "
	}
	if m.mode != viewFunctions {
		m.listing.SetContent(content)
		m.listing.GotoTop()
		content = m.listing.View()
	}
	if m.status != "" {
		menu = " " + m.status + " •" + menu
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <file>",
		Short: "Browse functions, listings and callers interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program := tea.NewProgram(
				newBrowseModel(a, args[0]),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := program.Run(); err != nil {
				slog.Error("TUI run error", "error", err)
				return fmt.Errorf("TUI error: %v", err)
			}
			return nil
		},
	}
}
