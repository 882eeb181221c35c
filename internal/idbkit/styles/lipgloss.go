package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
)

var (
	Title    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(charmtone.Malibu.Hex()))
	Address  = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Squid.Hex()))
	Function = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(charmtone.Guac.Hex()))
	Selected = lipgloss.NewStyle().Background(lipgloss.Color(charmtone.Charcoal.Hex()))
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Zinc.Hex()))
	Error    = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Cheeky.Hex()))
)
