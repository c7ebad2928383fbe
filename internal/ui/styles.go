// Package ui renders terminal output for the c5t CLI.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors, adapted to light and dark terminals.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#86d993"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#b26a00", Dark: "#ffd173"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#f28779"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#73d0ff"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#616161", Dark: "#8a9199"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	LabelStyle  = lipgloss.NewStyle().Width(16)
)

// Init selects the color profile. Color is disabled when noColor is set,
// when NO_COLOR is present, or when stdout is not a terminal.
func Init(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !IsTerminal(os.Stdout) {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }

// KeyValue renders "label value" with labels padded to a common width.
func KeyValue(label, value string) string {
	return LabelStyle.Render(label) + value
}
