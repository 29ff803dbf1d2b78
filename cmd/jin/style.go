package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// styles holds the color palette used by commands that print layered
// status output. Built once at startup against the detected terminal
// profile, falling back to plain text when color is disabled or the
// output isn't a terminal.
var styles = newStyles()

type styleSet struct {
	conflict lipgloss.Style
	applied  lipgloss.Style
	skipped  lipgloss.Style
	layer    lipgloss.Style
}

func newStyles() styleSet {
	profile := termenv.ColorProfile()
	if profile == termenv.Ascii {
		return styleSet{}
	}
	return styleSet{
		conflict: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		applied:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		skipped:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		layer:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
	}
}

// colorize renders s in the given style when cfg.Color is enabled, and
// returns it unstyled otherwise.
func colorize(enabled bool, style lipgloss.Style, s string) string {
	if !enabled {
		return s
	}
	return style.Render(s)
}
