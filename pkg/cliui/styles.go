// Package cliui holds the terminal presentation shared by ragstream
// commands: styles, the progress step shown while an answer streams in,
// and markdown rendering of finished answers.
package cliui

import "charm.land/lipgloss/v2"

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// Mark returns a ✓ for nil errors or ✗ otherwise.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}
