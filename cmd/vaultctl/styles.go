package main

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFA500")).
		Bold(true).
		Padding(1, 0)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Width(22)

	valueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EEEEEE"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#32CD32")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF6347")).
		Bold(true)
)

func row(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmtValue(value)))
}
