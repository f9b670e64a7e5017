package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
)

var (
	colorPrimary = lipgloss.Color("#2563EB")
	colorGreen   = lipgloss.Color("#10B981")
	colorRed     = lipgloss.Color("#EF4444")
	colorYellow  = lipgloss.Color("#F59E0B")
	colorDim     = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	phaseStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	readyStyle   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	keyStyle = lipgloss.NewStyle().Foreground(colorDim).Width(16)

	successBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGreen).
			Padding(0, 1)

	noticeBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorYellow).
			Foreground(colorYellow).
			Padding(0, 1)
)

// statusDot colours an instance or deployment status.
func statusDot(status string) string {
	switch status {
	case servicemgmt.InstanceReady, servicemgmt.DeploymentRunning:
		return readyStyle.Render("●")
	case servicemgmt.InstanceStopped, servicemgmt.DeploymentSuspended, servicemgmt.InstanceUnknown:
		return failedStyle.Render("●")
	default:
		return warningStyle.Render("●")
	}
}

func keyValue(key, value string) string {
	return keyStyle.Render(key) + value
}
