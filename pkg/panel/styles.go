package panel

import "github.com/charmbracelet/lipgloss"

// Color palette shared by every panel view.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // primary accent
	coralPink   = lipgloss.Color("#FFCCCB") // secondary accent
	mintGreen   = lipgloss.Color("#A8E6CF") // success
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // primary text
	errorRed    = lipgloss.Color("203")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Bold(true)

	selectedTitleStyle = lipgloss.NewStyle().
				Foreground(coralPink).
				Bold(true)

	descriptionStyle = lipgloss.NewStyle().
				Foreground(mutedGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedGray).
			Padding(0, 1)

	selectedCardStyle = cardStyle.
				BorderForeground(salmonPink)

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)
)
