package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleSpeaker = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)

	styleSpeech = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleBanner = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindSpeech
	kindChoice
	kindPicked
	kindBanner
	kindSystem
	kindError
	kindTrace
)

// errorPrefixes are the openings of the interpreter's refusal messages.
var errorPrefixes = []string{
	"You aren't talking",
	"You're already talking",
	"They have nothing",
	"There is no",
	"There is nothing",
	"Pick a response",
	"I don't understand",
	"Talk to whom",
	"Who do you mean",
}

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "--- ") && strings.HasSuffix(line, " ---"):
		return kindBanner
	case strings.HasPrefix(line, "> "):
		return kindPicked
	case isChoice(line):
		return kindChoice
	case speakerEnd(line) > 0:
		return kindSpeech
	}
	for _, p := range errorPrefixes {
		if strings.HasPrefix(line, p) {
			return kindError
		}
	}
	return kindNarration
}

// isChoice matches a numbered response such as "  2. Got any work?".
func isChoice(line string) bool {
	rest, ok := strings.CutPrefix(line, "  ")
	if !ok {
		return false
	}
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	return digits > 0 && strings.HasPrefix(rest[digits:], ". ")
}

// speakerEnd returns the index of the colon in `Speaker: "text"`, or -1.
func speakerEnd(line string) int {
	i := strings.Index(line, `: "`)
	if i <= 0 || !strings.HasSuffix(line, `"`) {
		return -1
	}
	return i
}

// styledSpeech renders `Speaker: "text"` with the speaker in bold.
func styledSpeech(line string) string {
	i := speakerEnd(line)
	if i < 0 {
		return styleSpeech.Render(line)
	}
	return styleSpeaker.Render(line[:i+1]) + styleSpeech.Render(line[i+1:])
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindSpeech:
		return styledSpeech(line)
	case kindChoice:
		return styleChoice.Render(line)
	case kindPicked:
		return stylePlayerInput.Render(line)
	case kindBanner:
		return styleBanner.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarration.Render(line)
	}
}
