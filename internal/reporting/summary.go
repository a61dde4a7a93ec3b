package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"stackctl/internal/color"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Endpoint is one resolved value shown in the summary. Values are printed
// as reported by the resource graph.
type Endpoint struct {
	Label string
	Value string
}

// StageLine is one row of the stage table.
type StageLine struct {
	Name     string
	Status   Status
	Message  string
	Duration time.Duration
}

// Summary is everything the final report shows.
type Summary struct {
	RunID       string
	Pipeline    string
	Environment string
	Stages      []StageLine
	Endpoints   []Endpoint
	Warnings    []string
	Failed      bool
}

// StatusIcon returns the icon and style for a status.
func StatusIcon(s Status) (string, lipgloss.Style) {
	switch s {
	case StatusSuccess:
		return "✔", color.SuccessStyle
	case StatusWarning:
		return "▲", color.WarningStyle
	case StatusFatal:
		return "✘", color.ErrorStyle
	case StatusSkipped:
		return "–", color.MutedStyle
	default:
		return "…", color.InfoStyle
	}
}

// RenderSummary writes the styled summary.
func RenderSummary(w io.Writer, s Summary) {
	outcome := color.SuccessStyle.Render("succeeded")
	if s.Failed {
		outcome = color.ErrorStyle.Render("failed")
	} else if len(s.Warnings) > 0 {
		outcome = color.WarningStyle.Render("succeeded with warnings")
	}
	fmt.Fprintf(w, "\n%s %s\n", color.TitleStyle.Render(fmt.Sprintf("%s %s", s.Pipeline, s.Environment)), outcome)
	fmt.Fprintln(w, color.MutedStyle.Render("run "+s.RunID))

	if len(s.Stages) > 0 {
		fmt.Fprintln(w)
		width := 0
		for _, st := range s.Stages {
			width = max(width, runewidth.StringWidth(st.Name))
		}
		for _, st := range s.Stages {
			icon, style := StatusIcon(st.Status)
			line := fmt.Sprintf("  %s %s", style.Render(icon), runewidth.FillRight(st.Name, width))
			if st.Message != "" {
				line += "  " + st.Message
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(s.Endpoints) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.TitleStyle.Render("Endpoints"))
		writeEndpoints(w, s.Endpoints, func(label string) string { return color.LabelStyle.Render(label) })
	}

	if len(s.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.WarningStyle.Render("Warnings"))
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
}

// PlainText renders the endpoints without styling, for the clipboard.
func (s Summary) PlainText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", s.Environment, s.RunID)
	writeEndpoints(&b, s.Endpoints, func(label string) string { return label })
	return b.String()
}

func writeEndpoints(w io.Writer, endpoints []Endpoint, style func(string) string) {
	width := 0
	for _, e := range endpoints {
		width = max(width, runewidth.StringWidth(e.Label))
	}
	for _, e := range endpoints {
		value := e.Value
		if value == "" {
			value = "-"
		}
		padded := runewidth.FillRight(e.Label+":", width+1)
		fmt.Fprintf(w, "  %s %s\n", style(padded), value)
	}
}
