package color

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Profile is the semantic palette.
type Profile struct {
	Primary lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
	Info    lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
}

var defaultProfile = Profile{
	Primary: lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"},
	Success: lipgloss.AdaptiveColor{Light: "#007A3D", Dark: "#5FD787"},
	Warning: lipgloss.AdaptiveColor{Light: "#AF5F00", Dark: "#FFD75F"},
	Error:   lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"},
	Info:    lipgloss.AdaptiveColor{Light: "#303030", Dark: "#D0D0D0"},
	Muted:   lipgloss.AdaptiveColor{Light: "#808080", Dark: "#8A8A8A"},
}

var (
	mu sync.RWMutex

	TitleStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	WarningStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	InfoStyle    lipgloss.Style
	MutedStyle   lipgloss.Style
	LabelStyle   lipgloss.Style
)

func init() {
	buildStyles()
}

// Initialize sets the background mode and rebuilds the styles.
func Initialize(isDarkMode bool) {
	mu.Lock()
	defer mu.Unlock()
	lipgloss.SetHasDarkBackground(isDarkMode)
	buildStyles()
}

// Setup configures color output for the given stream. NO_COLOR or a
// non-terminal output disables colors; STACKCTL_THEME forces dark or light.
func Setup(f *os.File) {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || f == nil || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	switch strings.ToLower(os.Getenv("STACKCTL_THEME")) {
	case "dark":
		Initialize(true)
	case "light":
		Initialize(false)
	default:
		Initialize(lipgloss.HasDarkBackground())
	}
}

func buildStyles() {
	p := defaultProfile
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	SuccessStyle = lipgloss.NewStyle().Foreground(p.Success)
	WarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
	ErrorStyle = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	InfoStyle = lipgloss.NewStyle().Foreground(p.Info)
	MutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	LabelStyle = lipgloss.NewStyle().Bold(true)
}
