package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color identifies a semantic color role in the phase trace
type Color string

const (
	ColorReset   Color = "reset"
	ColorRed     Color = "red"
	ColorGreen   Color = "green"
	ColorYellow  Color = "yellow"
	ColorBlue    Color = "blue"
	ColorMagenta Color = "magenta"
	ColorCyan    Color = "cyan"
	ColorWhite   Color = "white"
	ColorGray    Color = "gray"
)

// ColorTheme maps trace roles to colors
type ColorTheme struct {
	Name    string
	Phase   Color
	Success Color
	Failure Color
	Warning Color
	Detail  Color
}

// Predefined color themes
var (
	ThemeDark = ColorTheme{
		Name:    "dark",
		Phase:   ColorCyan,
		Success: ColorGreen,
		Failure: ColorRed,
		Warning: ColorYellow,
		Detail:  ColorGray,
	}

	ThemeLight = ColorTheme{
		Name:    "light",
		Phase:   ColorBlue,
		Success: ColorGreen,
		Failure: ColorRed,
		Warning: ColorMagenta,
		Detail:  ColorBlue,
	}

	ThemeHighContrast = ColorTheme{
		Name:    "high-contrast",
		Phase:   ColorWhite,
		Success: ColorWhite,
		Failure: ColorRed,
		Warning: ColorYellow,
		Detail:  ColorWhite,
	}
)

// ThemeByName resolves a theme name from configuration, falling back to dark.
// "auto" picks light or dark from the terminal background.
func ThemeByName(name string) ColorTheme {
	switch name {
	case "light":
		return ThemeLight
	case "high-contrast":
		return ThemeHighContrast
	case "auto":
		if termenv.HasDarkBackground() {
			return ThemeDark
		}
		return ThemeLight
	default:
		return ThemeDark
	}
}

// ColorSystem handles color application and terminal detection
type ColorSystem interface {
	Colorize(text string, color Color) string
	Sprintf(color Color, format string, args ...interface{}) string
	IsColorSupported() bool
	GetTheme() ColorTheme
}

// colorSystem implements ColorSystem interface
type colorSystem struct {
	theme          ColorTheme
	colorSupported bool
	profile        termenv.Profile
	colorMap       map[Color]*color.Color
}

// NewColorSystem creates a new color system with terminal detection
func NewColorSystem(theme ColorTheme, enabled bool) ColorSystem {
	cs := &colorSystem{
		theme:          theme,
		colorSupported: enabled && detectColorSupport(),
		profile:        termenv.ColorProfile(),
	}

	cs.initializeColorMap()
	return cs
}

// detectColorSupport checks if the terminal supports colors
func detectColorSupport() bool {
	// Check if output is a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}

	// Check environment variables that disable color
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	// Check if FORCE_COLOR is set
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	return true
}

// initializeColorMap sets up the mapping between Color constants and fatih/color colors
func (cs *colorSystem) initializeColorMap() {
	cs.colorMap = map[Color]*color.Color{
		ColorReset:   color.New(color.Reset),
		ColorRed:     color.New(color.FgRed),
		ColorGreen:   color.New(color.FgGreen),
		ColorYellow:  color.New(color.FgYellow),
		ColorBlue:    color.New(color.FgBlue),
		ColorMagenta: color.New(color.FgMagenta),
		ColorCyan:    color.New(color.FgCyan),
		ColorWhite:   color.New(color.FgHiWhite),
		ColorGray:    color.New(color.FgHiBlack),
	}
}

// Colorize applies color to text if color is supported
func (cs *colorSystem) Colorize(text string, clr Color) string {
	if !cs.colorSupported {
		return text
	}

	if colorFunc, exists := cs.colorMap[clr]; exists {
		return colorFunc.Sprint(text)
	}

	return text
}

// Sprintf formats text with color using format string
func (cs *colorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	text := fmt.Sprintf(format, args...)
	return cs.Colorize(text, clr)
}

// IsColorSupported returns whether colors are supported
func (cs *colorSystem) IsColorSupported() bool {
	return cs.colorSupported
}

// GetTheme returns the current color theme
func (cs *colorSystem) GetTheme() ColorTheme {
	return cs.theme
}
