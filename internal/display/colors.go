package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color is a role in the output; the theme decides how it looks
type Color int

const (
	ColorPlain Color = iota
	ColorInfo
	ColorSuccess
	ColorWarning
	ColorError
	ColorMuted
	ColorHighlight
	// ColorComment styles the banner block
	ColorComment
	// ColorErrorBlock styles fatal error blocks
	ColorErrorBlock
)

// ColorTheme maps each role to terminal attributes
type ColorTheme map[Color][]color.Attribute

// ColorMode controls whether escape sequences are written
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// DefaultColorTheme is tuned for dark terminals
func DefaultColorTheme() ColorTheme {
	return ColorTheme{
		ColorInfo:       {color.FgGreen},
		ColorSuccess:    {color.FgHiGreen},
		ColorWarning:    {color.FgYellow},
		ColorError:      {color.FgHiRed},
		ColorMuted:      {color.FgHiBlack},
		ColorHighlight:  {color.FgHiBlue, color.Bold},
		ColorComment:    {color.FgBlack, color.BgYellow},
		ColorErrorBlock: {color.FgHiWhite, color.BgRed},
	}
}

// LightColorTheme avoids bright foregrounds that wash out on light backgrounds
func LightColorTheme() ColorTheme {
	return ColorTheme{
		ColorInfo:       {color.FgGreen},
		ColorSuccess:    {color.FgGreen},
		ColorWarning:    {color.FgYellow},
		ColorError:      {color.FgRed},
		ColorMuted:      {color.FgMagenta},
		ColorHighlight:  {color.FgBlue, color.Bold},
		ColorComment:    {color.FgBlack, color.BgYellow},
		ColorErrorBlock: {color.FgWhite, color.BgRed},
	}
}

// GetThemeByName returns the named theme, falling back to the default one
func GetThemeByName(name string) ColorTheme {
	switch strings.ToLower(name) {
	case "light":
		return LightColorTheme()
	default:
		return DefaultColorTheme()
	}
}

// ColorSystem applies a theme when the destination supports it
type ColorSystem struct {
	enabled bool
	colors  map[Color]*color.Color
}

// NewColorSystem builds the color table for w. In auto mode colors are
// used only when w is a color-capable terminal.
func NewColorSystem(w io.Writer, theme ColorTheme, mode ColorMode) *ColorSystem {
	cs := &ColorSystem{colors: make(map[Color]*color.Color, len(theme))}

	switch mode {
	case ColorAlways:
		cs.enabled = true
	case ColorNever:
		cs.enabled = false
	default:
		cs.enabled = detectColorSupport(w)
	}

	for role, attrs := range theme {
		c := color.New(attrs...)
		// fatih/color consults a global switch unless told otherwise
		if cs.enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		cs.colors[role] = c
	}
	return cs
}

func detectColorSupport(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}

	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return termenv.ColorProfile() != termenv.Ascii
}

// Enabled reports whether escape sequences are written
func (cs *ColorSystem) Enabled() bool {
	return cs.enabled
}

// Sprint returns text in the given role
func (cs *ColorSystem) Sprint(role Color, text string) string {
	c, ok := cs.colors[role]
	if !cs.enabled || !ok {
		return text
	}
	return c.Sprint(text)
}

// Sprintf formats and colors in one step
func (cs *ColorSystem) Sprintf(role Color, format string, args ...interface{}) string {
	return cs.Sprint(role, fmt.Sprintf(format, args...))
}
