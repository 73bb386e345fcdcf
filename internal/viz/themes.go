package viz

import "github.com/charmbracelet/lipgloss"

// Theme is a diverging colour ramp plus UI accents. Low, Mid and High are
// the colours for the bottom, centre and top of a field's range.
type Theme struct {
	Name   string
	Low    lipgloss.Color
	Mid    lipgloss.Color
	High   lipgloss.Color
	Accent lipgloss.Color
	Muted  lipgloss.Color
}

var (
	ThemeOcean = Theme{
		Name:   "ocean",
		Low:    lipgloss.Color("#08306b"),
		Mid:    lipgloss.Color("#c6dbef"),
		High:   lipgloss.Color("#ffd700"),
		Accent: lipgloss.Color("#00a8cc"),
		Muted:  lipgloss.Color("#4488aa"),
	}

	ThemeThermal = Theme{
		Name:   "thermal",
		Low:    lipgloss.Color("#2166ac"),
		Mid:    lipgloss.Color("#f7f7f7"),
		High:   lipgloss.Color("#b2182b"),
		Accent: lipgloss.Color("#ff6b6b"),
		Muted:  lipgloss.Color("#8b6b8c"),
	}

	ThemeMinimal = Theme{
		Name:   "minimal",
		Low:    lipgloss.Color("#000000"),
		Mid:    lipgloss.Color("#808080"),
		High:   lipgloss.Color("#ffffff"),
		Accent: lipgloss.Color("#0088ff"),
		Muted:  lipgloss.Color("#888888"),
	}

	CurrentTheme = ThemeOcean

	Themes = []Theme{ThemeOcean, ThemeThermal, ThemeMinimal}
)

func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeOcean
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = ThemeOcean
}

// ramp maps v in [0, 1] onto the theme's Low-Mid-High ramp.
func (t Theme) ramp(v float64) lipgloss.Color {
	switch {
	case v <= 0:
		return t.Low
	case v >= 1:
		return t.High
	case v < 0.5:
		return lerpColor(t.Low, t.Mid, 2*v)
	default:
		return lerpColor(t.Mid, t.High, 2*v-1)
	}
}

func lerpColor(a, b lipgloss.Color, f float64) lipgloss.Color {
	ar, ag, ab := parseHex(string(a))
	br, bg, bb := parseHex(string(b))
	mix := func(x, y int) int { return int(float64(x) + f*float64(y-x) + 0.5) }
	return lipgloss.Color(hexColor(mix(ar, br), mix(ag, bg), mix(ab, bb)))
}

func parseHex(hex string) (r, g, b int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 255, 255, 255
	}
	return hexByteValue(hex[1:3]), hexByteValue(hex[3:5]), hexByteValue(hex[5:7])
}

func hexByteValue(s string) int {
	v := 0
	for _, c := range s {
		v *= 16
		switch {
		case c >= '0' && c <= '9':
			v += int(c - '0')
		case c >= 'a' && c <= 'f':
			v += int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v += int(c-'A') + 10
		}
	}
	return v
}

func hexColor(r, g, b int) string {
	const digits = "0123456789abcdef"
	clamp := func(v int) int { return max(0, min(255, v)) }
	out := []byte{'#', 0, 0, 0, 0, 0, 0}
	for k, v := range []int{clamp(r), clamp(g), clamp(b)} {
		out[1+2*k] = digits[v/16]
		out[2+2*k] = digits[v%16]
	}
	return string(out)
}
