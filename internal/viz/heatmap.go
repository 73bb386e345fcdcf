package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Range returns the smallest and largest finite value of a field.
func Range(field [][]float32) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range field {
		for _, v := range r {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			lo, hi = math.Min(lo, f), math.Max(hi, f)
		}
	}
	return lo, hi
}

// Heatmap shades field into a width x height block of coloured cells using
// the current theme. North is at the top. Values are scaled to [lo, hi];
// non-finite values are drawn as '!'.
func Heatmap(field [][]float32, width, height int, lo, hi float64) string {
	if len(field) == 0 || len(field[0]) == 0 || width < 1 || height < 1 {
		return ""
	}
	ny, nx := len(field), len(field[0])
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	var b strings.Builder
	for r := 0; r < height; r++ {
		j := ny - 1 - r*ny/height
		for c := 0; c < width; c++ {
			i := c * nx / width
			v := float64(field[j][i])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				b.WriteString(warnStyle.Render("!"))
				continue
			}
			color := CurrentTheme.ramp((v - lo) / span)
			b.WriteString(lipgloss.NewStyle().Background(color).Render(" "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ColorBar renders the legend for a heatmap range.
func ColorBar(width int, lo, hi float64) string {
	var b strings.Builder
	for c := 0; c < width; c++ {
		f := float64(c) / float64(max(width-1, 1))
		b.WriteString(lipgloss.NewStyle().Background(CurrentTheme.ramp(f)).Render(" "))
	}
	return b.String() + "\n" + valueStyle.Render(formatRange(lo, hi))
}
