package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/AndresSepulveda/gpu-ocean/internal/metrics"
)

// Series names accepted by PlotSeries.
var seriesNames = []string{"mass", "energy", "speed", "cfl"}

func SeriesNames() []string { return append([]string(nil), seriesNames...) }

// Series extracts one named column from stored samples.
func Series(samples []metrics.Sample, name string) ([]float64, error) {
	pick := map[string]func(metrics.Sample) float64{
		"mass":   func(s metrics.Sample) float64 { return s.Mass },
		"energy": func(s metrics.Sample) float64 { return s.Energy },
		"speed":  func(s metrics.Sample) float64 { return s.MaxSpeed },
		"cfl":    func(s metrics.Sample) float64 { return s.MaxCFL },
	}[name]
	if pick == nil {
		return nil, fmt.Errorf("unknown series %q (want one of %s)", name, strings.Join(seriesNames, ", "))
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = pick(s)
	}
	return out, nil
}

// PlotSeries charts a named series over the outputs of a run.
func PlotSeries(samples []metrics.Sample, name string, width, height int) (string, error) {
	data, err := Series(samples, name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no samples to plot")
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}
	caption := name
	if len(samples) > 0 {
		caption = fmt.Sprintf("%s, t = %.0f..%.0f s", name, samples[0].T, samples[len(samples)-1].T)
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	), nil
}

// Summary renders a run's scalar metrics in a bordered panel.
func Summary(title string, values map[string]float64) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(headerStyle.Render(title) + "\n")
	for _, k := range keys {
		v := valueStyle.Render(fmt.Sprintf("%.6g", values[k]))
		if (k == "max_cfl" && values[k] > 1) || (k == "stability" && values[k] < 1) {
			v = warnStyle.Render(fmt.Sprintf("%.6g", values[k]))
		}
		b.WriteString(labelStyle.Render(k) + v + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func formatRange(lo, hi float64) string {
	return fmt.Sprintf("%.3g .. %.3g", lo, hi)
}

// sparkline is a one-line trend used in the live view.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width < 1 {
		return ""
	}
	values = values[max(0, len(values)-width):]
	bars := []rune("▁▂▃▄▅▆▇█")
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	var b strings.Builder
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteRune('!')
			continue
		}
		b.WriteRune(bars[int((v-lo)/span*float64(len(bars)-1))])
	}
	return lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Render(b.String())
}
