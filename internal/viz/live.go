package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AndresSepulveda/gpu-ocean/internal/experiment"
	"github.com/AndresSepulveda/gpu-ocean/internal/metrics"
)

const (
	historyCapacity = 600
	frameRate       = time.Second / 20
)

var fieldNames = []string{"elevation", "speed", "depth"}

type TickMsg time.Time

// LiveModel steps an experiment by one output interval per frame and
// draws the selected field.
type LiveModel struct {
	exp      *experiment.Experiment
	interval float64
	until    float64
	running  bool
	field    int

	snap   *metrics.Snapshot
	mass   []float64
	energy []float64
	err    error

	width, height int
}

// NewLiveModel records the initial output of an already set up experiment.
// The run pauses once the clock reaches until; zero means never.
func NewLiveModel(exp *experiment.Experiment, interval, until float64) LiveModel {
	m := LiveModel{
		exp:      exp,
		interval: interval,
		until:    until,
		running:  true,
		width:    64,
		height:   24,
	}
	m.record(exp.Advance(0))
	return m
}

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m LiveModel) Init() tea.Cmd { return tick() }

func (m *LiveModel) record(snap *metrics.Snapshot, err error) {
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.snap = snap
	m.mass = appendCapped(m.mass, metrics.TotalMass(snap))
	m.energy = appendCapped(m.energy, metrics.TotalEnergy(snap))
	if m.until > 0 && snap.T >= m.until {
		m.running = false
	}
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil && (m.until <= 0 || m.snap == nil || m.snap.T < m.until) {
				m.running = !m.running
			}
		case "v":
			m.field = (m.field + 1) % len(fieldNames)
		case "+", "=":
			m.interval *= 2
		case "-", "_":
			m.interval = math.Max(m.interval/2, 1e-3)
		case "t":
			NextTheme()
		}
	case tea.WindowSizeMsg:
		m.width = max(16, msg.Width-40)
		m.height = max(8, msg.Height-6)
	case TickMsg:
		if m.running {
			step := m.interval
			if m.until > 0 && m.snap != nil {
				step = math.Min(step, m.until-m.snap.T)
			}
			m.record(m.exp.Advance(step))
		}
		return m, tick()
	}
	return m, nil
}

// Field returns the currently displayed quantity of the latest output.
func (m LiveModel) Field() [][]float32 {
	if m.snap == nil {
		return nil
	}
	switch fieldNames[m.field] {
	case "speed":
		return speedField(m.snap)
	case "depth":
		return m.snap.H
	default:
		return m.snap.Eta
	}
}

func speedField(s *metrics.Snapshot) [][]float32 {
	out := make([][]float32, len(s.H))
	for j := range s.H {
		out[j] = make([]float32, len(s.H[j]))
		for i, h := range s.H[j] {
			if h > 1e-5 {
				out[j][i] = float32(math.Hypot(float64(s.HU[j][i]), float64(s.HV[j][i])) / float64(h))
			}
		}
	}
	return out
}

func (m LiveModel) View() string {
	field := m.Field()
	lo, hi := Range(field)
	mapView := Heatmap(field, m.width, m.height, lo, hi)

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.exp.Config().Name)) + "\n")
	switch {
	case m.err != nil:
		s.WriteString(warnStyle.Render("STOPPED") + "\n")
	case m.running:
		s.WriteString(statusRunning.Render("RUNNING") + "\n")
	default:
		s.WriteString(statusPaused.Render("PAUSED") + "\n")
	}
	if m.snap != nil {
		speed, cfl := metrics.Speeds(m.snap)
		s.WriteString(row("Time", fmt.Sprintf("%.1f s", m.snap.T)))
		s.WriteString(row("Field", fieldNames[m.field]))
		s.WriteString(row("Interval", fmt.Sprintf("%.3g s", m.interval)))
		s.WriteString(row("Max speed", fmt.Sprintf("%.3g m/s", speed)))
		cflText := fmt.Sprintf("%.3f", cfl)
		if cfl > 1 {
			cflText = warnStyle.Render(cflText)
		}
		s.WriteString(row("Max CFL", cflText))
	}
	s.WriteString("\n" + labelStyle.Render("Mass") + sparkline(m.mass, 20) + "\n")
	s.WriteString(labelStyle.Render("Energy") + sparkline(m.energy, 20) + "\n\n")
	s.WriteString(ColorBar(20, lo, hi) + "\n")
	if m.snap != nil && len(m.snap.Eta) > 0 {
		mid := len(m.snap.Eta) / 2
		s.WriteString("\n" + graphStyle.Render(Profile(20, 4, m.snap.Eta[mid], m.snap.Bm[mid])))
	}
	if m.err != nil {
		s.WriteString("\n" + warnStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("SP:Pause V:Field +/-:Interval T:Theme Q:Quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, mapView, panelStyle.Render(s.String()))
}
