package viz

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/config"
	"github.com/AndresSepulveda/gpu-ocean/internal/experiment"
	"github.com/AndresSepulveda/gpu-ocean/internal/metrics"
)

func liveModel(t *testing.T) (LiveModel, *experiment.Experiment) {
	t.Helper()
	cfg := config.GetPreset("bump")
	cfg.Grid.Nx, cfg.Grid.Ny = 12, 10
	e := experiment.New(cfg, experiment.WithBackend(compute.NewCPUBackend()))
	if err := e.Setup(metrics.Default()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return NewLiveModel(e, 4, 8), e
}

func update(t *testing.T, m LiveModel, msg tea.Msg) (LiveModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	lm, ok := next.(LiveModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return lm, cmd
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestLiveModelTicks(t *testing.T) {
	m, _ := liveModel(t)
	if m.snap == nil || m.snap.T != 0 || len(m.mass) != 1 {
		t.Fatalf("initial output not recorded")
	}

	wantT := []float64{4, 8, 8}
	for k, want := range wantT {
		var cmd tea.Cmd
		m, cmd = update(t, m, TickMsg(time.Now()))
		if cmd == nil {
			t.Fatal("tick should schedule the next frame")
		}
		if m.snap.T != want {
			t.Errorf("tick %d: t = %v, want %v", k, m.snap.T, want)
		}
	}
	if m.running {
		t.Error("model should pause at the end time")
	}
	if len(m.mass) != 3 || len(m.energy) != 3 {
		t.Errorf("history lengths %d/%d, want 3", len(m.mass), len(m.energy))
	}
}

func TestLiveModelKeys(t *testing.T) {
	m, _ := liveModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if m.running {
		t.Error("space should pause")
	}
	m, _ = update(t, m, TickMsg(time.Now()))
	if m.snap.T != 0 {
		t.Errorf("paused model advanced to t=%v", m.snap.T)
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view should show paused state")
	}

	for k, want := range []string{"speed", "depth", "elevation"} {
		m, _ = update(t, m, key('v'))
		if fieldNames[m.field] != want {
			t.Errorf("press %d: field %s, want %s", k, fieldNames[m.field], want)
		}
	}

	m, _ = update(t, m, key('+'))
	if m.interval != 8 {
		t.Errorf("interval after + = %v", m.interval)
	}
	m, _ = update(t, m, key('-'))
	m, _ = update(t, m, key('-'))
	if m.interval != 2 {
		t.Errorf("interval after - - = %v", m.interval)
	}

	saved := CurrentTheme
	defer func() { CurrentTheme = saved }()
	m, _ = update(t, m, key('t'))
	if CurrentTheme.Name == saved.Name {
		t.Error("t should change theme")
	}

	_, cmd := update(t, m, key('q'))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestLiveModelFields(t *testing.T) {
	m, _ := liveModel(t)
	ny, nx := len(m.snap.H), len(m.snap.H[0])
	for range fieldNames {
		f := m.Field()
		if len(f) != ny || len(f[0]) != nx {
			t.Errorf("%s field is %dx%d, want %dx%d", fieldNames[m.field], len(f[0]), len(f), nx, ny)
		}
		m, _ = update(t, m, key('v'))
	}
}

func TestLiveModelStopsOnError(t *testing.T) {
	m, e := liveModel(t)
	e.Close()

	m, _ = update(t, m, TickMsg(time.Now()))
	if m.err == nil || m.running {
		t.Fatal("model should stop after a failed step")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if m.running {
		t.Error("stopped model must not resume")
	}
	if !strings.Contains(m.View(), "STOPPED") {
		t.Error("view should show the stopped state")
	}
}
