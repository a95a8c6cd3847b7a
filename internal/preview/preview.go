// Package preview is a terminal live preview of a scene: the same transition
// controller the exporter seeks through, driven instead by real ticks, with
// the effective objects projected onto a character canvas.
package preview

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ivlev/stepmotion/internal/scene"
	"github.com/ivlev/stepmotion/internal/state"
	"github.com/ivlev/stepmotion/internal/transform"
	"github.com/ivlev/stepmotion/internal/transition"
)

const (
	canvasW      = 72
	canvasH      = 24
	tickInterval = 33 * time.Millisecond
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type tickMsg time.Time

type model struct {
	sc       *scene.Scene
	ctrl     *transition.Controller
	lastTick time.Time
	lastStep transition.StepEvent
	problems []scene.Problem
}

// Run shows the scene until the user quits.
func Run(sc *scene.Scene) error {
	ctrl := transition.New()
	problems, err := ctrl.Load(sc)
	if err != nil {
		return err
	}

	m := &model{sc: sc, ctrl: ctrl, problems: problems}
	ctrl.OnStepChanged(func(ev transition.StepEvent) { m.lastStep = ev })

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *model) Init() tea.Cmd {
	m.lastTick = time.Now()
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		now := time.Time(msg)
		dt := now.Sub(m.lastTick)
		m.lastTick = now
		m.ctrl.Update(float64(dt.Milliseconds()))
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "n", " ":
			m.goTo(m.ctrl.StepIndex()+1, m.sc.StepDurationMs(m.ctrl.StepIndex()+1))
		case "left", "p":
			m.goTo(m.ctrl.StepIndex()-1, m.sc.StepDurationMs(m.ctrl.StepIndex()-1))
		case "home", "0":
			m.goTo(0, 0)
		case "end":
			m.goTo(len(m.sc.Steps)-1, 0)
		}
	}
	return m, nil
}

func (m *model) goTo(target int, durationMs float64) {
	// Out-of-range navigation is simply ignored; the controller reports it
	// and keeps its state.
	_ = m.ctrl.GotoStep(target, durationMs, nil)
}

func (m *model) View() string {
	var b strings.Builder

	phase := "idle"
	if m.ctrl.Phase() == transition.Animating {
		phase = "animating"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("stepmotion · %s", m.sc.ID)))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf(
		"step %d/%d (%s) · %s · ←/→ navigate · q quit",
		m.ctrl.StepIndex()+1, len(m.sc.Steps), m.lastStep.StepID, phase,
	)))
	b.WriteString("\n")
	b.WriteString(frameStyle.Render(m.renderCanvas()))
	if len(m.problems) > 0 {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(fmt.Sprintf("[!] %d definition problem(s); run inspect for details", len(m.problems))))
	}
	b.WriteString("\n")
	return b.String()
}

// renderCanvas projects the current effective objects onto a rune grid:
// boxes as outlines, connectors as Bresenham lines, text as itself.
func (m *model) renderCanvas() string {
	grid := make([][]rune, canvasH)
	for y := range grid {
		grid[y] = make([]rune, canvasW)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	objects := m.ctrl.Current()
	sm := make(state.Map, len(objects))
	for _, o := range objects {
		sm[o.ID] = o
	}

	for _, o := range objects {
		if o.Props.FloatOr("opacity", 1) < 0.05 {
			continue
		}
		switch o.Type {
		case "connector":
			m.drawConnector(grid, sm, o)
		case "text", "label":
			m.drawLabel(grid, sm, o, o.Props.StrOr("text", o.Props.StrOr("content", "")))
		default:
			m.drawBox(grid, sm, o)
		}
	}

	rows := make([]string, canvasH)
	for y, row := range grid {
		rows[y] = string(row)
	}
	return strings.Join(rows, "\n")
}

func (m *model) drawBox(grid [][]rune, sm state.Map, o *state.Object) {
	tr, err := transform.Resolve(sm, o.ID)
	if err != nil {
		return
	}
	cx, cy := cell(tr.X, tr.Y)
	hw := int(o.Props.FloatOr("width", o.Props.FloatOr("size", 8)) / 2 * tr.Scale / 100 * canvasW)
	hh := int(o.Props.FloatOr("height", o.Props.FloatOr("size", 8)) / 2 * tr.Scale / 100 * canvasH)
	if hw < 1 {
		hw = 1
	}
	if hh < 1 {
		hh = 1
	}
	for x := cx - hw; x <= cx+hw; x++ {
		set(grid, x, cy-hh, '─')
		set(grid, x, cy+hh, '─')
	}
	for y := cy - hh; y <= cy+hh; y++ {
		set(grid, cx-hw, y, '│')
		set(grid, cx+hw, y, '│')
	}
	set(grid, cx-hw, cy-hh, '╭')
	set(grid, cx+hw, cy-hh, '╮')
	set(grid, cx-hw, cy+hh, '╰')
	set(grid, cx+hw, cy+hh, '╯')
	m.drawLabel(grid, sm, o, o.Props.StrOr("text", o.ID))
}

func (m *model) drawLabel(grid [][]rune, sm state.Map, o *state.Object, label string) {
	if label == "" {
		return
	}
	tr, err := transform.Resolve(sm, o.ID)
	if err != nil {
		return
	}
	cx, cy := cell(tr.X, tr.Y)
	start := cx - len(label)/2
	for i, ch := range label {
		set(grid, start+i, cy, ch)
	}
}

func (m *model) drawConnector(grid [][]rune, sm state.Map, o *state.Object) {
	fromID, _ := o.Props.Str("from")
	toID, _ := o.Props.Str("to")
	fx, fy, err := transform.AnchorPoint(sm, fromID, o.Props.StrOr("from_anchor", transform.AnchorCenter))
	if err != nil {
		return
	}
	tx, ty, err := transform.AnchorPoint(sm, toID, o.Props.StrOr("to_anchor", transform.AnchorCenter))
	if err != nil {
		return
	}
	x1, y1 := cell(fx, fy)
	x2, y2 := cell(tx, ty)
	line(grid, x1, y1, x2, y2)
}

func cell(xPct, yPct float64) (int, int) {
	return int(xPct / 100 * canvasW), int(yPct / 100 * canvasH)
}

func set(grid [][]rune, x, y int, c rune) {
	if x >= 0 && x < canvasW && y >= 0 && y < canvasH {
		grid[y][x] = c
	}
}

func line(grid [][]rune, x1, y1, x2, y2 int) {
	dx := int(math.Abs(float64(x2 - x1)))
	dy := int(math.Abs(float64(y2 - y1)))
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		set(grid, x1, y1, '·')
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}
