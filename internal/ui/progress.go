package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"hbind/internal/pipeline"
)

type progressModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	prog    progress.Model
	items   []stageItem
	index   map[pipeline.Stage]int
	current string // file of the latest event
	cancel  func()
	width   int
	failed  bool
	done    bool
}

type stageItem struct {
	stage   pipeline.Stage
	status  pipeline.Status
	elapsed time.Duration
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one row per
// pipeline stage. It quits when events is closed; ctrl+c calls cancel.
func NewProgressModel(title string, stages []pipeline.Stage, events <-chan pipeline.Event, cancel func()) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]stageItem, 0, len(stages))
	index := make(map[pipeline.Stage]int, len(stages))
	for i, st := range stages {
		items = append(items, stageItem{stage: st, status: pipeline.StatusQueued})
		index[st] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		cancel:  cancel,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(pipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// пайплайн увидит отмену и закроет канал событий сам
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.current != "" && m.current != m.title {
		header = fmt.Sprintf("%s (%s)", header, m.current)
	}
	switch {
	case m.done && m.failed:
		header = "failed: " + header
	case m.done:
		header = "done: " + header
	default:
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(truncate(header, m.width)))
	b.WriteString("\n\n")
	for _, item := range m.items {
		label := statusLabel(item.stage, item.status)
		line := fmt.Sprintf("  %s %-8s", styleStatus(item.status).Render(fmt.Sprintf("%10s", label)), item.stage)
		if item.elapsed > 0 {
			line += fmt.Sprintf(" %8s", item.elapsed.Round(time.Microsecond*100))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.done && !m.failed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	if ev.File != "" {
		m.current = ev.File
	}
	idx, ok := m.index[ev.Stage]
	if !ok {
		return nil
	}
	m.items[idx].status = ev.Status
	if ev.Elapsed > 0 {
		m.items[idx].elapsed = ev.Elapsed
	}
	if ev.Status == pipeline.StatusError {
		m.failed = true
	}
	return m.prog.SetPercent(m.fraction())
}

// fraction counts finished stages; a running stage counts as half.
func (m *progressModel) fraction() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		switch item.status {
		case pipeline.StatusDone, pipeline.StatusCached, pipeline.StatusError:
			total += 1.0
		case pipeline.StatusWorking:
			total += 0.5
		}
	}
	return total / float64(len(m.items))
}

func statusLabel(stage pipeline.Stage, status pipeline.Status) string {
	if status == pipeline.StatusWorking {
		return stageLabel(stage)
	}
	return string(status)
}

func stageLabel(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageParse:
		return "parsing"
	case pipeline.StageBuild:
		return "building"
	case pipeline.StageFilter:
		return "filtering"
	case pipeline.StageLayout:
		return "laying out"
	case pipeline.StageNaming:
		return "naming"
	case pipeline.StageEmit:
		return "emitting"
	case pipeline.StageWrite:
		return "writing"
	default:
		return "working"
	}
}

func styleStatus(status pipeline.Status) lipgloss.Style {
	switch status {
	case pipeline.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case pipeline.StatusCached:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	case pipeline.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case pipeline.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
