package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/specmerge/spectest"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	caseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// recentFailures is how many failures the view keeps on screen
const recentFailures = 5

type batchResult struct {
	err error
	sum *spectest.Summary
}

type progressModel struct {
	spinner  spinner.Model
	events   <-chan spectest.Event
	results  <-chan batchResult
	cancel   context.CancelFunc
	running  map[string]spectest.Stage
	failures []string
	result   batchResult
	done     int
	failed   int
	finished bool
	quitting bool
}

type eventMsg spectest.Event

type eventsClosedMsg struct{}

type finishedMsg batchResult

func newProgressModel(events <-chan spectest.Event, results <-chan batchResult, cancel context.CancelFunc) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = stageStyle
	return &progressModel{
		spinner: s,
		events:  events,
		results: results,
		cancel:  cancel,
		running: make(map[string]spectest.Stage),
	}
}

func (m *progressModel) waitEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return eventsClosedMsg{}
	}
	return eventMsg(ev)
}

func (m *progressModel) waitResult() tea.Msg {
	return finishedMsg(<-m.results)
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitEvent)
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// the batch stops at its next stage; keep draining until it returns
			m.quitting = true
			m.cancel()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		switch {
		case msg.Err != nil:
			delete(m.running, msg.Case)
			m.failed++
			m.failures = append(m.failures, fmt.Sprintf("%s (%s): %v", msg.Case, msg.Stage, firstLine(msg.Err.Error())))
			if len(m.failures) > recentFailures {
				m.failures = m.failures[1:]
			}
		case msg.Stage == spectest.StageDone:
			delete(m.running, msg.Case)
			m.done++
		default:
			m.running[msg.Case] = msg.Stage
		}
		return m, m.waitEvent

	case eventsClosedMsg:
		return m, m.waitResult

	case finishedMsg:
		m.result = batchResult(msg)
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Spec Test Merge"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s merged  %s failed\n\n",
		m.spinner.View(),
		okStyle.Render(fmt.Sprint(m.done)),
		errorStyle.Render(fmt.Sprint(m.failed)),
	)

	names := make([]string, 0, len(m.running))
	for name := range m.running {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("  ")
		b.WriteString(caseStyle.Render(name))
		b.WriteString(" ")
		b.WriteString(stageStyle.Render(string(m.running[name])))
		b.WriteString("\n")
	}

	if len(m.failures) > 0 {
		b.WriteString("\nRecent failures:\n")
		for _, f := range m.failures {
			b.WriteString("  ")
			b.WriteString(errorStyle.Render(f))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.quitting {
		b.WriteString(helpStyle.Render("stopping..."))
	} else {
		b.WriteString(helpStyle.Render("q stop"))
	}
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func runInteractive(ctx context.Context, b *spectest.Batch, events <-chan spectest.Event) (*spectest.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan batchResult, 1)
	go func() {
		sum, err := b.Run(ctx)
		results <- batchResult{sum: sum, err: err}
	}()

	final, err := tea.NewProgram(newProgressModel(events, results, cancel)).Run()
	if err != nil {
		cancel()
		r := <-results
		return r.sum, err
	}

	m := final.(*progressModel)
	return m.result.sum, m.result.err
}
