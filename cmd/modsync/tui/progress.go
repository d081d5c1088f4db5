package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
)

// Work is the operation displayed by the progress view. It must report
// progress through emit and honor ctx cancellation.
type Work func(ctx context.Context, emit types.ProgressFunc) error

// ProgressMsg carries one progress event into the model.
type ProgressMsg types.Progress

// DoneMsg is sent when the work function returns.
type DoneMsg struct {
	Err error
}

// Model renders a spinner, the current stage and a progress bar.
type Model struct {
	title    string
	spinner  spinner.Model
	bar      progress.Model
	last     types.Progress
	units    int
	bytes    uint64
	width    int
	done     bool
	err      error
	quitting bool

	cancel   context.CancelFunc
	updates  chan types.Progress
	finished chan error
}

// NewModel creates a progress view titled title.
func NewModel(title string) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		title:   title,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient()),
		width:   80,
	}
}

// Init starts the spinner and the listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// Update handles messages for the progress view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, msg.Width-12)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case ProgressMsg:
		m.SetProgress(types.Progress(msg))
		return m, m.listen()

	case DoneMsg:
		m.SetDone(msg.Err)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// SetProgress records an event.
func (m *Model) SetProgress(p types.Progress) {
	m.last = p
	m.units++
	m.bytes += p.Bytes
}

// SetDone marks the work as finished.
func (m *Model) SetDone(err error) {
	m.done = true
	m.err = err
}

// Percent is the completion of the current batch, between 0 and 1.
func (m Model) Percent() float64 {
	if m.last.Total <= 0 {
		return 0
	}
	return min(1, float64(m.last.Current)/float64(m.last.Total))
}

// View renders the progress view.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.done:
		b.WriteString(successTextStyle.Render("Done"))
	case m.quitting:
		b.WriteString(mutedTextStyle.Render("Cancelling..."))
	default:
		stage := string(m.last.Stage)
		if stage == "" {
			stage = "starting"
		}
		fmt.Fprintf(&b, "%s %s %s", m.spinner.View(), stage, truncatePath(m.last.Path, m.width-20))
	}
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString("\n")
	b.WriteString(mutedTextStyle.Render(fmt.Sprintf("%d/%d  %d events  %s processed",
		m.last.Current, m.last.Total, m.units, humanize.IBytes(m.bytes))))
	if m.last.Message != "" {
		b.WriteString("\n")
		b.WriteString(mutedTextStyle.Render(m.last.Message))
	}

	return outerBoxStyle.Render(b.String()) + "\n"
}

// listen waits for the next progress event or the final result.
func (m Model) listen() tea.Cmd {
	updates, finished := m.updates, m.finished
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case p := <-updates:
			return ProgressMsg(p)
		case err := <-finished:
			// drain anything sent before the work returned
			for {
				select {
				case <-updates:
				default:
					return DoneMsg{Err: err}
				}
			}
		}
	}
}

// truncatePath shortens a path from the left to fit width.
func truncatePath(path string, width int) string {
	if width < 8 || len(path) <= width {
		return path
	}
	return "..." + path[len(path)-width+3:]
}

// Run executes work while showing the progress view and returns its error.
func Run(ctx context.Context, title string, work Work) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(title)
	model.cancel = cancel
	model.updates = make(chan types.Progress, 64)
	model.finished = make(chan error, 1)

	updates, finished := model.updates, model.finished
	go func() {
		finished <- work(ctx, func(p types.Progress) {
			select {
			case updates <- p:
			default:
				// view is behind, skip this update
			}
		})
	}()

	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.done {
		return fm.err
	}
	return <-finished
}
