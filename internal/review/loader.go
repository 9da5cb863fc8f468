package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobfeed/internal/model"
)

// Store is the read side the console needs.
type Store interface {
	ListPendingReviews(ctx context.Context, limit int) ([]model.ReviewEntry, error)
	GetJob(ctx context.Context, id string) (*model.CanonicalJob, error)
}

// Item pairs a pending review with the job it may duplicate.
type Item struct {
	Entry     model.ReviewEntry
	Candidate *model.CanonicalJob // nil once the candidate has been deleted
}

// Load fetches up to limit pending reviews with their candidates.
func Load(ctx context.Context, store Store, limit int) ([]Item, error) {
	entries, err := store.ListPendingReviews(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		item := Item{Entry: e}
		job, err := store.GetJob(ctx, e.CandidateJobID)
		switch {
		case err == nil:
			item.Candidate = job
		case !errors.Is(err, model.ErrNotFound):
			return nil, fmt.Errorf("fetching candidate %s: %w", e.CandidateJobID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type loadDoneMsg struct {
	items []Item
	err   error
}

type spinnerTickMsg struct{}

type loaderModel struct {
	loadFn func(ctx context.Context) ([]Item, error)
	frame  int
	result []Item
	err    error
	done   bool
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doLoad(), m.tick())
}

func (m loaderModel) doLoad() tea.Cmd {
	loadFn := m.loadFn
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		items, err := loadFn(ctx)
		return loadDoneMsg{items: items, err: err}
	}
}

func (m loaderModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadDoneMsg:
		m.result = msg.items
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinnerTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = fmt.Errorf("cancelled")
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	spinner := lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Render(spinnerFrames[m.frame])
	return fmt.Sprintf("%s Loading pending reviews...\n", spinner)
}

// RunLoader shows a spinner while loadFn runs. It renders inline (no alt screen).
func RunLoader(loadFn func(ctx context.Context) ([]Item, error)) ([]Item, error) {
	p := tea.NewProgram(loaderModel{loadFn: loadFn})
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
