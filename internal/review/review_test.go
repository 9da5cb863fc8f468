package review

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobfeed/internal/model"
)

type fakeStore struct {
	entries []model.ReviewEntry
	jobs    map[string]*model.CanonicalJob
	jobErr  error
}

func (f *fakeStore) ListPendingReviews(_ context.Context, limit int) ([]model.ReviewEntry, error) {
	if limit > 0 && limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeStore) GetJob(_ context.Context, id string) (*model.CanonicalJob, error) {
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, model.ErrNotFound
}

type fakeResolver struct {
	calls []string
	err   error
}

func (f *fakeResolver) ResolveReview(_ context.Context, id string, duplicate bool) error {
	verdict := "distinct"
	if duplicate {
		verdict = "duplicate"
	}
	f.calls = append(f.calls, id+":"+verdict)
	return f.err
}

func entry(id, source, candidate string) model.ReviewEntry {
	return model.ReviewEntry{
		ID:             id,
		Source:         source,
		CandidateJobID: candidate,
		Similarity:     0.78,
		MatchedFields:  []string{"company"},
		Posting:        model.RawPosting{Title: "Millwright " + id, Company: "Teck", Source: source},
		CreatedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLoad_PairsCandidates(t *testing.T) {
	store := &fakeStore{
		entries: []model.ReviewEntry{entry("r1", "lever:teck", "j1"), entry("r2", "adzuna", "gone")},
		jobs:    map[string]*model.CanonicalJob{"j1": {ID: "j1", RawPosting: model.RawPosting{Title: "Millwright"}}},
	}

	items, err := Load(context.Background(), store, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "j1", items[0].Candidate.ID)
	assert.Nil(t, items[1].Candidate, "deleted candidate is kept as nil")
}

func TestLoad_StoreErrorFails(t *testing.T) {
	store := &fakeStore{
		entries: []model.ReviewEntry{entry("r1", "lever:teck", "j1")},
		jobErr:  errors.New("db closed"),
	}
	_, err := Load(context.Background(), store, 0)
	assert.ErrorContains(t, err, "db closed")
}

func TestCountBySourceAndFilter(t *testing.T) {
	items := []Item{
		{Entry: entry("r1", "lever:teck", "j")},
		{Entry: entry("r2", "adzuna", "j")},
		{Entry: entry("r3", "lever:teck", "j")},
	}

	rows := CountBySource(items)
	assert.Equal(t, []SourceCount{{"", 3}, {"adzuna", 1}, {"lever:teck", 2}}, rows)
	assert.Len(t, FilterSource(items, "lever:teck"), 2)
	assert.Len(t, FilterSource(items, ""), 3)
}

func TestModel_ResolveRemovesItem(t *testing.T) {
	resolver := &fakeResolver{}
	items := []Item{
		{Entry: entry("r1", "lever:teck", "j1"), Candidate: &model.CanonicalJob{ID: "j1"}},
		{Entry: entry("r2", "lever:teck", "j2"), Candidate: &model.CanonicalJob{ID: "j2"}},
	}
	var m tea.Model = newReviewModel(items, resolver)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	m, cmd := m.Update(key("d"))
	require.NotNil(t, cmd)
	assert.True(t, m.(reviewModel).resolving)

	// A second verdict while saving is ignored.
	_, again := m.Update(key("n"))
	assert.Nil(t, again)

	m, _ = m.Update(cmd())
	rm := m.(reviewModel)
	assert.Equal(t, []string{"r1:duplicate"}, resolver.calls)
	require.Len(t, rm.items, 1)
	assert.Equal(t, "r2", rm.items[0].Entry.ID)
	assert.Equal(t, 1, rm.resolved)
	assert.Equal(t, "marked duplicate", rm.status)
}

func TestModel_ResolveErrorKeepsItem(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("locked")}
	items := []Item{{Entry: entry("r1", "adzuna", "j1"), Candidate: &model.CanonicalJob{ID: "j1"}}}
	var m tea.Model = newReviewModel(items, resolver)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m, cmd := m.Update(key("n"))
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	rm := m.(reviewModel)
	assert.Len(t, rm.items, 1)
	assert.Contains(t, rm.status, "locked")
}

func TestModel_DuplicateNeedsCandidate(t *testing.T) {
	resolver := &fakeResolver{}
	items := []Item{{Entry: entry("r1", "adzuna", "gone")}}
	var m tea.Model = newReviewModel(items, resolver)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m, cmd := m.Update(key("d"))
	assert.Nil(t, cmd)
	assert.Empty(t, resolver.calls)
	assert.Contains(t, m.(reviewModel).status, "no longer exists")
}

func TestModel_CursorAndDetail(t *testing.T) {
	items := []Item{
		{Entry: entry("r1", "adzuna", "j1"), Candidate: &model.CanonicalJob{ID: "j1"}},
		{Entry: entry("r2", "adzuna", "j2"), Candidate: &model.CanonicalJob{ID: "j2"}},
	}
	var m tea.Model = newReviewModel(items, &fakeResolver{})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("j"))
	assert.Equal(t, 1, m.(reviewModel).cursor, "cursor clamps at the last item")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, viewDetail, m.(reviewModel).view)
	assert.Contains(t, m.View(), "Review detail")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, viewList, m.(reviewModel).view)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Heavy Du…", truncate("Heavy Duty Mechanic", 9))
}
