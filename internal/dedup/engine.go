// Package dedup decides whether an incoming posting is already in the store.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

// Weights are the per-field contributions to the overall score.
type Weights struct {
	Title       float64
	Company     float64
	Location    float64
	Description float64
}

// Thresholds are the minimum scores for each match tier.
type Thresholds struct {
	Exact     float64
	Similar   float64
	Potential float64
}

// Config tunes the engine. The defaults are uncalibrated starting points.
type Config struct {
	Window            time.Duration // candidate lookback by posting date
	Weights           Weights
	Thresholds        Thresholds
	FieldMatch        float64 // per-field similarity counted as a "matching field"
	DescriptionPrefix int     // runes of description compared
}

// DefaultConfig returns a 30-day window, 0.4/0.3/0.2/0.1 weights and
// 0.95/0.85/0.70 tiers.
func DefaultConfig() Config {
	return Config{
		Window:            30 * 24 * time.Hour,
		Weights:           Weights{Title: 0.4, Company: 0.3, Location: 0.2, Description: 0.1},
		Thresholds:        Thresholds{Exact: 0.95, Similar: 0.85, Potential: 0.70},
		FieldMatch:        0.8,
		DescriptionPrefix: 200,
	}
}

// Store is the read side of the canonical job store the engine needs.
type Store interface {
	// FindByExternalID returns model.ErrNotFound when no job is linked to the key.
	FindByExternalID(ctx context.Context, source, externalID string) (*model.CanonicalJob, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]model.CanonicalJob, error)
}

// Engine classifies postings as exact, similar or potential duplicates, or novel.
type Engine struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewEngine(store Store, cfg Config) *Engine {
	return &Engine{store: store, cfg: cfg, now: time.Now}
}

// SetClock replaces the engine's time source; the candidate window is
// measured from it.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Classify returns the best match for p, or nil if p is novel.
func (e *Engine) Classify(ctx context.Context, p model.RawPosting) (*model.DuplicateMatch, error) {
	if key := p.NaturalKey(); key != "" {
		job, err := e.store.FindByExternalID(ctx, p.Source, key)
		switch {
		case err == nil:
			return &model.DuplicateMatch{
				JobID:         job.ID,
				Similarity:    1,
				Tier:          model.TierExact,
				MatchedFields: []string{"external_id"},
				ViaNaturalKey: true,
			}, nil
		case !errors.Is(err, model.ErrNotFound):
			return nil, fmt.Errorf("looking up %s/%s: %w", p.Source, key, err)
		}
	}

	candidates, err := e.store.ListActiveSince(ctx, e.now().Add(-e.cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("listing dedup candidates: %w", err)
	}

	var (
		best      *model.CanonicalJob
		bestScore float64
		bestSims  fieldSims
	)
	for i := range candidates {
		c := &candidates[i]
		sims := e.compare(p, c.RawPosting)
		score := e.score(sims)
		if best == nil || score > bestScore || (score == bestScore && newer(c, best)) {
			best, bestScore, bestSims = c, score, sims
		}
	}

	if best == nil {
		return nil, nil
	}
	tier, ok := e.tier(bestScore)
	if !ok {
		return nil, nil
	}
	return &model.DuplicateMatch{
		JobID:         best.ID,
		Similarity:    bestScore,
		Tier:          tier,
		MatchedFields: e.matchedFields(bestSims),
	}, nil
}

// Score returns the weighted similarity of a posting against an existing record.
func (e *Engine) Score(p, existing model.RawPosting) float64 {
	return e.score(e.compare(p, existing))
}

type fieldSims struct {
	title, company, location, description float64
	hasDescription                        bool
}

func (e *Engine) compare(a, b model.RawPosting) fieldSims {
	s := fieldSims{
		title:    Similarity(a.Title, b.Title),
		company:  Similarity(canonicalCompany(a.Company), canonicalCompany(b.Company)),
		location: Similarity(canonicalLocation(a.Location), canonicalLocation(b.Location)),
	}
	if normalize(a.Description) != "" && normalize(b.Description) != "" {
		s.hasDescription = true
		s.description = Similarity(
			descriptionPrefix(a.Description, e.cfg.DescriptionPrefix),
			descriptionPrefix(b.Description, e.cfg.DescriptionPrefix),
		)
	}
	return s
}

// score renormalizes over the fields actually compared, so a missing
// description neither helps nor hurts.
func (e *Engine) score(s fieldSims) float64 {
	w := e.cfg.Weights
	total := w.Title + w.Company + w.Location
	sum := w.Title*s.title + w.Company*s.company + w.Location*s.location
	if s.hasDescription {
		total += w.Description
		sum += w.Description * s.description
	}
	if total <= 0 {
		return 0
	}
	return sum / total
}

func (e *Engine) tier(score float64) (model.MatchTier, bool) {
	t := e.cfg.Thresholds
	switch {
	case score >= t.Exact:
		return model.TierExact, true
	case score >= t.Similar:
		return model.TierSimilar, true
	case score >= t.Potential:
		return model.TierPotential, true
	}
	return "", false
}

func (e *Engine) matchedFields(s fieldSims) []string {
	var fields []string
	if s.title >= e.cfg.FieldMatch {
		fields = append(fields, "title")
	}
	if s.company >= e.cfg.FieldMatch {
		fields = append(fields, "company")
	}
	if s.location >= e.cfg.FieldMatch {
		fields = append(fields, "location")
	}
	if s.hasDescription && s.description >= e.cfg.FieldMatch {
		fields = append(fields, "description")
	}
	return fields
}

// newer reports whether a is more recent than b, by posting date then creation.
func newer(a, b *model.CanonicalJob) bool {
	if !a.PostedAt.Equal(b.PostedAt) {
		return a.PostedAt.After(b.PostedAt)
	}
	return a.CreatedAt.After(b.CreatedAt)
}
