package orchestrator

import (
	"context"
	"fmt"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/persist"
)

// Ingester takes one raw posting through duplicate classification and
// persistence, and refreshes last_seen for re-observed jobs.
type Ingester interface {
	Ingest(ctx context.Context, p model.RawPosting) (persist.Outcome, error)
	Touch(ctx context.Context, ids []string) error
}

// Classifier decides whether a posting duplicates a stored job.
type Classifier interface {
	Classify(ctx context.Context, p model.RawPosting) (*model.DuplicateMatch, error)
}

// Persister applies a classified posting to the canonical store.
type Persister interface {
	Apply(ctx context.Context, p model.RawPosting, match *model.DuplicateMatch) (persist.Outcome, error)
	Touch(ctx context.Context, ids []string) error
}

// Ensure DedupIngester implements Ingester.
var _ Ingester = (*DedupIngester)(nil)

// DedupIngester chains a Classifier and a Persister.
type DedupIngester struct {
	classifier Classifier
	persister  Persister
}

func NewDedupIngester(c Classifier, p Persister) *DedupIngester {
	return &DedupIngester{classifier: c, persister: p}
}

func (d *DedupIngester) Ingest(ctx context.Context, p model.RawPosting) (persist.Outcome, error) {
	match, err := d.classifier.Classify(ctx, p)
	if err != nil {
		return persist.Outcome{}, fmt.Errorf("classifying: %w", err)
	}
	out, err := d.persister.Apply(ctx, p, match)
	if err != nil {
		return persist.Outcome{}, fmt.Errorf("persisting: %w", err)
	}
	return out, nil
}

func (d *DedupIngester) Touch(ctx context.Context, ids []string) error {
	return d.persister.Touch(ctx, ids)
}
