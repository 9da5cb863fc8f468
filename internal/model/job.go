package model

import (
	"context"
	"time"
)

// RawPosting is the unified shape every source adapter produces.
// Optional values are pointers or empty strings; adapters translate their
// source-specific payloads into this struct at their own boundary.
type RawPosting struct {
	ExternalID     string     // source-provided identifier, may be empty
	Title          string     // job title
	Company        string     // employer name
	Location       string     // free-text location
	Province       string     // two-letter province code, empty if unknown
	Sector         string     // sector/industry tag
	EmploymentType string     // full_time, part_time, contract, ...
	SalaryMin      *int       // nullable lower bound
	SalaryMax      *int       // nullable upper bound
	SalaryText     string     // salary as displayed by the source
	Description    string     // plain text
	Requirements   []string   // bullet list, may be empty
	PostedAt       time.Time  // when the source says it was posted
	ExpiresAt      *time.Time // nullable
	Source         string     // source name
	SourceURL      string     // listing URL on the source
	ApplicationURL string     // separate apply link, may be empty
	ScrapedAt      time.Time  // our clock
}

// NaturalKey returns the identifier used for exact matching within a source:
// the external ID when present, otherwise the source URL.
func (p RawPosting) NaturalKey() string {
	if p.ExternalID != "" {
		return p.ExternalID
	}
	return p.SourceURL
}

// CanonicalJob is the persisted record, possibly fed by several sources.
type CanonicalJob struct {
	RawPosting

	ID            string
	ContentHash   string
	Sources       []string // set semantics; only grows while active
	Active        bool
	LastSeen      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeactivatedAt *time.Time
}

// HasSource reports whether name is already recorded in Sources.
func (j CanonicalJob) HasSource(name string) bool {
	for _, s := range j.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// MatchTier classifies how confident a duplicate match is.
type MatchTier string

const (
	TierExact     MatchTier = "exact"
	TierSimilar   MatchTier = "similar"
	TierPotential MatchTier = "potential"
)

// DuplicateMatch is the result of classifying a posting against the store.
// A nil *DuplicateMatch means the posting is novel.
type DuplicateMatch struct {
	JobID         string
	Similarity    float64
	Tier          MatchTier
	MatchedFields []string
	ViaNaturalKey bool // matched through the source's own identifier
}

// IsDuplicate reports whether the match should be merged into the existing job.
func (m *DuplicateMatch) IsDuplicate() bool {
	return m != nil && (m.Tier == TierExact || m.Tier == TierSimilar)
}

// ScrapeOptions narrows what an adapter fetches. Zero values mean "adapter default".
type ScrapeOptions struct {
	MaxPages int
	Since    *time.Time
	Keywords []string
	Location string
}

// SourceAdapter produces raw postings from one external source.
// Zero results is not an error; only transport or parse failures are.
type SourceAdapter interface {
	Name() string
	Scrape(ctx context.Context, opts ScrapeOptions) ([]RawPosting, error)
}

// ReviewEntry records a potential duplicate for human adjudication.
type ReviewEntry struct {
	ID             string
	Source         string
	Posting        RawPosting
	NewJobID       string
	CandidateJobID string
	Similarity     float64
	MatchedFields  []string
	Reviewed       bool
	Decision       string // "duplicate" or "distinct" once reviewed
	CreatedAt      time.Time
	ReviewedAt     *time.Time
}

// JobPatch is a partial update of a CanonicalJob. Nil fields are left untouched.
type JobPatch struct {
	PostedAt       *time.Time
	Description    *string
	SalaryMin      *int
	SalaryMax      *int
	SalaryText     *string
	ApplicationURL *string
	ExpiresAt      *time.Time
	Sources        []string // full replacement set when non-nil
	Reactivate     bool
	LastSeen       time.Time
}

// Empty reports whether the patch changes nothing besides last_seen.
func (p JobPatch) Empty() bool {
	return p.PostedAt == nil && p.Description == nil && p.SalaryMin == nil &&
		p.SalaryMax == nil && p.SalaryText == nil && p.ApplicationURL == nil &&
		p.ExpiresAt == nil && p.Sources == nil && !p.Reactivate
}
