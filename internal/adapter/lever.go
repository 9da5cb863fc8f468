package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverSalary struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	HostedURL        string          `json:"hostedUrl"`
	ApplyURL         string          `json:"applyUrl"`
	SalaryRange      *leverSalary    `json:"salaryRange"`
}

// LeverAdapter fetches jobs from the Lever public postings API.
type LeverAdapter struct {
	board  Board
	client *http.Client
}

// NewLeverAdapter creates a new adapter for a Lever board.
func NewLeverAdapter(board Board, client *http.Client) *LeverAdapter {
	return &LeverAdapter{board: board, client: client}
}

func (a *LeverAdapter) Name() string { return "lever:" + a.board.Token }

func (a *LeverAdapter) RateKey() string { return "lever" }

// Scrape retrieves all postings on the board.
func (a *LeverAdapter) Scrape(ctx context.Context, opts model.ScrapeOptions) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, a.board.Token)

	var leverJobs []leverJob
	if err := getJSON(ctx, a.client, url, &leverJobs); err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", a.board.Token, err)
	}

	postings := make([]model.RawPosting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		// Prefer allLocations if available, fall back to location.
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		// createdAt is Unix milliseconds.
		var postedAt time.Time
		if lj.CreatedAt > 0 {
			postedAt = time.UnixMilli(lj.CreatedAt).UTC()
		}
		if opts.Since != nil && !postedAt.IsZero() && postedAt.Before(*opts.Since) {
			continue
		}

		p := model.RawPosting{
			ExternalID:     lj.ID,
			Title:          lj.Text,
			Company:        a.board.Company,
			Location:       location,
			EmploymentType: employmentType(lj.Categories.Commitment),
			Description:    lj.DescriptionPlain,
			PostedAt:       postedAt,
			Source:         a.Name(),
			SourceURL:      lj.HostedURL,
			ApplicationURL: lj.ApplyURL,
		}
		if sr := lj.SalaryRange; sr != nil {
			p.SalaryMin = intPtr(sr.Min)
			p.SalaryMax = intPtr(sr.Max)
			if p.SalaryMin != nil {
				p.SalaryText = formatRange(p.SalaryMin, p.SalaryMax, sr.Currency)
				if sr.Interval != "" {
					p.SalaryText += " " + strings.ReplaceAll(sr.Interval, "-", " ")
				}
			}
		}

		postings = append(postings, p)
	}

	return finalize(postings, a.board.Sector), nil
}
