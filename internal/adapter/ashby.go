package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/jobfeed/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Location         string             `json:"location"`
	EmploymentType   string             `json:"employmentType"`
	DescriptionPlain string             `json:"descriptionPlain"`
	JobURL           string             `json:"jobUrl"`
	ApplyURL         string             `json:"applyUrl"`
	PublishedAt      string             `json:"publishedAt"`
	IsListed         bool               `json:"isListed"`
	Compensation     *ashbyCompensation `json:"compensation"`
}

type ashbyCompensation struct {
	Summary string `json:"compensationTierSummary"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter fetches jobs from the Ashby public job board API.
type AshbyAdapter struct {
	board  Board
	client *http.Client
}

// NewAshbyAdapter creates a new adapter for an Ashby job board.
func NewAshbyAdapter(board Board, client *http.Client) *AshbyAdapter {
	return &AshbyAdapter{board: board, client: client}
}

func (a *AshbyAdapter) Name() string { return "ashby:" + a.board.Token }

func (a *AshbyAdapter) RateKey() string { return "ashby" }

// Scrape retrieves listed jobs on the board. Unlisted jobs are skipped.
func (a *AshbyAdapter) Scrape(ctx context.Context, opts model.ScrapeOptions) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?includeCompensation=true", ashbyBaseURL, a.board.Token)

	var ashbyResp ashbyResponse
	if err := getJSON(ctx, a.client, url, &ashbyResp); err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", a.board.Token, err)
	}

	postings := make([]model.RawPosting, 0, len(ashbyResp.Jobs))
	for _, aj := range ashbyResp.Jobs {
		if !aj.IsListed {
			continue
		}

		postedAt := parseTime(aj.PublishedAt)
		if opts.Since != nil && !postedAt.IsZero() && postedAt.Before(*opts.Since) {
			continue
		}

		p := model.RawPosting{
			ExternalID:     aj.ID,
			Title:          aj.Title,
			Company:        a.board.Company,
			Location:       aj.Location,
			EmploymentType: employmentType(aj.EmploymentType),
			Description:    aj.DescriptionPlain,
			PostedAt:       postedAt,
			Source:         a.Name(),
			SourceURL:      aj.JobURL,
			ApplicationURL: aj.ApplyURL,
		}
		if aj.Compensation != nil {
			p.SalaryText = aj.Compensation.Summary
		}

		postings = append(postings, p)
	}

	return finalize(postings, a.board.Sector), nil
}
