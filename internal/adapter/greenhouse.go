package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/amishk599/jobfeed/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response
// requested with content=true.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	UpdatedAt      string             `json:"updated_at"`
	FirstPublished string             `json:"first_published"`
	Content        string             `json:"content"`
	PayRanges      []greenhousePay    `json:"pay_input_ranges"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhousePay struct {
	MinCents int64  `json:"min_cents"`
	MaxCents int64  `json:"max_cents"`
	Currency string `json:"currency_type"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches jobs from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	board  Board
	client *http.Client
}

// NewGreenhouseAdapter creates a new adapter for a Greenhouse board.
func NewGreenhouseAdapter(board Board, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{board: board, client: client}
}

func (a *GreenhouseAdapter) Name() string { return "greenhouse:" + a.board.Token }

// RateKey groups every Greenhouse board under one pacing key.
func (a *GreenhouseAdapter) RateKey() string { return "greenhouse" }

// Scrape retrieves all jobs on the board. Greenhouse returns the full board
// in one response, so MaxPages does not apply.
func (a *GreenhouseAdapter) Scrape(ctx context.Context, opts model.ScrapeOptions) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, a.board.Token)

	var ghResp greenhouseResponse
	if err := getJSON(ctx, a.client, url, &ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.board.Token, err)
	}

	postings := make([]model.RawPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		p := model.RawPosting{
			ExternalID:  strconv.FormatInt(gj.ID, 10),
			Title:       gj.Title,
			Company:     a.board.Company,
			Location:    gj.Location.Name,
			Description: extractText(gj.Content),
			Source:      a.Name(),
			SourceURL:   gj.AbsoluteURL,
		}

		p.PostedAt = parseTime(gj.FirstPublished)
		if p.PostedAt.IsZero() {
			p.PostedAt = parseTime(gj.UpdatedAt)
		}
		if opts.Since != nil && !p.PostedAt.IsZero() && p.PostedAt.Before(*opts.Since) {
			continue
		}

		if len(gj.PayRanges) > 0 {
			pay := gj.PayRanges[0]
			p.SalaryMin = intPtr(int(pay.MinCents / 100))
			p.SalaryMax = intPtr(int(pay.MaxCents / 100))
			if p.SalaryMin != nil {
				p.SalaryText = formatRange(p.SalaryMin, p.SalaryMax, pay.Currency)
			}
		}

		postings = append(postings, p)
	}

	return finalize(postings, a.board.Sector), nil
}

// formatRange renders "$50,000 - $75,000 CAD" style salary text.
func formatRange(lo, hi *int, currency string) string {
	s := "$" + thousands(*lo)
	if hi != nil && *hi != *lo {
		s += " - $" + thousands(*hi)
	}
	if currency != "" {
		s += " " + currency
	}
	return s
}

func thousands(n int) string {
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
