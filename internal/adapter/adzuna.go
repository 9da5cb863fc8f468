package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
)

// adzunaResponse mirrors the top-level Adzuna search response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaName     `json:"company"`
	Location     adzunaName     `json:"location"`
	Category     adzunaCategory `json:"category"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaName struct {
	DisplayName string `json:"display_name"`
}

type adzunaCategory struct {
	Tag string `json:"tag"`
}

// AdzunaConfig holds credentials and paging for the Adzuna search API.
type AdzunaConfig struct {
	AppID     string
	AppKey    string
	Country   string        // "ca", "gb", ...
	Keywords  []string      // default "what" terms when ScrapeOptions has none
	Location  string        // default "where"
	MaxPages  int           // default when ScrapeOptions.MaxPages is zero
	PageDelay time.Duration // pause between page requests
}

// AdzunaAdapter searches the Adzuna public API page by page.
type AdzunaAdapter struct {
	cfg     AdzunaConfig
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

func NewAdzunaAdapter(cfg AdzunaConfig, client *http.Client, logger *slog.Logger) *AdzunaAdapter {
	if cfg.Country == "" {
		cfg.Country = "ca"
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	return &AdzunaAdapter{cfg: cfg, client: client, logger: logger, baseURL: adzunaBaseURL}
}

func (a *AdzunaAdapter) Name() string { return "adzuna" }

// Scrape walks result pages until one comes back short or MaxPages is hit.
// Missing credentials yield no postings rather than an error.
func (a *AdzunaAdapter) Scrape(ctx context.Context, opts model.ScrapeOptions) ([]model.RawPosting, error) {
	if a.cfg.AppID == "" || a.cfg.AppKey == "" {
		a.logger.Warn("adzuna credentials not set, skipping")
		return nil, nil
	}

	maxPages := a.cfg.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}
	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = a.cfg.Keywords
	}
	where := opts.Location
	if where == "" {
		where = a.cfg.Location
	}

	var postings []model.RawPosting
	for page := 1; page <= maxPages; page++ {
		if page > 1 && a.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.cfg.PageDelay):
			}
		}

		batch, err := a.fetchPage(ctx, page, keywords, where, opts.Since)
		if err != nil {
			return nil, fmt.Errorf("adzuna page %d: %w", page, err)
		}
		postings = append(postings, batch...)
		if len(batch) < adzunaPageSize {
			break
		}
	}

	return finalize(postings, ""), nil
}

func (a *AdzunaAdapter) fetchPage(ctx context.Context, page int, keywords []string, where string, since *time.Time) ([]model.RawPosting, error) {
	params := url.Values{}
	params.Set("app_id", a.cfg.AppID)
	params.Set("app_key", a.cfg.AppKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("sort_by", "date")
	if len(keywords) > 0 {
		params.Set("what_or", strings.Join(keywords, " "))
	}
	if where != "" {
		params.Set("where", where)
	}
	if since != nil {
		days := int(time.Since(*since).Hours()/24) + 1
		params.Set("max_days_old", strconv.Itoa(days))
	}
	endpoint := fmt.Sprintf("%s/%s/search/%d?%s", a.baseURL, a.cfg.Country, page, params.Encode())

	var resp adzunaResponse
	if err := getJSON(ctx, a.client, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]model.RawPosting, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := model.RawPosting{
			ExternalID:     r.ID,
			Title:          extractText(r.Title),
			Company:        r.Company.DisplayName,
			Location:       r.Location.DisplayName,
			EmploymentType: employmentType(firstNonEmpty(r.ContractType, r.ContractTime)),
			Description:    extractText(r.Description),
			PostedAt:       parseTime(r.Created),
			Source:         a.Name(),
			SourceURL:      r.RedirectURL,
			SalaryMin:      intPtr(int(r.SalaryMin)),
			SalaryMax:      intPtr(int(r.SalaryMax)),
		}
		if p.SalaryMin != nil {
			p.SalaryText = formatRange(p.SalaryMin, p.SalaryMax, "")
		}
		out = append(out, p)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
