package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// rewriteClient returns a client that sends every request to srv,
// keeping path and query.
func rewriteClient(srv *httptest.Server) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
}

func jsonServer(t *testing.T, wantPath, payload string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantPath != "" && r.URL.Path != wantPath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestAdapter creates a GreenhouseAdapter wired to a test server.
func newTestAdapter(srv *httptest.Server, token, company string) *GreenhouseAdapter {
	return NewGreenhouseAdapter(Board{Token: token, Company: company, Sector: "mining"}, rewriteClient(srv))
}

func TestGreenhouseScrape_Success(t *testing.T) {
	payload := `{
		"jobs": [
			{
				"id": 12345,
				"title": "Millwright",
				"location": {"name": "Timmins, Ontario"},
				"absolute_url": "https://boards.greenhouse.io/hudbay/jobs/12345",
				"first_published": "2024-06-01T09:00:00Z",
				"updated_at": "2024-06-03T10:00:00Z",
				"content": "&lt;p&gt;Maintain the &lt;b&gt;mill&lt;/b&gt;.&lt;/p&gt;",
				"pay_input_ranges": [{"min_cents": 9500000, "max_cents": 11000000, "currency_type": "CAD"}]
			},
			{
				"id": 67890,
				"title": "   ",
				"location": {"name": "Flin Flon, MB"},
				"absolute_url": "https://boards.greenhouse.io/hudbay/jobs/67890",
				"updated_at": "2024-06-02T11:30:00Z"
			}
		]
	}`
	srv := jsonServer(t, "/v1/boards/hudbay/jobs", payload)
	a := newTestAdapter(srv, "hudbay", "Hudbay Minerals")

	postings, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting (blank title dropped), got %d", len(postings))
	}

	p := postings[0]
	if p.ExternalID != "12345" {
		t.Errorf("ExternalID = %q, want 12345", p.ExternalID)
	}
	if p.Company != "Hudbay Minerals" || p.Source != "greenhouse:hudbay" {
		t.Errorf("company/source = %q/%q", p.Company, p.Source)
	}
	if p.Province != "ON" {
		t.Errorf("Province = %q, want ON", p.Province)
	}
	if p.Sector != "mining" {
		t.Errorf("Sector = %q, want mining", p.Sector)
	}
	if p.Description != "Maintain the mill ." {
		t.Errorf("Description = %q", p.Description)
	}
	if !p.PostedAt.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("PostedAt = %v, want first_published", p.PostedAt)
	}
	if p.SalaryMin == nil || *p.SalaryMin != 95000 || p.SalaryMax == nil || *p.SalaryMax != 110000 {
		t.Errorf("salary = %v-%v", p.SalaryMin, p.SalaryMax)
	}
	if p.SalaryText != "$95,000 - $110,000 CAD" {
		t.Errorf("SalaryText = %q", p.SalaryText)
	}
}

func TestGreenhouseScrape_SinceFiltersOlder(t *testing.T) {
	payload := `{"jobs": [
		{"id": 1, "title": "Old", "location": {"name": "AB"}, "first_published": "2024-05-01T00:00:00Z"},
		{"id": 2, "title": "New", "location": {"name": "AB"}, "first_published": "2024-06-02T00:00:00Z"}
	]}`
	srv := jsonServer(t, "", payload)
	a := newTestAdapter(srv, "acme", "Acme")

	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	postings, err := a.Scrape(context.Background(), model.ScrapeOptions{Since: &since})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 || postings[0].Title != "New" {
		t.Fatalf("postings = %+v", postings)
	}
}

func TestGreenhouseScrape_EmptyBoard(t *testing.T) {
	srv := jsonServer(t, "", `{"jobs": []}`)
	a := newTestAdapter(srv, "empty-co", "Empty Co")

	postings, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil {
		t.Fatalf("zero results must not error: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("expected 0 postings, got %d", len(postings))
	}
}

func TestGreenhouseScrape_MalformedJSON(t *testing.T) {
	srv := jsonServer(t, "", `{not valid json`)
	a := newTestAdapter(srv, "bad-co", "Bad Co")

	if _, err := a.Scrape(context.Background(), model.ScrapeOptions{}); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestGreenhouseScrape_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newTestAdapter(srv, "fail-co", "Fail Co")
	_, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *model.HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests || httpErr.RetryAfter != 7*time.Second {
		t.Errorf("HTTPError = %+v", httpErr)
	}
}

func TestGreenhouse_NameAndRateKey(t *testing.T) {
	a := NewGreenhouseAdapter(Board{Token: "hudbay"}, http.DefaultClient)
	if a.Name() != "greenhouse:hudbay" || a.RateKey() != "greenhouse" {
		t.Errorf("Name/RateKey = %q/%q", a.Name(), a.RateKey())
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"tags", "<p>Hello</p><p>World</p>", "Hello World"},
		{"double encoded", "&lt;p&gt;Hi &amp;amp; bye&lt;/p&gt;", "Hi &amp; bye"},
		{"whitespace", "  a \n\n b\t", "a b"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(tt.input); got != tt.want {
				t.Errorf("extractText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEmploymentType(t *testing.T) {
	tests := map[string]string{
		"Full-time":  "full_time",
		"FULL_TIME":  "full_time",
		"FullTime":   "full_time",
		"Part time":  "part_time",
		"Contractor": "contract",
		"Seasonal":   "temporary",
		"Co-op":      "internship",
		"Rotational": "rotational",
		"":           "",
	}
	for in, want := range tests {
		if got := employmentType(in); got != want {
			t.Errorf("employmentType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFinalize_DerivesProvinceAndSector(t *testing.T) {
	in := []model.RawPosting{
		{Title: "Heavy Duty Mechanic", Company: "Teck", Location: "Sparwood, British Columbia", Description: "open pit coal mine"},
		{Title: "Driller", Company: "", Location: "Fort McMurray, AB"},
		{Title: "Engineer", Company: "Suncor", Location: "Calgary, AB", Province: "AB", Sector: "oil_gas"},
	}
	out := finalize(in, "")
	if len(out) != 2 {
		t.Fatalf("expected missing-company posting dropped, got %d", len(out))
	}
	if out[0].Province != "BC" || out[0].Sector != "mining" {
		t.Errorf("derived = %q/%q, want BC/mining", out[0].Province, out[0].Sector)
	}
	if out[1].Sector != "oil_gas" {
		t.Errorf("explicit sector overwritten: %q", out[1].Sector)
	}
}
