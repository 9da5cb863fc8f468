package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

func TestLeverScrape_Success(t *testing.T) {
	payload := `[
		{
			"id": "abc-123",
			"text": "Process Engineer",
			"descriptionPlain": "Support the refinery turnaround.",
			"categories": {
				"commitment": "Full-time",
				"location": "Edmonton, AB",
				"allLocations": ["Edmonton, AB", "Calgary, AB"]
			},
			"createdAt": 1717228800000,
			"hostedUrl": "https://jobs.lever.co/acme/abc-123",
			"applyUrl": "https://jobs.lever.co/acme/abc-123/apply",
			"salaryRange": {"min": 90000, "max": 120000, "currency": "CAD", "interval": "per-year-salary"}
		},
		{
			"id": "def-456",
			"text": "Field Operator",
			"categories": {"commitment": "Contract", "location": "Grande Prairie, Alberta"},
			"createdAt": 1717315200000,
			"hostedUrl": "https://jobs.lever.co/acme/def-456"
		}
	]`
	srv := jsonServer(t, "/v0/postings/acme", payload)
	a := NewLeverAdapter(Board{Token: "acme", Company: "Acme Energy"}, rewriteClient(srv))

	postings, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.ExternalID != "abc-123" || p.Source != "lever:acme" {
		t.Errorf("id/source = %q/%q", p.ExternalID, p.Source)
	}
	if p.Location != "Edmonton, AB, Calgary, AB" {
		t.Errorf("Location = %q", p.Location)
	}
	if p.Province != "AB" {
		t.Errorf("Province = %q, want AB", p.Province)
	}
	if p.EmploymentType != "full_time" {
		t.Errorf("EmploymentType = %q", p.EmploymentType)
	}
	if !p.PostedAt.Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("PostedAt = %v", p.PostedAt)
	}
	if p.ApplicationURL != "https://jobs.lever.co/acme/abc-123/apply" {
		t.Errorf("ApplicationURL = %q", p.ApplicationURL)
	}
	if p.SalaryText != "$90,000 - $120,000 CAD per year salary" {
		t.Errorf("SalaryText = %q", p.SalaryText)
	}
	if p.Sector != "oil_gas" {
		t.Errorf("Sector = %q, want oil_gas from description", p.Sector)
	}

	if postings[1].EmploymentType != "contract" || postings[1].SalaryMin != nil {
		t.Errorf("second posting = %+v", postings[1])
	}
}

func TestLeverScrape_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewLeverAdapter(Board{Token: "acme", Company: "Acme"}, rewriteClient(srv))
	if _, err := a.Scrape(context.Background(), model.ScrapeOptions{}); err == nil {
		t.Fatal("expected error for HTTP 502, got nil")
	}
}

func TestLeverScrape_Empty(t *testing.T) {
	srv := jsonServer(t, "", `[]`)
	a := NewLeverAdapter(Board{Token: "acme", Company: "Acme"}, rewriteClient(srv))
	postings, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil || len(postings) != 0 {
		t.Fatalf("Scrape() = %d postings, %v", len(postings), err)
	}
}
