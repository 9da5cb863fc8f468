package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobfeed/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func adzunaPage(n int, offset int) adzunaResponse {
	resp := adzunaResponse{Count: 51}
	for i := 0; i < n; i++ {
		resp.Results = append(resp.Results, adzunaResult{
			ID:           fmt.Sprintf("az-%d", offset+i),
			Title:        "Heavy Equipment Operator",
			Description:  "Operate haul trucks at an open pit mine.",
			Company:      adzunaName{DisplayName: "Northern Aggregates"},
			Location:     adzunaName{DisplayName: "Fort McMurray, Alberta"},
			SalaryMin:    72000.5,
			SalaryMax:    88000,
			RedirectURL:  fmt.Sprintf("https://www.adzuna.ca/details/%d", offset+i),
			Created:      "2024-06-03T12:00:00Z",
			ContractTime: "full_time",
		})
	}
	return resp
}

func TestAdzunaScrape_PaginatesUntilShortPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		q := r.URL.Query()
		if q.Get("app_id") != "id" || q.Get("app_key") != "key" {
			t.Errorf("missing credentials in %s", r.URL.RawQuery)
		}
		if q.Get("what_or") != "millwright operator" {
			t.Errorf("what_or = %q", q.Get("what_or"))
		}
		if q.Get("where") != "Alberta" {
			t.Errorf("where = %q", q.Get("where"))
		}
		if want := fmt.Sprintf("/ca/search/%d", n); r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}

		var resp adzunaResponse
		if n == 1 {
			resp = adzunaPage(adzunaPageSize, 0)
		} else {
			resp = adzunaPage(1, adzunaPageSize)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewAdzunaAdapter(AdzunaConfig{
		AppID:    "id",
		AppKey:   "key",
		Keywords: []string{"millwright", "operator"},
		Location: "Alberta",
	}, srv.Client(), discardLogger())
	a.baseURL = srv.URL

	postings, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 page requests, got %d", got)
	}
	if len(postings) != adzunaPageSize+1 {
		t.Fatalf("expected %d postings, got %d", adzunaPageSize+1, len(postings))
	}

	p := postings[0]
	if p.Source != "adzuna" || p.Province != "AB" || p.Sector != "mining" {
		t.Errorf("source/province/sector = %q/%q/%q", p.Source, p.Province, p.Sector)
	}
	if p.SalaryMin == nil || *p.SalaryMin != 72000 || p.SalaryText != "$72,000 - $88,000" {
		t.Errorf("salary = %v %q", p.SalaryMin, p.SalaryText)
	}
	if p.EmploymentType != "full_time" {
		t.Errorf("EmploymentType = %q", p.EmploymentType)
	}
}

func TestAdzunaScrape_OptionsOverrideDefaults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if q.Get("what_or") != "welder" || q.Get("where") != "Regina" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if q.Get("max_days_old") != "3" {
			t.Errorf("max_days_old = %q", q.Get("max_days_old"))
		}
		json.NewEncoder(w).Encode(adzunaPage(adzunaPageSize, 0))
	}))
	defer srv.Close()

	a := NewAdzunaAdapter(AdzunaConfig{AppID: "id", AppKey: "key", Keywords: []string{"ignored"}}, srv.Client(), discardLogger())
	a.baseURL = srv.URL

	since := time.Now().Add(-50 * time.Hour)
	_, err := a.Scrape(context.Background(), model.ScrapeOptions{
		Keywords: []string{"welder"},
		Location: "Regina",
		MaxPages: 1,
		Since:    &since,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("MaxPages=1 should stop after one request, got %d", got)
	}
}

func TestAdzunaScrape_NoCredentials(t *testing.T) {
	a := NewAdzunaAdapter(AdzunaConfig{}, http.DefaultClient, discardLogger())
	a.baseURL = "http://127.0.0.1:0"

	postings, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	if err != nil || postings != nil {
		t.Fatalf("Scrape() = %v, %v; want nil, nil", postings, err)
	}
}

func TestAdzunaScrape_HTTPErrorIncludesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewAdzunaAdapter(AdzunaConfig{AppID: "id", AppKey: "key"}, srv.Client(), discardLogger())
	a.baseURL = srv.URL

	_, err := a.Scrape(context.Background(), model.ScrapeOptions{})
	if err == nil || !strings.Contains(err.Error(), "adzuna page 1") {
		t.Fatalf("err = %v", err)
	}
}
