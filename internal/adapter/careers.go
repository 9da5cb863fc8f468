package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/amishk599/jobfeed/internal/classify"
	"github.com/amishk599/jobfeed/internal/model"
)

// PageFetcher returns the rendered HTML of a page. *RenderClient implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// CareersSite is a company careers site whose pages embed schema.org
// JobPosting JSON-LD.
type CareersSite struct {
	Slug    string
	Company string
	Sector  string
	Pages   []string
}

// CareersPageAdapter extracts JobPosting structured data from rendered
// careers pages.
type CareersPageAdapter struct {
	site    CareersSite
	fetcher PageFetcher
}

func NewCareersPageAdapter(site CareersSite, fetcher PageFetcher) *CareersPageAdapter {
	return &CareersPageAdapter{site: site, fetcher: fetcher}
}

func (a *CareersPageAdapter) Name() string { return "careers:" + a.site.Slug }

// Scrape renders each configured page, at most opts.MaxPages of them.
func (a *CareersPageAdapter) Scrape(ctx context.Context, opts model.ScrapeOptions) ([]model.RawPosting, error) {
	pages := a.site.Pages
	if opts.MaxPages > 0 && len(pages) > opts.MaxPages {
		pages = pages[:opts.MaxPages]
	}

	var postings []model.RawPosting
	for _, page := range pages {
		doc, err := a.fetcher.Fetch(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("careers fetch for %s: %w", a.site.Slug, err)
		}
		for _, block := range jsonLDBlocks(doc) {
			for _, lp := range collectJobPostings(block) {
				p := a.toRaw(lp, page)
				if opts.Since != nil && !p.PostedAt.IsZero() && p.PostedAt.Before(*opts.Since) {
					continue
				}
				postings = append(postings, p)
			}
		}
	}
	return finalize(postings, a.site.Sector), nil
}

func (a *CareersPageAdapter) toRaw(lp ldJobPosting, page string) model.RawPosting {
	p := model.RawPosting{
		ExternalID:     lp.identifier(),
		Title:          extractText(lp.Title),
		Company:        lp.company(),
		Description:    extractText(lp.Description),
		EmploymentType: employmentType(lp.EmploymentType.first()),
		PostedAt:       parseTime(lp.DatePosted),
		Source:         a.Name(),
		SourceURL:      lp.URL,
	}
	if p.Company == "" {
		p.Company = a.site.Company
	}
	if t := parseTime(lp.ValidThrough); !t.IsZero() {
		p.ExpiresAt = &t
	}
	if p.SourceURL == "" {
		// Keeps postings sharing one listing page distinct by natural key.
		p.SourceURL = page + "#" + url.PathEscape(strings.ToLower(p.Title))
	}

	if addr, ok := lp.address(); ok {
		p.Location = addr.String()
		if classify.IsProvinceCode(addr.Region) {
			p.Province = strings.ToUpper(addr.Region)
		}
	}

	if s := lp.BaseSalary; s != nil {
		lo, hi := s.Value.MinValue.int(), s.Value.MaxValue.int()
		if lo == 0 {
			lo = s.Value.Value.int()
		}
		p.SalaryMin = intPtr(lo)
		p.SalaryMax = intPtr(hi)
		if p.SalaryMin != nil {
			p.SalaryText = formatRange(p.SalaryMin, p.SalaryMax, s.Currency)
			if unit := strings.ToLower(s.Value.UnitText); unit != "" {
				p.SalaryText += " per " + unit
			}
		}
	}
	return p
}

// jsonLDBlocks returns the contents of every <script type="application/ld+json">.
func jsonLDBlocks(doc string) []json.RawMessage {
	var blocks []json.RawMessage
	z := html.NewTokenizer(strings.NewReader(doc))
	inLD := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed document; keep what was found.
			return blocks
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			inLD = false
			if string(name) != "script" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "type" && strings.EqualFold(strings.TrimSpace(string(val)), "application/ld+json") {
					inLD = true
				}
				if !more {
					break
				}
			}
		case html.TextToken:
			if inLD {
				text := bytes.TrimSpace(z.Text())
				if json.Valid(text) {
					blocks = append(blocks, json.RawMessage(text))
				}
				inLD = false
			}
		case html.EndTagToken:
			inLD = false
		}
	}
}

// collectJobPostings walks a JSON-LD value (object, array or @graph) and
// returns every node typed JobPosting.
func collectJobPostings(raw json.RawMessage) []ldJobPosting {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []ldJobPosting
		for _, it := range items {
			out = append(out, collectJobPostings(it)...)
		}
		return out
	}

	var node struct {
		Type  ldStrings         `json:"@type"`
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil
	}
	if len(node.Graph) > 0 {
		var out []ldJobPosting
		for _, g := range node.Graph {
			out = append(out, collectJobPostings(g)...)
		}
		return out
	}
	if !node.Type.has("JobPosting") {
		return nil
	}
	var lp ldJobPosting
	if err := json.Unmarshal(raw, &lp); err != nil {
		return nil
	}
	return []ldJobPosting{lp}
}

// schema.org JobPosting, reduced to the fields we map.
type ldJobPosting struct {
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	DatePosted         string          `json:"datePosted"`
	ValidThrough       string          `json:"validThrough"`
	EmploymentType     ldStrings       `json:"employmentType"`
	URL                string          `json:"url"`
	Identifier         json.RawMessage `json:"identifier"`
	HiringOrganization json.RawMessage `json:"hiringOrganization"`
	JobLocation        json.RawMessage `json:"jobLocation"`
	BaseSalary         *ldSalary       `json:"baseSalary"`
}

type ldSalary struct {
	Currency string `json:"currency"`
	Value    struct {
		Value    ldNumber `json:"value"`
		MinValue ldNumber `json:"minValue"`
		MaxValue ldNumber `json:"maxValue"`
		UnitText string   `json:"unitText"`
	} `json:"value"`
}

type ldAddress struct {
	Locality string `json:"addressLocality"`
	Region   string `json:"addressRegion"`
	Country  string `json:"-"`
}

func (a ldAddress) String() string {
	var parts []string
	for _, s := range []string{a.Locality, a.Region, a.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func (lp ldJobPosting) identifier() string {
	var s string
	if json.Unmarshal(lp.Identifier, &s) == nil {
		return s
	}
	var pv struct {
		Value ldNumber `json:"value"`
	}
	if json.Unmarshal(lp.Identifier, &pv) == nil {
		return string(pv.Value)
	}
	return ""
}

func (lp ldJobPosting) company() string {
	var s string
	if json.Unmarshal(lp.HiringOrganization, &s) == nil {
		return s
	}
	var org struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(lp.HiringOrganization, &org) == nil {
		return org.Name
	}
	return ""
}

// address returns the first jobLocation's postal address.
func (lp ldJobPosting) address() (ldAddress, bool) {
	raw := bytes.TrimSpace(lp.JobLocation)
	if len(raw) == 0 {
		return ldAddress{}, false
	}
	if raw[0] == '[' {
		var locs []json.RawMessage
		if json.Unmarshal(raw, &locs) != nil || len(locs) == 0 {
			return ldAddress{}, false
		}
		raw = locs[0]
	}
	var place struct {
		Address struct {
			ldAddress
			Country json.RawMessage `json:"addressCountry"`
		} `json:"address"`
	}
	if json.Unmarshal(raw, &place) != nil {
		return ldAddress{}, false
	}
	addr := place.Address.ldAddress
	// addressCountry is either a string or a Country node.
	var country string
	if json.Unmarshal(place.Address.Country, &country) != nil {
		var node struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(place.Address.Country, &node) == nil {
			country = node.Name
		}
	}
	addr.Country = country
	return addr, addr.String() != ""
}

// ldStrings accepts a JSON string or array of strings.
type ldStrings []string

func (s *ldStrings) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = ldStrings{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s ldStrings) has(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func (s ldStrings) first() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// ldNumber accepts a JSON number or a numeric string.
type ldNumber string

func (n *ldNumber) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = ldNumber(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return nil
	}
	*n = ldNumber(num.String())
	return nil
}

func (n ldNumber) int() int {
	f, err := strconv.ParseFloat(strings.ReplaceAll(string(n), ",", ""), 64)
	if err != nil {
		return 0
	}
	return int(f)
}
