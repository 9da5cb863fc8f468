package adapter

import (
	"html"
	"regexp"
	"strings"

	"github.com/amishk599/jobfeed/internal/classify"
	"github.com/amishk599/jobfeed/internal/model"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// extractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (handles Greenhouse's double-encoding;
// no-op on already-real HTML), strips all tags, then collapses whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// Board identifies one company's job board on a hosted ATS.
type Board struct {
	Token   string // board token or company slug on the ATS
	Company string // display name used as the posting's company
	Sector  string // sector tag applied to every posting, may be empty
}

// finalize trims postings, drops those missing a title or company and
// derives province and sector where the source left them empty.
func finalize(postings []model.RawPosting, sector string) []model.RawPosting {
	out := postings[:0]
	for _, p := range postings {
		p.Title = strings.TrimSpace(p.Title)
		p.Company = strings.TrimSpace(p.Company)
		p.Location = strings.TrimSpace(p.Location)
		if p.Title == "" || p.Company == "" {
			continue
		}
		if p.Province == "" {
			p.Province = classify.Province(p.Location)
		}
		if p.Sector == "" {
			p.Sector = sector
		}
		if p.Sector == "" {
			p.Sector = classify.Sector(p.Title, p.Description)
		}
		out = append(out, p)
	}
	return out
}

// employmentType maps the many spellings sources use onto full_time,
// part_time, contract, temporary or internship. Unknown values pass through
// lower-cased.
func employmentType(s string) string {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch key {
	case "":
		return ""
	case "fulltime", "permanent", "regular":
		return "full_time"
	case "parttime":
		return "part_time"
	case "contract", "contractor", "fixedterm":
		return "contract"
	case "temporary", "temp", "seasonal":
		return "temporary"
	case "intern", "internship", "coop":
		return "internship"
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func intPtr(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
