package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amishk599/jobfeed/internal/model"
)

// Category names reported for satisfied filters.
const (
	CategoryRegion         = "region"
	CategorySector         = "sector"
	CategoryCompany        = "company"
	CategoryEmploymentType = "employment_type"
	CategoryKeyword        = "keyword"
	CategorySalary         = "salary"
)

// Match reports whether job satisfies every declared category of f and
// returns the names of the categories it satisfied. An empty category
// imposes no constraint. Evaluation stops at the first failing category.
//
// Regions compare province codes and sectors compare exactly, both
// case-insensitively. Companies and keywords are substring matches; keywords
// are searched in title and description. A minimum salary is compared to the
// job's lower bound; a job without salary information passes without the
// salary category being reported.
func Match(f model.Filters, job model.CanonicalJob) ([]string, bool) {
	var matched []string

	if len(f.Regions) > 0 {
		if !equalsAny(job.Province, f.Regions) {
			return nil, false
		}
		matched = append(matched, CategoryRegion)
	}

	if len(f.Sectors) > 0 {
		if !equalsAny(job.Sector, f.Sectors) {
			return nil, false
		}
		matched = append(matched, CategorySector)
	}

	if len(f.Companies) > 0 {
		if !containsAny(job.Company, f.Companies) {
			return nil, false
		}
		matched = append(matched, CategoryCompany)
	}

	if len(f.EmploymentTypes) > 0 {
		if !equalsAny(job.EmploymentType, f.EmploymentTypes) {
			return nil, false
		}
		matched = append(matched, CategoryEmploymentType)
	}

	if len(f.Keywords) > 0 {
		if !containsAny(job.Title+" "+job.Description, f.Keywords) {
			return nil, false
		}
		matched = append(matched, CategoryKeyword)
	}

	// A job without salary information passes; one whose salary cannot be
	// read ("Competitive") does not.
	if f.MinSalary != nil && hasSalary(job.RawPosting) {
		salary, ok := MinSalary(job.RawPosting)
		if !ok || salary < *f.MinSalary {
			return nil, false
		}
		matched = append(matched, CategorySalary)
	}

	return matched, true
}

var salaryNumber = regexp.MustCompile(`\$?\s*(\d[\d,]*)(\.\d+)?\s*([kK])?`)

// MinSalary returns the job's lower salary bound: SalaryMin when set,
// otherwise the first number in SalaryText ("$85,000 - $95,000", "90k").
func MinSalary(p model.RawPosting) (int, bool) {
	if p.SalaryMin != nil {
		return *p.SalaryMin, true
	}
	m := salaryNumber.FindStringSubmatch(p.SalaryText)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	if m[3] != "" {
		n *= 1000
	}
	return n, true
}

func hasSalary(p model.RawPosting) bool {
	return p.SalaryMin != nil || p.SalaryMax != nil || strings.TrimSpace(p.SalaryText) != ""
}

func equalsAny(value string, options []string) bool {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(o)) {
			return true
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
