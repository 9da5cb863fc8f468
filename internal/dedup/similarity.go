package dedup

import (
	"strings"
	"unicode"

	"github.com/amishk599/jobfeed/internal/classify"
	"github.com/amishk599/jobfeed/internal/model"
)

const shingleSize = 3

// Similarity returns the Jaccard similarity of the 3-rune shingle sets of a
// and b after lower-casing, stripping punctuation and collapsing whitespace.
// Either side empty scores 0; identical normalized strings score 1.
func Similarity(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	sa, sb := shingles(na), shingles(nb)
	inter := 0
	for s := range sa {
		if _, ok := sb[s]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// shingles returns the set of contiguous 3-rune substrings of s.
// Strings shorter than that form a single shingle.
func shingles(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{}, max(len(runes)-shingleSize+1, 1))
	if len(runes) < shingleSize {
		set[s] = struct{}{}
		return set
	}
	for i := 0; i+shingleSize <= len(runes); i++ {
		set[string(runes[i:i+shingleSize])] = struct{}{}
	}
	return set
}

func normalize(s string) string {
	stripped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(stripped), " ")
}

// companySuffixes are legal-entity words that sources add or drop freely.
var companySuffixes = map[string]bool{
	"inc": true, "incorporated": true, "ltd": true, "limited": true, "llc": true,
	"corp": true, "corporation": true, "co": true, "company": true, "ulc": true, "lp": true,
}

// canonicalCompany strips trailing legal suffixes: "Acme Mining Inc." -> "acme mining".
func canonicalCompany(s string) string {
	fields := strings.Fields(normalize(s))
	for len(fields) > 1 && companySuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// canonicalLocation expands province abbreviations: "Calgary, AB" -> "calgary alberta".
func canonicalLocation(s string) string {
	return classify.ExpandProvince(s)
}

// descriptionPrefix returns at most the first n runes of s.
func descriptionPrefix(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

// IdentityKey is the normalized title|company|location|date string a
// canonical record's content hash is derived from. Postings that differ only
// in casing, punctuation, legal suffix or province spelling share a key.
func IdentityKey(p model.RawPosting) string {
	date := ""
	if !p.PostedAt.IsZero() {
		date = p.PostedAt.UTC().Format("2006-01-02")
	}
	return strings.Join([]string{
		normalize(p.Title),
		canonicalCompany(p.Company),
		canonicalLocation(p.Location),
		date,
	}, "|")
}
