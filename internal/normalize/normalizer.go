// Package normalize turns raw, partially structured Dutch address input into a
// normalized domain.Address: trimmed fields, canonical city names and house
// numbers peeled off the street or found in a free-text description.
package normalize

import (
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

var (
	// "Eikenlaan 31 en 33", "Eikenlaan 31a-33b", "Eikenlaan 31 & 33", ...
	reMultiNumber = regexp.MustCompile(`(?:^|\s)(\d+[a-zA-Z]?)(?: en |en| - |-| & |&)(\d+[a-zA-Z]?)$`)
	// "Eikenlaan 31", "Eikenlaan 31a"
	reSingleNumber = regexp.MustCompile(`(?:^|\s)(\d+)([a-zA-Z]?)$`)
	// a standalone house number token: "28", "55b"
	reNumberToken = regexp.MustCompile(`^(\d+)([a-zA-Z]?)$`)
	// "1234 ab", "1234AB"
	rePostcode = regexp.MustCompile(`^(\d{4})\s*([a-zA-Z]{2})$`)
)

// affixSeparators are stripped from the start of a house number affix.
const affixSeparators = "/+-"

// Normalizer prepares addresses for matching. It is immutable and safe for
// concurrent use.
type Normalizer struct {
	synonyms *SynonymTable
}

// NewNormalizer creates a normalizer canonicalizing city names through synonyms.
// A nil table disables canonicalization.
func NewNormalizer(synonyms *SynonymTable) *Normalizer {
	if synonyms == nil {
		synonyms = NewSynonymTable(nil)
	}
	return &Normalizer{synonyms: synonyms}
}

// Normalize returns a cleaned copy of addr. Fields are trimmed, blank fields
// become absent, city and municipality are canonicalized, and a missing house
// number is extracted from the street or, failing that, from the description.
func (n *Normalizer) Normalize(addr domain.Address) domain.Address {
	out := domain.Address{
		Postcode:         normalizePostcode(addr.Postcode),
		City:             n.CanonicalizeCityName(strings.TrimSpace(addr.City)),
		Municipality:     n.CanonicalizeCityName(strings.TrimSpace(addr.Municipality)),
		Street:           strings.TrimSpace(addr.Street),
		HouseNumber:      strings.TrimSpace(addr.HouseNumber),
		HouseNumberAffix: CleanAffix(addr.HouseNumberAffix),
		Description:      strings.TrimSpace(addr.Description),
	}

	if out.HouseNumber == "" && out.Street != "" {
		if street, number, affix, ok := ExtractHouseNumberFromStreet(out.Street); ok {
			out.Street = street
			out.HouseNumber = number
			if affix != "" {
				out.HouseNumberAffix = affix
			}
		}
	}

	if out.HouseNumber == "" {
		if number, affix, ok := FillHouseNumberFromDescription(out.Street, out.Description); ok {
			out.HouseNumber = number
			if affix != "" {
				out.HouseNumberAffix = affix
			}
		}
	}

	return out
}

// CanonicalizeCityName maps a known variant spelling to the canonical
// municipality name. Unknown names are returned unchanged.
func (n *Normalizer) CanonicalizeCityName(name string) string {
	return n.synonyms.Canonicalize(name)
}

// ExtractHouseNumberFromStreet splits a trailing house number off street.
//
// Two numbers joined by "en", "-" or "&" are returned as number and affix: the
// affix then carries the second address of the range, not a letter suffix.
// A single trailing number yields its digits as number and an optional letter
// as affix. ok is false when street does not end in a house number.
func ExtractHouseNumberFromStreet(street string) (rest, number, affix string, ok bool) {
	street = strings.TrimSpace(street)
	if street == "" {
		return street, "", "", false
	}

	if loc := reMultiNumber.FindStringSubmatchIndex(street); loc != nil {
		return strings.TrimSpace(street[:loc[0]]),
			street[loc[2]:loc[3]],
			CleanAffix(street[loc[4]:loc[5]]),
			true
	}

	if loc := reSingleNumber.FindStringSubmatchIndex(street); loc != nil {
		return strings.TrimSpace(street[:loc[0]]),
			street[loc[2]:loc[3]],
			CleanAffix(street[loc[4]:loc[5]]),
			true
	}

	return street, "", "", false
}

// FillHouseNumberFromDescription locates street in a free-text description and
// reads the house number from the token right after it. The token closest to
// street by edit distance wins; on equal distance the later token wins.
// ok is false when no house number can be found.
func FillHouseNumberFromDescription(street, description string) (number, affix string, ok bool) {
	street = strings.TrimSpace(street)
	tokens := strings.Fields(description)
	if street == "" || len(tokens) == 0 {
		return "", "", false
	}

	target := strings.ToLower(street)
	best, bestDistance := -1, math.MaxInt
	for i, tok := range tokens {
		if d := levenshtein.ComputeDistance(strings.ToLower(tok), target); d <= bestDistance {
			best, bestDistance = i, d
		}
	}

	pos := best + 1
	if pos >= len(tokens) {
		return "", "", false
	}

	m := reNumberToken.FindStringSubmatch(strings.TrimRight(tokens[pos], ",.;:"))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// CleanAffix trims a house number affix and strips leading separators such as
// "-32" or "/A".
func CleanAffix(affix string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(affix), affixSeparators))
}

func normalizePostcode(postcode string) string {
	postcode = strings.TrimSpace(postcode)
	if m := rePostcode.FindStringSubmatch(postcode); m != nil {
		return m[1] + strings.ToUpper(m[2])
	}
	return postcode
}
