// Package rank picks the winning reference record among the candidates
// retrieved for a query.
package rank

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

// DecayFactor bounds the score band worth comparing: candidates scoring below
// DecayFactor times the best score are not considered.
const DecayFactor = 0.5

// Selection is the outcome of ranking one candidate list.
type Selection struct {
	Found      bool
	Winner     domain.Candidate
	Index      int
	Distance   int
	Considered int
	Cutoff     float64
}

// Select walks candidates in the given (descending score) order, stops at the
// first candidate scoring below half of the first score and returns the
// considered candidate closest to q by Distance. On equal distance the earlier
// candidate wins. An empty list yields a selection with Found == false.
func Select(q domain.Address, candidates []domain.Candidate) Selection {
	sel := Selection{Index: -1}
	if len(candidates) == 0 {
		return sel
	}

	sel.Cutoff = candidates[0].Score * DecayFactor
	for i, c := range candidates {
		if c.Score < sel.Cutoff {
			break
		}
		sel.Considered++

		d := Distance(q, c.Record)
		if !sel.Found || d < sel.Distance {
			sel.Found = true
			sel.Winner = c
			sel.Index = i
			sel.Distance = d
		}
	}
	return sel
}

// Distance is the address similarity of q to r: the city distance (the better
// of r's city and municipality) plus the street and postcode distances.
// Comparison is case-insensitive and a field absent on either side adds zero.
// The query city falls back to the query municipality when absent.
func Distance(q domain.Address, r domain.ReferenceRecord) int {
	qCity := q.City
	if qCity == "" {
		qCity = q.Municipality
	}
	return cityDistance(qCity, r) + fieldDistance(q.Street, r.Street) + fieldDistance(q.Postcode, r.Postcode)
}

// cityDistance only takes the minimum over the place names r actually has,
// otherwise a record without a municipality would always score zero.
func cityDistance(qCity string, r domain.ReferenceRecord) int {
	city, municipality := strings.TrimSpace(r.City), strings.TrimSpace(r.Municipality)
	switch {
	case city == "":
		return fieldDistance(qCity, municipality)
	case municipality == "":
		return fieldDistance(qCity, city)
	}
	return min(fieldDistance(qCity, city), fieldDistance(qCity, municipality))
}

func fieldDistance(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
}
