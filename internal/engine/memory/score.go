package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/postcodecheck/addresscleaner/internal/query"
)

// score evaluates q against the document. ok is false when the document does
// not match: a Must clause failed, or there are no Must clauses and no Should
// clause matched.
func (d document) score(q *query.Bool) (float64, bool) {
	total := 0.0
	for _, c := range q.Must {
		s, ok := d.clauseScore(c)
		if !ok {
			return 0, false
		}
		total += s
	}

	matchedShould := false
	for _, c := range q.Should {
		if s, ok := d.clauseScore(c); ok {
			total += s
			matchedShould = true
		}
	}
	if len(q.Must) == 0 && !matchedShould {
		return 0, false
	}
	return total * query.EffectiveBoost(q.Boost), true
}

func (d document) clauseScore(c query.Clause) (float64, bool) {
	switch c := c.(type) {
	case *query.Bool:
		return d.score(c)
	case query.Term:
		v, ok := d.keyword(c.Field)
		if !ok || v == "" || v != strings.ToLower(c.Value) {
			return 0, false
		}
		return query.EffectiveBoost(c.Boost), true
	case query.Fuzzy:
		return d.fuzzyScore(c)
	case query.Match:
		return d.matchScore(c)
	case query.Range:
		v, ok := d.integer(c.Field)
		if !ok {
			return 0, false
		}
		if (c.Gte != nil && v < *c.Gte) || (c.Lte != nil && v > *c.Lte) {
			return 0, false
		}
		return query.EffectiveBoost(c.Boost), true
	}
	return 0, false
}

// fuzzyScore matches within MaxEdits edits; fewer edits score higher. As with
// Lucene, a term cannot be fuzzied into a completely different one: the edits
// must stay below its length.
func (d document) fuzzyScore(c query.Fuzzy) (float64, bool) {
	v, ok := d.keyword(c.Field)
	if !ok || v == "" {
		return 0, false
	}
	value := strings.ToLower(c.Value)
	n := utf8.RuneCountInString(value)
	dist := levenshtein.ComputeDistance(v, value)
	if dist > c.MaxEdits || dist >= n {
		return 0, false
	}
	return query.EffectiveBoost(c.Boost) * (1 - float64(dist)/float64(n)), true
}

// matchScore is the fraction of analyzed query tokens found in the field.
func (d document) matchScore(c query.Match) (float64, bool) {
	var field []string
	switch c.Field {
	case query.FieldStreetDutch:
		field = d.street
	case query.FieldComplete:
		field = d.complete
	default:
		return 0, false
	}

	tokens := analyzeDutch(c.Text)
	if len(tokens) == 0 {
		return 0, false
	}

	hits := 0
	for _, t := range tokens {
		for _, f := range field {
			if t == f {
				hits++
				break
			}
		}
	}
	if hits == 0 {
		return 0, false
	}
	return query.EffectiveBoost(c.Boost) * float64(hits) / float64(len(tokens)), true
}

func (d document) keyword(field string) (string, bool) {
	r := d.record
	switch field {
	case query.FieldPostcode:
		return strings.ToLower(r.Postcode), true
	case query.FieldStreet:
		return strings.ToLower(r.Street), true
	case query.FieldCity:
		return strings.ToLower(r.City), true
	case query.FieldMunicipality:
		return strings.ToLower(r.Municipality), true
	case query.FieldNumberType:
		return string(r.NumberType), true
	}
	return "", false
}

func (d document) integer(field string) (int, bool) {
	switch field {
	case query.FieldMinNumber:
		return d.record.MinNumber, true
	case query.FieldMaxNumber:
		return d.record.MaxNumber, true
	}
	return 0, false
}
