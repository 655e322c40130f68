package query

import (
	"strconv"
	"strings"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

// Clause weights. Exact street and city matches dominate; municipality is a
// coarser signal than city.
const (
	BoostPostcode     = 20
	BoostStreet       = 30
	BoostCity         = 30
	BoostMunicipality = 5
)

// DefaultMaxEdits is the edit budget of fuzzy clauses.
const DefaultMaxEdits = 2

// Build derives the retrieval query for a normalized address. Every available
// signal is an optional clause; only the house number parity is mandatory.
// An address without usable fields yields an empty query.
func Build(addr domain.Address) *Bool {
	q := &Bool{}

	if v := strings.TrimSpace(addr.Postcode); v != "" {
		q.Should = append(q.Should, Term{Field: FieldPostcode, Value: strings.ToLower(v), Boost: BoostPostcode})
	}

	if v := strings.TrimSpace(addr.Street); v != "" {
		lv := strings.ToLower(v)
		q.Should = append(q.Should,
			Term{Field: FieldStreet, Value: lv, Boost: BoostStreet},
			Fuzzy{Field: FieldStreet, Value: lv, MaxEdits: DefaultMaxEdits},
			Match{Field: FieldStreetDutch, Text: v},
		)
	}

	if v := strings.TrimSpace(addr.City); v != "" {
		lv := strings.ToLower(v)
		q.Should = append(q.Should,
			Fuzzy{Field: FieldCity, Value: lv, MaxEdits: DefaultMaxEdits},
			Term{Field: FieldCity, Value: lv, Boost: BoostCity},
		)
	}

	if v := strings.TrimSpace(addr.Municipality); v != "" {
		lv := strings.ToLower(v)
		q.Should = append(q.Should,
			Fuzzy{Field: FieldMunicipality, Value: lv, MaxEdits: DefaultMaxEdits},
			Term{Field: FieldMunicipality, Value: lv, Boost: BoostMunicipality},
		)
	}

	if n, ok := ParseHouseNumber(addr.HouseNumber); ok {
		q.Must = append(q.Must, &Bool{Should: []Clause{
			Term{Field: FieldNumberType, Value: string(domain.NumberTypeMixed)},
			Term{Field: FieldNumberType, Value: string(domain.ParityOf(n))},
		}})
		q.Should = append(q.Should,
			Range{Field: FieldMinNumber, Lte: intPtr(n)},
			Range{Field: FieldMaxNumber, Gte: intPtr(n)},
		)
	}

	if v := strings.TrimSpace(addr.Description); v != "" {
		q.Should = append(q.Should, Match{Field: FieldComplete, Text: v})
	}

	return q
}

// ParseHouseNumber parses s as a non-negative integer. Anything else, including
// numbers with a letter suffix, reports false.
func ParseHouseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func intPtr(n int) *int {
	return &n
}
