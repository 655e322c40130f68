// Package query defines the engine-neutral boolean query tree used to retrieve
// reference candidates, and the builder that derives it from an address.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names of the indexed reference document.
const (
	FieldPostcode     = "postcode"
	FieldStreet       = "street"
	FieldStreetDutch  = "street.dutch"
	FieldCity         = "city"
	FieldMunicipality = "municipality"
	FieldNumberType   = "numbertype"
	FieldMinNumber    = "minnumber"
	FieldMaxNumber    = "maxnumber"
	FieldComplete     = "complete"
)

// Clause is a node of the query tree. The set of clause types is closed.
type Clause interface {
	fmt.Stringer
	clause()
}

// Term matches a keyword field exactly (case-insensitive).
type Term struct {
	Field string
	Value string
	Boost float64
}

// Fuzzy matches a keyword field within MaxEdits edits.
type Fuzzy struct {
	Field    string
	Value    string
	MaxEdits int
	Boost    float64
}

// Match runs an analyzed full-text match. Text is raw user input; engines that
// parse query syntax must escape it first.
type Match struct {
	Field string
	Text  string
	Boost float64
}

// Range matches an integer field within the optional bounds, both inclusive.
type Range struct {
	Field string
	Gte   *int
	Lte   *int
	Boost float64
}

// Bool combines clauses. A document must match every Must clause; Should
// clauses only add to the score, but when there are no Must clauses at least
// one Should clause has to match.
type Bool struct {
	Must   []Clause
	Should []Clause
	Boost  float64
}

func (Term) clause()  {}
func (Fuzzy) clause() {}
func (Match) clause() {}
func (Range) clause() {}
func (*Bool) clause() {}

// IsEmpty reports whether the query has no clauses at all.
func (b *Bool) IsEmpty() bool {
	return b == nil || (len(b.Must) == 0 && len(b.Should) == 0)
}

// EffectiveBoost returns boost, or 1 when it is unset.
func EffectiveBoost(boost float64) float64 {
	if boost <= 0 {
		return 1
	}
	return boost
}

func (t Term) String() string {
	return t.Field + ":" + quote(t.Value) + boostSuffix(t.Boost)
}

func (f Fuzzy) String() string {
	return f.Field + ":" + quote(f.Value) + "~" + strconv.Itoa(f.MaxEdits) + boostSuffix(f.Boost)
}

func (m Match) String() string {
	return m.Field + ":(" + Escape(m.Text) + ")" + boostSuffix(m.Boost)
}

func (r Range) String() string {
	lo, hi := "*", "*"
	if r.Gte != nil {
		lo = strconv.Itoa(*r.Gte)
	}
	if r.Lte != nil {
		hi = strconv.Itoa(*r.Lte)
	}
	return r.Field + ":[" + lo + " TO " + hi + "]" + boostSuffix(r.Boost)
}

// String renders the tree in Lucene query syntax, for logs and debugging.
func (b *Bool) String() string {
	if b == nil {
		return ""
	}
	parts := make([]string, 0, len(b.Must)+len(b.Should))
	for _, c := range b.Must {
		parts = append(parts, "+"+group(c))
	}
	for _, c := range b.Should {
		parts = append(parts, group(c))
	}
	return strings.Join(parts, " ")
}

func group(c Clause) string {
	if nested, ok := c.(*Bool); ok {
		return "(" + nested.String() + ")" + boostSuffix(nested.Boost)
	}
	return c.String()
}

func boostSuffix(boost float64) string {
	if boost <= 0 || boost == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(boost, 'f', -1, 64)
}

func quote(v string) string {
	if strings.ContainsAny(v, " \t") {
		return `"` + v + `"`
	}
	return v
}

// luceneSpecial lists the characters with a meaning in Lucene query syntax.
const luceneSpecial = `\+-!():^[]"{}~*?|&/`

// Escape makes text safe for a query-string parser so it is matched literally.
// Special characters are backslash-escaped; '<' and '>' cannot be escaped and
// are replaced by spaces.
func Escape(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 8)
	for _, r := range text {
		switch {
		case r == '<' || r == '>':
			sb.WriteByte(' ')
		case strings.ContainsRune(luceneSpecial, r):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
