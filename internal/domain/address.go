package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NumberType classifies the parity of the house numbers covered by a reference range.
type NumberType string

const (
	NumberTypeOdd   NumberType = "odd"
	NumberTypeEven  NumberType = "even"
	NumberTypeMixed NumberType = "mixed"
)

// IsValid reports whether t is one of the known number types.
func (t NumberType) IsValid() bool {
	switch t {
	case NumberTypeOdd, NumberTypeEven, NumberTypeMixed:
		return true
	}
	return false
}

// ParityOf returns the number type matching the parity of n.
func ParityOf(n int) NumberType {
	if n%2 == 0 {
		return NumberTypeEven
	}
	return NumberTypeOdd
}

// Address is a decomposed postal address whose fields are independently optional.
// An empty string means the field is absent.
//
// HouseNumberAffix doubles as the upper bound of a number range when the input
// contained two numbers ("Eikenlaan 31 en 33" yields number "31", affix "33").
type Address struct {
	Postcode         string `json:"postcode,omitempty"`
	City             string `json:"city,omitempty"`
	Municipality     string `json:"municipality,omitempty"`
	Street           string `json:"street,omitempty"`
	HouseNumber      string `json:"house_number,omitempty"`
	HouseNumberAffix string `json:"house_number_affix,omitempty"`
	Description      string `json:"description,omitempty"`
}

// IsEmpty reports whether no field of the address is populated.
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// ReferenceRecord is one entry of the authoritative postcode corpus: a street
// segment in a city with the house number range it covers.
type ReferenceRecord struct {
	ID           string     `json:"id"`
	Postcode     string     `json:"postcode"`
	Street       string     `json:"street"`
	City         string     `json:"city"`
	Municipality string     `json:"municipality,omitempty"`
	NumberType   NumberType `json:"numbertype"`
	MinNumber    int        `json:"minnumber"`
	MaxNumber    int        `json:"maxnumber"`
}

// referenceNamespace seeds the deterministic record IDs.
var referenceNamespace = uuid.MustParse("6f1c1a52-57a4-4a0b-9f0e-3cf2b1f6a9d1")

// NewReferenceRecord builds a record and assigns its deterministic ID.
func NewReferenceRecord(postcode, street, city, municipality string, numberType NumberType, minNumber, maxNumber int) ReferenceRecord {
	r := ReferenceRecord{
		Postcode:     strings.TrimSpace(postcode),
		Street:       strings.TrimSpace(street),
		City:         strings.TrimSpace(city),
		Municipality: strings.TrimSpace(municipality),
		NumberType:   numberType,
		MinNumber:    minNumber,
		MaxNumber:    maxNumber,
	}
	r.ID = r.Key()
	return r
}

// Key derives the stable identifier of a record from its content, so the same
// range imported twice overwrites itself.
func (r ReferenceRecord) Key() string {
	name := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		strings.ToLower(r.Postcode), strings.ToLower(r.Street), strings.ToLower(r.City),
		r.NumberType, r.MinNumber, r.MaxNumber)
	return uuid.NewSHA1(referenceNamespace, []byte(name)).String()
}

// Complete returns the denormalized full-text representation used for
// description matching.
func (r ReferenceRecord) Complete() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", r.Postcode, r.Street, r.City))
}

// Covers reports whether house number n lies in the record's range and parity.
func (r ReferenceRecord) Covers(n int) bool {
	if n < r.MinNumber || n > r.MaxNumber {
		return false
	}
	return r.NumberType == NumberTypeMixed || r.NumberType == ParityOf(n)
}

// Address converts the record into an address carrying only the geographic
// fields; house number data comes from the query.
func (r ReferenceRecord) Address() Address {
	return Address{
		Postcode:     r.Postcode,
		City:         r.City,
		Municipality: r.Municipality,
		Street:       r.Street,
	}
}

// Candidate is a reference record retrieved for one query, with the opaque
// engine-assigned relevance score (higher is better).
type Candidate struct {
	Record ReferenceRecord `json:"record"`
	Score  float64         `json:"score"`
}

// Resolution is the outcome of resolving one address.
type Resolution struct {
	Matched    bool            `json:"matched"`
	Query      Address         `json:"query"`
	Address    Address         `json:"address"`
	Record     ReferenceRecord `json:"record"`
	Score      float64         `json:"score,omitempty"`
	Distance   int             `json:"distance,omitempty"`
	Considered int             `json:"considered"`
}
