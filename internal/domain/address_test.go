package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNumberType_IsValid(t *testing.T) {
	assert.True(t, NumberTypeOdd.IsValid())
	assert.True(t, NumberTypeEven.IsValid())
	assert.True(t, NumberTypeMixed.IsValid())
	assert.False(t, NumberType("").IsValid())
	assert.False(t, NumberType("ODD").IsValid())
}

func TestParityOf(t *testing.T) {
	assert.Equal(t, NumberTypeEven, ParityOf(0))
	assert.Equal(t, NumberTypeOdd, ParityOf(31))
	assert.Equal(t, NumberTypeEven, ParityOf(28))
}

func TestAddress_IsEmpty(t *testing.T) {
	assert.True(t, Address{}.IsEmpty())
	assert.False(t, Address{Description: "Dorpstraat 28"}.IsEmpty())
}

func TestNewReferenceRecord_DeterministicID(t *testing.T) {
	a := NewReferenceRecord(" 1234AB ", "Dorpstraat", "Amsterdam", "Amsterdam", NumberTypeEven, 2, 40)
	b := NewReferenceRecord("1234ab", "DORPSTRAAT", "amsterdam", "", NumberTypeEven, 2, 40)
	c := NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "Amsterdam", NumberTypeOdd, 1, 39)

	assert.Equal(t, "1234AB", a.Postcode)
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)

	_, err := uuid.Parse(a.ID)
	assert.NoError(t, err)
}

func TestReferenceRecord_Complete(t *testing.T) {
	r := NewReferenceRecord("5754AB", "Milhezerweg", "Deurne", "", NumberTypeMixed, 1, 99)
	assert.Equal(t, "5754AB Milhezerweg Deurne", r.Complete())

	r.Postcode = ""
	assert.Equal(t, "Milhezerweg Deurne", r.Complete())
}

func TestReferenceRecord_Covers(t *testing.T) {
	even := ReferenceRecord{NumberType: NumberTypeEven, MinNumber: 2, MaxNumber: 40}
	mixed := ReferenceRecord{NumberType: NumberTypeMixed, MinNumber: 1, MaxNumber: 9}

	assert.True(t, even.Covers(28))
	assert.False(t, even.Covers(29))
	assert.False(t, even.Covers(42))
	assert.True(t, mixed.Covers(4))
	assert.True(t, mixed.Covers(5))
	assert.False(t, mixed.Covers(0))
}

func TestReferenceRecord_Address(t *testing.T) {
	r := NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "Amsterdam", NumberTypeEven, 2, 40)

	assert.Equal(t, Address{
		Postcode:     "1234AB",
		City:         "Amsterdam",
		Municipality: "Amsterdam",
		Street:       "Dorpstraat",
	}, r.Address())
}
