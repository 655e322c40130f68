package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/query"
)

var (
	dorpstraatEven = domain.NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "Amsterdam", domain.NumberTypeEven, 2, 40)
	dorpstraatOdd  = domain.NewReferenceRecord("1234AC", "Dorpstraat", "Amsterdam", "Amsterdam", domain.NumberTypeOdd, 1, 39)
	milhezerweg    = domain.NewReferenceRecord("5754AB", "Milhezerweg", "Deurne", "Deurne", domain.NumberTypeMixed, 1, 99)
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng := New()
	require.NoError(t, eng.BulkIndex(context.Background(), []domain.ReferenceRecord{
		dorpstraatEven, dorpstraatOdd, milhezerweg,
	}))
	return eng
}

func ids(candidates []domain.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Record.ID
	}
	return out
}

func TestEngine_IndexAndDelete(t *testing.T) {
	ctx := context.Background()
	eng := New()

	r := dorpstraatEven
	require.NoError(t, eng.Index(ctx, &r))
	require.NoError(t, eng.Index(ctx, &r))
	assert.Equal(t, 1, eng.Len())

	require.NoError(t, eng.Delete(ctx, r.ID))
	assert.Equal(t, 0, eng.Len())

	// deleting an unknown id is not an error
	assert.NoError(t, eng.Delete(ctx, "missing"))
}

func TestEngine_Search_EmptyQuery(t *testing.T) {
	eng := newTestEngine(t)

	got, err := eng.Search(context.Background(), query.Build(domain.Address{}), 20)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_Search_ParityIsMandatory(t *testing.T) {
	eng := newTestEngine(t)

	got, err := eng.Search(context.Background(), query.Build(domain.Address{
		Street:      "Dorpstraat",
		City:        "Amsterdam",
		HouseNumber: "28",
	}), 20)
	require.NoError(t, err)

	// the odd range is excluded; the mixed range survives on the range clauses
	assert.Equal(t, []string{dorpstraatEven.ID, milhezerweg.ID}, ids(got))
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestEngine_Search_FuzzyStreet(t *testing.T) {
	eng := newTestEngine(t)

	got, err := eng.Search(context.Background(), query.Build(domain.Address{Street: "Milhezrweg"}), 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, milhezerweg.ID, got[0].Record.ID)
}

func TestEngine_Search_ExactBeatsFuzzy(t *testing.T) {
	eng := newTestEngine(t)

	got, err := eng.Search(context.Background(), query.Build(domain.Address{Postcode: "1234AB", Street: "Dorpstraat"}), 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, dorpstraatEven.ID, got[0].Record.ID)
	assert.Equal(t, dorpstraatOdd.ID, got[1].Record.ID)
}

func TestEngine_Search_Description(t *testing.T) {
	eng := newTestEngine(t)

	got, err := eng.Search(context.Background(), query.Build(domain.Address{
		Description: "woning aan de Milhezerweg (Deurne)",
	}), 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, milhezerweg.ID, got[0].Record.ID)
}

func TestEngine_Search_Limit(t *testing.T) {
	eng := newTestEngine(t)

	got, err := eng.Search(context.Background(), query.Build(domain.Address{City: "Amsterdam"}), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = eng.Search(context.Background(), query.Build(domain.Address{City: "Amsterdam"}), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_Search_StableOrderOnEqualScores(t *testing.T) {
	eng := newTestEngine(t)
	q := query.Build(domain.Address{City: "Amsterdam"})

	first, err := eng.Search(context.Background(), q, 20)
	require.NoError(t, err)
	second, err := eng.Search(context.Background(), q, 20)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Less(t, first[0].Record.ID, first[1].Record.ID)
}

func TestEngine_Search_CancelledContext(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Search(ctx, query.Build(domain.Address{City: "Amsterdam"}), 20)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Suggest(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)
	cafe := domain.NewReferenceRecord("1000AA", "Café de Paris", "Amsterdam", "", domain.NumberTypeMixed, 1, 9)
	require.NoError(t, eng.Index(ctx, &cafe))

	got, err := eng.Suggest(ctx, "dorp", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dorpstraat"}, got)

	got, err = eng.Suggest(ctx, "CAFE", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Café de Paris"}, got)

	got, err = eng.Suggest(ctx, " ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAnalyzeDutch(t *testing.T) {
	assert.Equal(t, []string{"woning", "milhezerweg", "deurn"}, analyzeDutch("Woning aan de Milhezerweg, Deurne"))
	assert.Equal(t, []string{"1234ab", "dorpstraat", "amsterdam"}, analyzeDutch("1234AB Dorpstraat Amsterdam"))
	assert.Equal(t, []string{"bak"}, analyzeDutch("bakken"))
	assert.Equal(t, []string{"eendracht"}, analyzeDutch("Ééndracht"))
	assert.Empty(t, analyzeDutch("de van het"))
}
