package breaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcodecheck/addresscleaner/internal/domain"
	"github.com/postcodecheck/addresscleaner/internal/engine/memory"
	"github.com/postcodecheck/addresscleaner/internal/query"
	apperrors "github.com/postcodecheck/addresscleaner/pkg/errors"
)

var errClusterDown = errors.New("elasticsearch search: connection refused")

// flakyEngine fails every call while down is set.
type flakyEngine struct {
	*memory.Engine
	down  bool
	calls int
}

func (f *flakyEngine) Search(ctx context.Context, q *query.Bool, limit int) ([]domain.Candidate, error) {
	f.calls++
	if f.down {
		return nil, errClusterDown
	}
	return f.Engine.Search(ctx, q, limit)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func TestEngine_PassesThroughWhenClosed(t *testing.T) {
	ctx := context.Background()
	inner := &flakyEngine{Engine: memory.New()}
	eng := New(inner, testConfig("test-closed"), testLogger())

	r := domain.NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "", domain.NumberTypeEven, 2, 40)
	require.NoError(t, eng.Index(ctx, &r))

	got, err := eng.Search(ctx, query.Build(domain.Address{Street: "Dorpstraat"}), 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].Record.ID)

	names, err := eng.Suggest(ctx, "dorp", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dorpstraat"}, names)

	require.NoError(t, eng.Delete(ctx, r.ID))
	assert.Equal(t, gobreaker.StateClosed, eng.State())
}

func TestEngine_TripsAndReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	inner := &flakyEngine{Engine: memory.New(), down: true}
	eng := New(inner, testConfig("test-trip"), testLogger())
	q := query.Build(domain.Address{City: "Ede"})

	for i := 0; i < 3; i++ {
		_, err := eng.Search(ctx, q, 20)
		require.ErrorIs(t, err, errClusterDown)
		assert.False(t, errors.Is(err, apperrors.ErrServiceUnavail))
	}
	assert.Equal(t, gobreaker.StateOpen, eng.State())

	_, err := eng.Search(ctx, q, 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the engine")
}

func TestEngine_RecoversAfterTimeout(t *testing.T) {
	ctx := context.Background()
	inner := &flakyEngine{Engine: memory.New(), down: true}
	eng := New(inner, testConfig("test-recover"), testLogger())
	q := query.Build(domain.Address{City: "Ede"})

	for i := 0; i < 3; i++ {
		_, _ = eng.Search(ctx, q, 20)
	}
	require.Equal(t, gobreaker.StateOpen, eng.State())

	inner.down = false
	time.Sleep(80 * time.Millisecond)

	_, err := eng.Search(ctx, q, 20)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, eng.State())
}

func TestEngine_CancellationDoesNotTrip(t *testing.T) {
	inner := &flakyEngine{Engine: memory.New()}
	eng := New(inner, testConfig("test-cancel"), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := domain.NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "", domain.NumberTypeEven, 2, 40)
	require.NoError(t, inner.Index(context.Background(), &r))

	for i := 0; i < 5; i++ {
		_, err := eng.Search(ctx, query.Build(domain.Address{City: "Amsterdam"}), 20)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, eng.State())
}

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, 0.0, stateToFloat(gobreaker.StateClosed))
	assert.Equal(t, 1.0, stateToFloat(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, stateToFloat(gobreaker.StateOpen))
}
