package devicedir

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantflow/plantflow/internal/model"
)

type flakyDir struct {
	*Memory
	fail bool
}

func (d *flakyDir) Exists(ctx context.Context, id string) (bool, error) {
	if d.fail {
		return false, errors.New("connection refused")
	}
	return d.Memory.Exists(ctx, id)
}

func (d *flakyDir) Create(ctx context.Context, id string, meta Metadata) (model.Device, error) {
	if d.fail {
		return model.Device{}, errors.New("connection refused")
	}
	return d.Memory.Create(ctx, id, meta)
}

func TestBreakerPassesDomainErrorsThrough(t *testing.T) {
	b := NewBreaker(NewMemory(), "test", 2, time.Second)
	ctx := context.Background()

	_, err := b.Create(ctx, "plant-001", Metadata{Name: "first"})
	require.NoError(t, err)

	// Repeated duplicates exceed the trip threshold but must not open the
	// breaker; they are outcomes, not failures.
	for i := 0; i < 5; i++ {
		_, err = b.Create(ctx, "plant-001", Metadata{})
		require.ErrorIs(t, err, ErrAlreadyExists)
	}
	_, err = b.Get(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	exists, err := b.Exists(ctx, "plant-001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBreakerTripsOnInfrastructureFailures(t *testing.T) {
	dir := &flakyDir{Memory: NewMemory(), fail: true}
	b := NewBreaker(dir, "test", 2, time.Minute)
	ctx := context.Background()

	_, err := b.Exists(ctx, "plant-001")
	require.Error(t, err)
	_, err = b.Exists(ctx, "plant-001")
	require.Error(t, err)

	_, err = b.Exists(ctx, "plant-001")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	// While open the inner directory is never reached, even for calls that
	// would now succeed.
	dir.fail = false
	_, err = b.Create(ctx, "plant-001", Metadata{})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}
