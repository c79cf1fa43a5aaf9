package devicedir

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/plantflow/plantflow/internal/model"
)

// Breaker wraps a Directory with a circuit breaker so a dead registry trips
// fast instead of stalling every in-flight message on a timeout.
//
// ErrAlreadyExists and ErrNotFound are domain outcomes, not infrastructure
// failures; they pass through without counting against the breaker.
type Breaker struct {
	inner Directory
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(inner Directory, name string, consecutiveFails uint32, openFor time.Duration) *Breaker {
	return &Breaker{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= consecutiveFails
			},
		}),
	}
}

type createResult struct {
	dev model.Device
	err error
}

func (b *Breaker) Exists(ctx context.Context, id string) (bool, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.Exists(ctx, id)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (b *Breaker) Create(ctx context.Context, id string, meta Metadata) (model.Device, error) {
	res, err := b.cb.Execute(func() (any, error) {
		dev, err := b.inner.Create(ctx, id, meta)
		if errors.Is(err, ErrAlreadyExists) {
			return createResult{dev: dev, err: err}, nil
		}
		return createResult{dev: dev}, err
	})
	if err != nil {
		return model.Device{}, err
	}
	cr := res.(createResult)
	return cr.dev, cr.err
}

func (b *Breaker) Get(ctx context.Context, id string) (model.Device, error) {
	res, err := b.cb.Execute(func() (any, error) {
		dev, err := b.inner.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return createResult{dev: dev, err: err}, nil
		}
		return createResult{dev: dev}, err
	})
	if err != nil {
		return model.Device{}, err
	}
	cr := res.(createResult)
	return cr.dev, cr.err
}
