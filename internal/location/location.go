// Package location answers the one-shot position request made when an alert
// is assembled. A failed lookup never blocks the alert; callers send
// without a location instead.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"safetour/internal/domain"
	"safetour/internal/ports"
)

var ErrUnavailable = errors.New("location unavailable")

// Static reports a fixed, configured position.
type Static struct {
	loc domain.Location
}

func NewStatic(latitude, longitude, accuracy float64) (*Static, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("invalid coordinates %.6f,%.6f", latitude, longitude)
	}
	if accuracy < 0 {
		accuracy = 0
	}
	return &Static{loc: domain.Location{Latitude: latitude, Longitude: longitude, Accuracy: accuracy}}, nil
}

func (s *Static) Locate(ctx context.Context) (domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return domain.Location{}, err
	}
	return s.loc, nil
}

// Unavailable is used when no provider is configured.
type Unavailable struct{}

func (Unavailable) Locate(context.Context) (domain.Location, error) {
	return domain.Location{}, ErrUnavailable
}

// Chain asks each provider in turn and returns the first fix. Every attempt
// gets its own timeout.
type Chain struct {
	providers []ports.LocationProvider
	timeout   time.Duration
	logger    *zap.Logger
}

func NewChain(timeout time.Duration, logger *zap.Logger, providers ...ports.LocationProvider) *Chain {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, timeout: timeout, logger: logger.Named("location")}
}

func (c *Chain) Locate(ctx context.Context) (domain.Location, error) {
	errs := make([]error, 0, len(c.providers))
	for index, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			return domain.Location{}, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		loc, err := provider.Locate(attemptCtx)
		cancel()
		if err == nil {
			return loc, nil
		}
		c.logger.Debug("location provider failed", zap.Int("provider", index), zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return domain.Location{}, ErrUnavailable
	}
	return domain.Location{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}
