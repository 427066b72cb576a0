package carrier

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

type BreakerSettings struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

type breakerAdapter struct {
	Adapter
	cb *gobreaker.CircuitBreaker
}

// WithCircuitBreaker stops calling a carrier after repeated provider errors.
// While open, Send fails fast with a ProviderError so failover moves on.
// Configuration and recipient errors do not count as carrier failures.
func WithCircuitBreaker(a Adapter, s BreakerSettings) Adapter {
	maxFailures := s.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        a.Name(),
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var providerErr *domain.ProviderError
			return err == nil || !errors.As(err, &providerErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit breaker for carrier %s changed from %s to %s", name, from, to)
		},
	})

	return &breakerAdapter{Adapter: a, cb: cb}
}

func (b *breakerAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.Adapter.Send(ctx, to, body, from)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.ProviderError{Carrier: b.Name(), Message: "circuit breaker " + err.Error()}
	}
	if err != nil {
		return nil, err
	}

	return res.(*domain.ProviderResult), nil
}
