package carrier

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/observability"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

// Registry holds the known adapters and decides the order in which they are
// tried.
type Registry struct {
	defaultDriver string
	fallback      []string
	adapters      map[string]Adapter
}

func NewRegistry(defaultDriver string, fallback []string, adapters ...Adapter) *Registry {
	r := &Registry{
		defaultDriver: defaultDriver,
		fallback:      append([]string(nil), fallback...),
		adapters:      make(map[string]Adapter, len(adapters)),
	}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Configured returns the names of adapters with complete credentials, sorted.
func (r *Registry) Configured() []string {
	names := make([]string, 0, len(r.adapters))
	for name, a := range r.adapters {
		if a.IsConfigured() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve returns the ordered candidate list. An explicit driver is used
// alone and never replaced, even when it is not configured. Otherwise the
// default driver is followed by the fallback priority, deduplicated and
// limited to configured adapters.
func (r *Registry) Resolve(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}

	seen := make(map[string]bool, len(r.fallback)+1)
	candidates := make([]string, 0, len(r.fallback)+1)

	for _, name := range append([]string{r.defaultDriver}, r.fallback...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if a, ok := r.adapters[name]; ok && a.IsConfigured() {
			candidates = append(candidates, name)
		}
	}

	return candidates
}

// Delivery describes the carrier that accepted a message and the failed
// attempts that preceded it.
type Delivery struct {
	Carrier  string
	Result   *domain.ProviderResult
	Attempts []domain.CarrierAttempt
}

// DispatchWithFailover tries candidates strictly in order. Configuration and
// provider errors move on to the next candidate; an invalid recipient stops
// immediately. When every candidate fails the returned error is an
// *domain.AllCarriersFailedError listing each attempt in order.
func (r *Registry) DispatchWithFailover(ctx context.Context, candidates []string, to, body, from string) (*Delivery, error) {
	delivery := &Delivery{}

	for _, name := range candidates {
		adapter, ok := r.adapters[name]
		if !ok {
			err := &domain.ConfigurationError{Carrier: name, Reason: "carrier is not registered"}
			delivery.Attempts = append(delivery.Attempts, attemptFrom(name, err))
			observability.CarrierAttempts.WithLabelValues(name, string(domain.KindConfiguration)).Inc()
			continue
		}

		start := time.Now()
		result, err := adapter.Send(ctx, to, body, from)
		observability.CarrierLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err == nil {
			observability.CarrierAttempts.WithLabelValues(name, "ok").Inc()
			delivery.Carrier = name
			delivery.Result = result
			return delivery, nil
		}

		kind := domain.KindOf(err)
		observability.CarrierAttempts.WithLabelValues(name, string(kind)).Inc()

		var recipientErr *domain.InvalidRecipientError
		if errors.As(err, &recipientErr) {
			delivery.Carrier = name
			delivery.Attempts = append(delivery.Attempts, attemptFrom(name, err))
			return delivery, err
		}

		logger.Warnf("Carrier %s failed for %s, trying next candidate: %v", name, to, err)
		delivery.Attempts = append(delivery.Attempts, attemptFrom(name, err))
	}

	return delivery, &domain.AllCarriersFailedError{Attempts: delivery.Attempts}
}

func attemptFrom(carrier string, err error) domain.CarrierAttempt {
	return domain.CarrierAttempt{
		Carrier: carrier,
		Kind:    domain.KindOf(err),
		Detail:  err.Error(),
	}
}
