package carrier

import "github.com/onurcolak/sms-dispatch-service/environments"

// NewAdapters builds one adapter per supported carrier from configuration.
func NewAdapters(cfg environments.CarriersConfig, opts HTTPOptions) []Adapter {
	return []Adapter{
		NewTwilio(cfg.Twilio, opts),
		NewVonage(cfg.Vonage, opts),
		NewPlivo(cfg.Plivo, opts),
		NewInfobip(cfg.Infobip, opts),
		NewMessageBird(cfg.MessageBird, opts),
		NewViber(cfg.Viber, opts),
		NewWhatsApp(cfg.WhatsApp, opts),
	}
}

// NewRegistryFromConfig wires every adapter, optionally behind a circuit
// breaker, into a registry using the dispatch priorities.
func NewRegistryFromConfig(dispatch environments.DispatchConfig, carriers environments.CarriersConfig) *Registry {
	opts := HTTPOptions{
		Timeout:        dispatch.RequestTimeout,
		ConnectTimeout: dispatch.ConnectTimeout,
	}

	adapters := NewAdapters(carriers, opts)
	if dispatch.BreakerEnabled {
		for i, a := range adapters {
			adapters[i] = WithCircuitBreaker(a, BreakerSettings{
				MaxConsecutiveFailures: dispatch.BreakerMaxFailures,
				OpenTimeout:            dispatch.BreakerOpenTimeout,
			})
		}
	}

	return NewRegistry(dispatch.DefaultDriver, dispatch.FallbackPriority, adapters...)
}
