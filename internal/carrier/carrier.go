package carrier

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const (
	Twilio      = "twilio"
	Vonage      = "vonage"
	Plivo       = "plivo"
	Infobip     = "infobip"
	MessageBird = "messagebird"
	Viber       = "viber"
	WhatsApp    = "whatsapp"
)

// Adapter sends one message through one external provider. Adapters never
// retry; retry and failover belong to the caller.
type Adapter interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error)
}

type HTTPOptions struct {
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

const (
	defaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

func newRestClient(opts HTTPOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
	}

	return resty.New().
		SetTransport(transport).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
}

// transportError wraps a request that never produced a response (DNS, connect,
// timeout, cancelled context).
func transportError(carrier string, err error) error {
	return &domain.ProviderError{Carrier: carrier, Message: err.Error()}
}

func statusError(carrier string, resp *resty.Response, message string) error {
	if message == "" {
		message = resp.Status()
	}
	return &domain.ProviderError{
		Carrier:    carrier,
		HTTPStatus: resp.StatusCode(),
		Message:    message,
	}
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

func notConfigured(carrier, reason string) error {
	return &domain.ConfigurationError{Carrier: carrier, Reason: reason}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
