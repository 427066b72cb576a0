package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindInvalidRecipient  ErrorKind = "invalid_recipient"
	KindProvider          ErrorKind = "provider"
	KindAllCarriersFailed ErrorKind = "all_carriers_failed"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTemplateRender    ErrorKind = "template_render"
	KindInternal          ErrorKind = "internal"
)

var (
	ErrInvalidTransition     = errors.New("invalid campaign status transition")
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrAutoresponderNotFound = errors.New("autoresponder not found")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrNoMessageContent      = errors.New("no message content resolvable")
	ErrCachedMessageNotFound = errors.New("cached message not found")
)

// ConfigurationError means a carrier lacks the credentials it needs.
type ConfigurationError struct {
	Carrier string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("carrier %s is not configured: %s", e.Carrier, e.Reason)
}

// InvalidRecipientError means the number cannot be normalized. No carrier can
// fix it, so failover stops.
type InvalidRecipientError struct {
	Number string
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("invalid recipient number %q", e.Number)
}

// ProviderError covers network failures, timeouts, non-2xx responses and
// provider-level rejections. HTTPStatus is 0 when no response was received.
type ProviderError struct {
	Carrier    string
	HTTPStatus int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.HTTPStatus == 0 {
		return fmt.Sprintf("carrier %s failed: %s", e.Carrier, e.Message)
	}
	return fmt.Sprintf("carrier %s failed with status %d: %s", e.Carrier, e.HTTPStatus, e.Message)
}

// AllCarriersFailedError aggregates every attempt, in order.
type AllCarriersFailedError struct {
	Attempts []CarrierAttempt
}

func (e *AllCarriersFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no carrier available"
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Carrier+": "+a.Detail)
	}
	return "all carriers failed: " + strings.Join(parts, "; ")
}

type RateLimitedError struct {
	Actor             string
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %ds", e.Actor, e.RetryAfterSeconds)
}

// TemplateRenderError is raised only when a required template is missing or
// inactive. Unknown tokens inside a template are not an error.
type TemplateRenderError struct {
	TemplateID int64
	Reason     string
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("template %d cannot be rendered: %s", e.TemplateID, e.Reason)
}

// KindOf maps an error onto the failure taxonomy.
func KindOf(err error) ErrorKind {
	var (
		cfgErr      *ConfigurationError
		recipErr    *InvalidRecipientError
		providerErr *ProviderError
		allErr      *AllCarriersFailedError
		rateErr     *RateLimitedError
		tplErr      *TemplateRenderError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &recipErr):
		return KindInvalidRecipient
	case errors.As(err, &allErr):
		return KindAllCarriersFailed
	case errors.As(err, &providerErr):
		return KindProvider
	case errors.As(err, &rateErr):
		return KindRateLimited
	case errors.As(err, &tplErr):
		return KindTemplateRender
	default:
		return KindInternal
	}
}

// NewSendError converts err into its serializable form.
func NewSendError(err error) *SendError {
	if err == nil {
		return nil
	}
	return &SendError{Kind: KindOf(err), Detail: err.Error()}
}
