package domain

import (
	"encoding/json"
	"time"
)

type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// ProviderResult is what a carrier returns for an accepted message.
type ProviderResult struct {
	MessageID   string
	Cost        *float64
	RawResponse json.RawMessage
}

// CarrierAttempt records one failed carrier attempt during failover.
type CarrierAttempt struct {
	Carrier string    `json:"carrier"`
	Kind    ErrorKind `json:"kind"`
	Detail  string    `json:"detail"`
}

// SendError is the serializable form of a per-recipient failure.
type SendError struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

// SendResult is the outcome of one recipient send. Exactly one of MessageID
// (on success) or Error (on failure) is set.
type SendResult struct {
	To          string           `json:"to"`
	Success     bool             `json:"success"`
	MessageID   string           `json:"messageId,omitempty"`
	Carrier     string           `json:"carrier,omitempty"`
	Cost        *float64         `json:"cost,omitempty"`
	Error       *SendError       `json:"error,omitempty"`
	Attempts    []CarrierAttempt `json:"attempts,omitempty"`
	RawResponse json.RawMessage  `json:"rawResponse,omitempty"`
	SentAt      time.Time        `json:"sentAt"`

	// Err keeps the typed error for errors.As inspection by callers.
	Err error `json:"-"`
}

// Kind returns the failure kind, or an empty kind on success.
func (r SendResult) Kind() ErrorKind {
	if r.Error == nil {
		return ""
	}
	return r.Error.Kind
}

// MessageLog is a persisted send record.
type MessageLog struct {
	ID          int64           `db:"id" json:"id"`
	PhoneNumber string          `db:"phone_number" json:"phoneNumber"`
	Body        string          `db:"body" json:"body"`
	Status      LogStatus       `db:"status" json:"status"`
	Carrier     *string         `db:"carrier" json:"carrier,omitempty"`
	MessageID   *string         `db:"message_id" json:"messageId,omitempty"`
	Cost        *float64        `db:"cost" json:"cost,omitempty"`
	ErrorKind   *string         `db:"error_kind" json:"errorKind,omitempty"`
	ErrorDetail *string         `db:"error_detail" json:"errorDetail,omitempty"`
	Attempts    json.RawMessage `db:"attempts" json:"attempts,omitempty"`
	CampaignID  *int64          `db:"campaign_id" json:"campaignId,omitempty"`
	TemplateID  *int64          `db:"template_id" json:"templateId,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

type SentMessageCache struct {
	Carrier string    `json:"carrier"`
	To      string    `json:"to"`
	SentAt  time.Time `json:"sentAt"`
}

type Template struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Body      string    `db:"body" json:"body"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
