package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type TriggerType string

const (
	TriggerKeyword     TriggerType = "keyword"
	TriggerIncomingSMS TriggerType = "incoming_sms"
	TriggerMissedCall  TriggerType = "missed_call"
	TriggerWebhook     TriggerType = "webhook"
)

// TriggerTypes lists every trigger type the engine understands.
var TriggerTypes = []TriggerType{TriggerKeyword, TriggerIncomingSMS, TriggerMissedCall, TriggerWebhook}

func ParseTriggerType(s string) (TriggerType, error) {
	for _, t := range TriggerTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown trigger type %q", s)
}

type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpContains     Operator = "contains"
	OpStartsWith   Operator = "starts_with"
	OpEndsWith     Operator = "ends_with"
)

// Operators lists every supported condition operator.
var Operators = []Operator{
	OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual,
	OpContains, OpStartsWith, OpEndsWith,
}

func (o Operator) IsValid() bool {
	for _, known := range Operators {
		if o == known {
			return true
		}
	}
	return false
}

type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

type Autoresponder struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	TriggerType          TriggerType     `json:"triggerType"`
	TriggerValue         json.RawMessage `json:"triggerValue,omitempty"`
	ResponseMessage      *string         `json:"responseMessage,omitempty"`
	TemplateID           *int64          `json:"templateId,omitempty"`
	IsActive             bool            `json:"isActive"`
	DelayMinutes         int             `json:"delayMinutes"`
	MaxTriggersPerNumber int             `json:"maxTriggersPerNumber"`
	Conditions           []Condition     `json:"conditions,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Keywords decodes TriggerValue as a keyword list. Both a JSON array and a
// comma separated JSON string are accepted.
func (a *Autoresponder) Keywords() ([]string, error) {
	if len(a.TriggerValue) == 0 {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(a.TriggerValue, &list); err == nil {
		return list, nil
	}

	var joined string
	if err := json.Unmarshal(a.TriggerValue, &joined); err != nil {
		return nil, fmt.Errorf("autoresponder %d: trigger value is not a keyword list: %w", a.ID, err)
	}
	return strings.Split(joined, ","), nil
}

// InboundEvent is an event offered to the trigger engine.
type InboundEvent struct {
	PhoneNumber string         `json:"phoneNumber"`
	TriggerType TriggerType    `json:"triggerType"`
	Data        map[string]any `json:"data,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// TriggerEvent is recorded once an autoresponder matched an inbound event.
type TriggerEvent struct {
	ID              string         `json:"id"`
	AutoresponderID int64          `json:"autoresponderId"`
	PhoneNumber     string         `json:"phoneNumber"`
	TriggerType     TriggerType    `json:"triggerType"`
	TriggerData     map[string]any `json:"triggerData,omitempty"`
	OccurredAt      time.Time      `json:"occurredAt"`
}

type AutomationStatus string

const (
	AutomationSuccess AutomationStatus = "success"
	AutomationFailed  AutomationStatus = "failed"
	AutomationPending AutomationStatus = "pending"
)

// AutomationLogEntry is the audit row of one autoresponder execution. Rows are
// never deleted; a pending row is finalized once when its delayed reply fires.
type AutomationLogEntry struct {
	ID              int64            `json:"id"`
	AutoresponderID int64            `json:"autoresponderId"`
	TriggerEventID  string           `json:"triggerEventId"`
	PhoneNumber     string           `json:"phoneNumber"`
	Status          AutomationStatus `json:"status"`
	MessageID       *string          `json:"messageId,omitempty"`
	CarrierUsed     *string          `json:"carrierUsed,omitempty"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	ErrorMessage    *string          `json:"errorMessage,omitempty"`
	ContextData     map[string]any   `json:"contextData,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// PendingReply is a delayed autoresponder reply waiting for DueAt.
type PendingReply struct {
	ID              int64          `json:"id"`
	AutoresponderID int64          `json:"autoresponderId"`
	AutomationLogID int64          `json:"automationLogId"`
	TriggerEventID  string         `json:"triggerEventId"`
	PhoneNumber     string         `json:"phoneNumber"`
	TriggerData     map[string]any `json:"triggerData,omitempty"`
	DueAt           time.Time      `json:"dueAt"`
}

type TriggerOutcomeStatus string

const (
	OutcomeSent      TriggerOutcomeStatus = "sent"
	OutcomeFailed    TriggerOutcomeStatus = "failed"
	OutcomeScheduled TriggerOutcomeStatus = "scheduled"
	OutcomeSkipped   TriggerOutcomeStatus = "skipped"
)

// TriggerOutcome reports what happened for one matched autoresponder.
type TriggerOutcome struct {
	AutoresponderID int64                `json:"autoresponderId"`
	TriggerEventID  string               `json:"triggerEventId,omitempty"`
	Status          TriggerOutcomeStatus `json:"status"`
	Reason          string               `json:"reason,omitempty"`
	MessageID       string               `json:"messageId,omitempty"`
	Carrier         string               `json:"carrier,omitempty"`
}
