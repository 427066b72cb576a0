package domain

import (
	"errors"
	"fmt"
	"time"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

var ErrCampaignNotDue = errors.New("campaign is not due yet")

// IsTerminal reports whether no further transition is possible.
func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case CampaignCompleted, CampaignFailed, CampaignCancelled:
		return true
	default:
		return false
	}
}

type CampaignSettings struct {
	// SendRate caps sends per second. Zero means unpaced.
	SendRate float64 `json:"sendRate,omitempty"`
	// RetryFailed resends once to recipients that failed for a retryable reason.
	RetryFailed bool `json:"retryFailed,omitempty"`
}

// Campaign is a scheduled bulk send. Status only moves forward:
//
//	draft -> scheduled -> running -> completed | failed
//	draft | scheduled -> cancelled
type Campaign struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Message         *string          `json:"message,omitempty"`
	TemplateID      *int64           `json:"templateId,omitempty"`
	Recipients      []string         `json:"recipients"`
	Status          CampaignStatus   `json:"status"`
	ScheduledAt     *time.Time       `json:"scheduledAt,omitempty"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	Driver          *string          `json:"driver,omitempty"`
	FromNumber      *string          `json:"fromNumber,omitempty"`
	TotalRecipients int              `json:"totalRecipients"`
	SentCount       int              `json:"sentCount"`
	FailedCount     int              `json:"failedCount"`
	Settings        CampaignSettings `json:"settings"`
	FailureReason   *string          `json:"failureReason,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// NewCampaign returns a draft campaign over recipients.
func NewCampaign(name string, recipients []string) *Campaign {
	return &Campaign{
		Name:            name,
		Recipients:      recipients,
		Status:          CampaignDraft,
		TotalRecipients: len(recipients),
	}
}

func (c *Campaign) transitionError(to CampaignStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
}

// Schedule moves a draft to scheduled. Whether at lies in the future is the
// caller's concern.
func (c *Campaign) Schedule(at time.Time) error {
	if c.Status != CampaignDraft {
		return c.transitionError(CampaignScheduled)
	}

	c.Status = CampaignScheduled
	c.ScheduledAt = &at
	return nil
}

// IsDue reports whether a scheduled campaign may start at now.
func (c *Campaign) IsDue(now time.Time) bool {
	return c.Status == CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now)
}

// Start moves a scheduled campaign to running. Unless forced, the scheduled
// time must have passed.
func (c *Campaign) Start(now time.Time, force bool) error {
	if c.Status != CampaignScheduled {
		return c.transitionError(CampaignRunning)
	}
	if !force && !c.IsDue(now) {
		return ErrCampaignNotDue
	}

	c.Status = CampaignRunning
	c.StartedAt = &now
	c.SentCount = 0
	c.FailedCount = 0
	return nil
}

func (c *Campaign) Complete(now time.Time, sent, failed int) error {
	if c.Status != CampaignRunning {
		return c.transitionError(CampaignCompleted)
	}
	if sent < 0 || failed < 0 || sent+failed > c.TotalRecipients {
		return fmt.Errorf("counters out of range: sent=%d failed=%d total=%d", sent, failed, c.TotalRecipients)
	}

	c.Status = CampaignCompleted
	c.CompletedAt = &now
	c.SentCount = sent
	c.FailedCount = failed
	return nil
}

func (c *Campaign) Fail(now time.Time, reason string) error {
	if c.Status != CampaignRunning {
		return c.transitionError(CampaignFailed)
	}

	c.Status = CampaignFailed
	c.CompletedAt = &now
	c.FailureReason = &reason
	return nil
}

// Cancel is only allowed before the campaign starts running.
func (c *Campaign) Cancel() error {
	if c.Status != CampaignDraft && c.Status != CampaignScheduled {
		return c.transitionError(CampaignCancelled)
	}

	c.Status = CampaignCancelled
	return nil
}

// CampaignRunResult summarises one execution for schedulers and callers.
type CampaignRunResult struct {
	CampaignID int64          `json:"campaignId"`
	Status     CampaignStatus `json:"status"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	Error      string         `json:"error,omitempty"`
}
