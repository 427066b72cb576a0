package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/observability"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

type campaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id int64) (*domain.Campaign, error)
	GetAll(ctx context.Context, status *domain.CampaignStatus, page, pageSize int) ([]domain.Campaign, int64, error)
	Save(ctx context.Context, c *domain.Campaign) error
	// MarkRunning must only succeed while the stored campaign is scheduled.
	MarkRunning(ctx context.Context, id int64, startedAt time.Time) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)
	// IncrementCounters must add atomically; concurrent batches share a row.
	IncrementCounters(ctx context.Context, id int64, sent, failed int) error
}

type bulkSender interface {
	SendBulk(ctx context.Context, req BulkRequest) ([]domain.SendResult, error)
}

type CreateCampaignInput struct {
	Name        string
	Message     *string
	TemplateID  *int64
	Recipients  []string
	ScheduledAt *time.Time
	Driver      *string
	FromNumber  *string
	Settings    domain.CampaignSettings
}

type CampaignService struct {
	repo      campaignRepository
	sender    bulkSender
	batchSize int
	now       func() time.Time
}

func NewCampaignService(repo campaignRepository, sender bulkSender, batchSize int) *CampaignService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &CampaignService{
		repo:      repo,
		sender:    sender,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (s *CampaignService) Create(ctx context.Context, in CreateCampaignInput) (*domain.Campaign, error) {
	c := domain.NewCampaign(in.Name, in.Recipients)
	c.Message = in.Message
	c.TemplateID = in.TemplateID
	c.Driver = in.Driver
	c.FromNumber = in.FromNumber
	c.Settings = in.Settings

	if in.ScheduledAt != nil {
		if err := c.Schedule(*in.ScheduledAt); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	logger.Infof("Created campaign %d (%s) with %d recipients, status %s", c.ID, c.Name, c.TotalRecipients, c.Status)

	return c, nil
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %d: %w", id, err)
	}
	if c == nil {
		return nil, domain.ErrCampaignNotFound
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, status *domain.CampaignStatus, page, pageSize int) ([]domain.Campaign, int64, error) {
	return s.repo.GetAll(ctx, status, page, pageSize)
}

func (s *CampaignService) Schedule(ctx context.Context, id int64, at time.Time) (*domain.Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.Schedule(at); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save campaign %d: %w", id, err)
	}

	logger.Infof("Campaign %d scheduled for %s", id, at.Format(time.RFC3339))

	return c, nil
}

func (s *CampaignService) Cancel(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save campaign %d: %w", id, err)
	}

	logger.Infof("Campaign %d cancelled", id)

	return c, nil
}

// Execute runs a scheduled campaign to completion. A campaign that is not due
// is rejected unless force is set. Only errors that prevent the campaign from
// starting are returned; dispatch failures end up in the campaign status.
func (s *CampaignService) Execute(ctx context.Context, id int64, force bool) (*domain.CampaignRunResult, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.Start(s.now(), force); err != nil {
		return nil, err
	}
	if err := s.repo.MarkRunning(ctx, c.ID, *c.StartedAt); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark campaign %d running: %w", id, err)
	}

	logger.Infof("Campaign %d started for %d recipients", c.ID, c.TotalRecipients)

	if !hasContent(c) {
		return s.fail(ctx, c, domain.ErrNoMessageContent.Error())
	}

	results, err := s.sender.SendBulk(ctx, s.bulkRequest(c, c.Recipients, true))
	if err != nil {
		return s.fail(ctx, c, err.Error())
	}

	if c.Settings.RetryFailed {
		results = s.retryFailed(ctx, c, results)
	}

	sent, failed, allCarriersFailed := tally(results)

	if len(results) > 0 && allCarriersFailed == len(results) {
		c.SentCount, c.FailedCount = sent, failed
		return s.fail(ctx, c, "all carriers failed for every recipient")
	}

	if err := c.Complete(s.now(), sent, failed); err != nil {
		return s.fail(ctx, c, err.Error())
	}
	if err := s.repo.Save(ctx, c); err != nil {
		logger.Errorf("Failed to save completed campaign %d: %v", c.ID, err)
	}

	observability.CampaignRuns.WithLabelValues(string(c.Status)).Inc()
	logger.Infof("Campaign %d completed: %d sent, %d failed", c.ID, sent, failed)

	return runResult(c, ""), nil
}

// RunDue executes up to limit campaigns whose scheduled time has passed.
// A failing campaign does not stop the others.
func (s *CampaignService) RunDue(ctx context.Context, limit int) ([]domain.CampaignRunResult, error) {
	due, err := s.repo.GetDue(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due campaigns: %w", err)
	}

	if len(due) == 0 {
		logger.Debugf("No due campaigns")
		return nil, nil
	}

	logger.Infof("Running %d due campaigns", len(due))

	results := make([]domain.CampaignRunResult, 0, len(due))
	for _, c := range due {
		res, err := s.Execute(ctx, c.ID, false)
		if errors.Is(err, domain.ErrInvalidTransition) {
			logger.Infof("Campaign %d was started by another run, skipping", c.ID)
			continue
		}
		if err != nil {
			logger.Errorf("Campaign %d could not run: %v", c.ID, err)
			results = append(results, domain.CampaignRunResult{
				CampaignID: c.ID,
				Status:     c.Status,
				Error:      err.Error(),
			})
			continue
		}
		results = append(results, *res)
	}

	return results, nil
}

func (s *CampaignService) bulkRequest(c *domain.Campaign, to []string, trackProgress bool) BulkRequest {
	req := BulkRequest{
		Recipients: to,
		TemplateID: c.TemplateID,
		Actor:      "campaign:" + strconv.FormatInt(c.ID, 10),
		CampaignID: &c.ID,
		BatchSize:  s.batchSize,
		SendRate:   c.Settings.SendRate,
	}
	if c.Message != nil {
		req.Message = *c.Message
	}
	if c.Driver != nil {
		req.Driver = *c.Driver
	}
	if c.FromNumber != nil {
		req.From = *c.FromNumber
	}

	if trackProgress {
		id := c.ID
		req.OnBatchDone = func(ctx context.Context, batch []domain.SendResult) {
			sent, failed, _ := tally(batch)
			if err := s.repo.IncrementCounters(ctx, id, sent, failed); err != nil {
				logger.Warnf("Failed to update progress of campaign %d: %v", id, err)
			}
		}
	}

	return req
}

// retryFailed resends once to recipients whose failure another attempt could
// fix. Retry results replace the first results in place.
func (s *CampaignService) retryFailed(ctx context.Context, c *domain.Campaign, results []domain.SendResult) []domain.SendResult {
	var idx []int
	var to []string
	for i, r := range results {
		if !r.Success && r.Kind() != domain.KindInvalidRecipient {
			idx = append(idx, i)
			to = append(to, r.To)
		}
	}

	if len(to) == 0 {
		return results
	}

	logger.Infof("Campaign %d retrying %d failed recipients", c.ID, len(to))

	retried, err := s.sender.SendBulk(ctx, s.bulkRequest(c, to, false))
	if err != nil {
		logger.Warnf("Retry pass for campaign %d failed: %v", c.ID, err)
		return results
	}

	for j, r := range retried {
		results[idx[j]] = r
	}
	return results
}

func (s *CampaignService) fail(ctx context.Context, c *domain.Campaign, reason string) (*domain.CampaignRunResult, error) {
	if err := c.Fail(s.now(), reason); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		logger.Errorf("Failed to save failed campaign %d: %v", c.ID, err)
	}

	observability.CampaignRuns.WithLabelValues(string(c.Status)).Inc()
	logger.Warnf("Campaign %d failed: %s", c.ID, reason)

	return runResult(c, reason), nil
}

func hasContent(c *domain.Campaign) bool {
	return (c.Message != nil && strings.TrimSpace(*c.Message) != "") || c.TemplateID != nil
}

func tally(results []domain.SendResult) (sent, failed, allCarriersFailed int) {
	for _, r := range results {
		switch {
		case r.Success:
			sent++
		case r.Kind() == domain.KindAllCarriersFailed:
			failed++
			allCarriersFailed++
		default:
			failed++
		}
	}
	return sent, failed, allCarriersFailed
}

func runResult(c *domain.Campaign, reason string) *domain.CampaignRunResult {
	return &domain.CampaignRunResult{
		CampaignID: c.ID,
		Status:     c.Status,
		Sent:       c.SentCount,
		Failed:     c.FailedCount,
		Error:      reason,
	}
}

// IsConflict reports whether err is a lifecycle conflict rather than a
// failure of the service.
func IsConflict(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrCampaignNotDue)
}
