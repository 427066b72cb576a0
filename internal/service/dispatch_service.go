package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/onurcolak/sms-dispatch-service/internal/carrier"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/observability"
	"github.com/onurcolak/sms-dispatch-service/internal/template"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

const DefaultBatchSize = 50

// Small internal interfaces so the service can be tested without carriers,
// MySQL or Valkey.
type carrierDispatcher interface {
	Resolve(explicit string) []string
	DispatchWithFailover(ctx context.Context, candidates []string, to, body, from string) (*carrier.Delivery, error)
	Configured() []string
}

type messageLogRepository interface {
	SaveLog(ctx context.Context, log *domain.MessageLog) error
	GetAll(ctx context.Context, status *domain.LogStatus, page, pageSize int) ([]domain.MessageLog, int64, error)
	GetStats(ctx context.Context) (sent, failed int64, err error)
}

type templateRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Template, error)
}

type rateLimiter interface {
	Allow(ctx context.Context, actor string) error
}

type sentMessageCache interface {
	CacheSentMessage(ctx context.Context, messageID, carrier, to string, sentAt time.Time) error
	GetCachedMessage(ctx context.Context, messageID string) (*domain.SentMessageCache, error)
	GetAllCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error)
}

// SendRequest describes one message to one recipient. Message wins over
// TemplateID when both are set.
type SendRequest struct {
	To         string
	Message    string
	Driver     string
	From       string
	TemplateID *int64
	Variables  map[string]string
	Actor      string
	CampaignID *int64
}

// BulkRequest describes one message to many recipients.
type BulkRequest struct {
	Recipients []string
	Message    string
	Driver     string
	From       string
	TemplateID *int64
	Variables  map[string]string
	Actor      string
	CampaignID *int64

	// BatchSize bounds the concurrent sends. Zero uses DefaultBatchSize.
	BatchSize int
	// SendRate caps sends per second across the whole call. Zero is unpaced.
	SendRate float64
	// OnBatchDone, when set, receives each batch's results once every send in
	// the batch has settled.
	OnBatchDone func(ctx context.Context, results []domain.SendResult)
}

type DispatchService struct {
	carriers  carrierDispatcher
	logs      messageLogRepository
	templates templateRepository
	limiter   rateLimiter
	cache     sentMessageCache
	batchSize int
	now       func() time.Time
}

func NewDispatchService(
	carriers carrierDispatcher,
	logs messageLogRepository,
	templates templateRepository,
	limiter rateLimiter,
	cache sentMessageCache,
	batchSize int,
) *DispatchService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &DispatchService{
		carriers:  carriers,
		logs:      logs,
		templates: templates,
		limiter:   limiter,
		cache:     cache,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// SendOne sends one message with failover. Carrier failures are reported in
// the returned SendResult; the error is only set when the call was rejected
// before any carrier was tried (rate limit, template, no content).
func (s *DispatchService) SendOne(ctx context.Context, req SendRequest) (domain.SendResult, error) {
	if err := s.allow(ctx, req.Actor); err != nil {
		return rejected(req.To, err, s.now()), err
	}

	body, err := s.resolveBody(ctx, req.Message, req.TemplateID, req.Variables)
	if err != nil {
		return rejected(req.To, err, s.now()), err
	}

	return s.deliver(ctx, req.To, body, req.Driver, req.From, req.CampaignID, req.TemplateID), nil
}

// SendBulk sends one message to every recipient and returns one result per
// recipient in input order. Batches run one after another; sends inside a
// batch run concurrently. Only a whole-operation failure returns an error.
func (s *DispatchService) SendBulk(ctx context.Context, req BulkRequest) ([]domain.SendResult, error) {
	if err := s.allow(ctx, req.Actor); err != nil {
		return nil, err
	}

	body, err := s.resolveBody(ctx, req.Message, req.TemplateID, req.Variables)
	if err != nil {
		return nil, err
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	var pacer *rate.Limiter
	if req.SendRate > 0 {
		pacer = rate.NewLimiter(rate.Limit(req.SendRate), 1)
	}

	results := make([]domain.SendResult, len(req.Recipients))

	for start := 0; start < len(req.Recipients); start += batchSize {
		end := min(start+batchSize, len(req.Recipients))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				to := req.Recipients[i]
				if pacer != nil {
					if err := pacer.Wait(ctx); err != nil {
						results[i] = rejected(to, fmt.Errorf("send cancelled: %w", err), s.now())
						return
					}
				}

				results[i] = s.deliver(ctx, to, body, req.Driver, req.From, req.CampaignID, req.TemplateID)
			}()
		}
		wg.Wait()

		logger.Debugf("Batch %d-%d of %d recipients settled", start+1, end, len(req.Recipients))

		if req.OnBatchDone != nil {
			req.OnBatchDone(ctx, results[start:end])
		}
	}

	return results, nil
}

func (s *DispatchService) allow(ctx context.Context, actor string) error {
	if s.limiter == nil {
		return nil
	}
	if actor == "" {
		actor = "anonymous"
	}

	if err := s.limiter.Allow(ctx, actor); err != nil {
		logger.Warnf("Dispatch rejected for actor %s: %v", actor, err)
		return err
	}
	return nil
}

// resolveBody prefers an explicit message and falls back to the template.
// Tokens are substituted in both cases.
func (s *DispatchService) resolveBody(ctx context.Context, message string, templateID *int64, vars map[string]string) (string, error) {
	if strings.TrimSpace(message) != "" {
		return template.Render(message, vars), nil
	}
	if templateID == nil {
		return "", domain.ErrNoMessageContent
	}

	tpl, err := s.templates.GetByID(ctx, *templateID)
	if err != nil {
		return "", fmt.Errorf("failed to load template %d: %w", *templateID, err)
	}
	if tpl == nil {
		return "", &domain.TemplateRenderError{TemplateID: *templateID, Reason: "template not found"}
	}
	if !tpl.IsActive {
		return "", &domain.TemplateRenderError{TemplateID: *templateID, Reason: "template is inactive"}
	}

	return template.Render(tpl.Body, vars), nil
}

func (s *DispatchService) deliver(
	ctx context.Context,
	to, body, driver, from string,
	campaignID, templateID *int64,
) domain.SendResult {
	candidates := s.carriers.Resolve(driver)
	delivery, err := s.carriers.DispatchWithFailover(ctx, candidates, to, body, from)

	result := domain.SendResult{
		To:     to,
		SentAt: s.now(),
	}
	if delivery != nil {
		result.Attempts = delivery.Attempts
	}

	if err != nil {
		result.Success = false
		result.Error = domain.NewSendError(err)
		result.Err = err
		if delivery != nil {
			result.Carrier = delivery.Carrier
		}

		logger.Errorf("Failed to send message to %s: %v", to, err)
		observability.Dispatches.WithLabelValues("failed").Inc()
	} else {
		result.Success = true
		result.Carrier = delivery.Carrier
		result.MessageID = delivery.Result.MessageID
		result.Cost = delivery.Result.Cost
		result.RawResponse = delivery.Result.RawResponse

		logger.Infof("Sent message to %s via %s (messageId: %s)", to, result.Carrier, result.MessageID)
		observability.Dispatches.WithLabelValues("sent").Inc()

		if s.cache != nil {
			if err := s.cache.CacheSentMessage(ctx, result.MessageID, result.Carrier, to, result.SentAt); err != nil {
				logger.Warnf("Failed to cache message %s: %v", result.MessageID, err)
			}
		}
	}

	if err := s.logs.SaveLog(ctx, newMessageLog(result, body, campaignID, templateID)); err != nil {
		logger.Errorf("Failed to save message log for %s: %v", to, err)
	}

	return result
}

func rejected(to string, err error, at time.Time) domain.SendResult {
	return domain.SendResult{
		To:     to,
		Error:  domain.NewSendError(err),
		SentAt: at,
		Err:    err,
	}
}

func newMessageLog(r domain.SendResult, body string, campaignID, templateID *int64) *domain.MessageLog {
	log := &domain.MessageLog{
		PhoneNumber: r.To,
		Body:        body,
		Status:      domain.LogStatusFailed,
		Cost:        r.Cost,
		CampaignID:  campaignID,
		TemplateID:  templateID,
		CreatedAt:   r.SentAt,
	}

	if r.Success {
		log.Status = domain.LogStatusSent
	}
	if r.Carrier != "" {
		log.Carrier = &r.Carrier
	}
	if r.MessageID != "" {
		log.MessageID = &r.MessageID
	}
	if r.Error != nil {
		kind := string(r.Error.Kind)
		log.ErrorKind = &kind
		log.ErrorDetail = &r.Error.Detail
	}
	if len(r.Attempts) > 0 {
		if data, err := json.Marshal(r.Attempts); err == nil {
			log.Attempts = data
		}
	}

	return log
}

func (s *DispatchService) GetLogs(ctx context.Context, status *domain.LogStatus, page, pageSize int) ([]domain.MessageLog, int64, error) {
	return s.logs.GetAll(ctx, status, page, pageSize)
}

func (s *DispatchService) GetStats(ctx context.Context) (sent, failed int64, err error) {
	return s.logs.GetStats(ctx)
}

func (s *DispatchService) GetCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("redis client not configured")
	}
	return s.cache.GetAllCachedMessages(ctx)
}

func (s *DispatchService) GetCachedMessage(ctx context.Context, messageID string) (*domain.SentMessageCache, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("redis client not configured")
	}

	cached, err := s.cache.GetCachedMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, domain.ErrCachedMessageNotFound
	}
	return cached, nil
}

// Carriers lists the carriers with complete credentials.
func (s *DispatchService) Carriers() []string {
	return s.carriers.Configured()
}
