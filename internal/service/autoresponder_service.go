package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/onurcolak/sms-dispatch-service/internal/carrier"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/observability"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

// TriggerCapWindow is the trailing window in which automation log rows count
// against an autoresponder's per-number cap.
const TriggerCapWindow = 24 * time.Hour

const (
	ReasonCapReached          = "cap_reached"
	ReasonInvalidConfig       = "invalid_configuration"
	ReasonAutoresponderGone   = "autoresponder unavailable"
	inboundMessageField       = "message"
	inboundPhoneNumberVarName = "phone_number"
)

type autoresponderRepository interface {
	Create(ctx context.Context, a *domain.Autoresponder) error
	GetAll(ctx context.Context) ([]domain.Autoresponder, error)
	GetByID(ctx context.Context, id int64) (*domain.Autoresponder, error)
	GetActiveByTriggerType(ctx context.Context, t domain.TriggerType) ([]domain.Autoresponder, error)
	SetActive(ctx context.Context, id int64, active bool) error

	CountAutomationLogs(ctx context.Context, autoresponderID int64, phoneNumber string, since time.Time) (int, error)
	SaveTriggerEvent(ctx context.Context, e *domain.TriggerEvent) error
	SaveAutomationLog(ctx context.Context, entry *domain.AutomationLogEntry) (int64, error)
	UpdateAutomationLog(ctx context.Context, entry *domain.AutomationLogEntry) error
	GetAutomationLog(ctx context.Context, id int64) (*domain.AutomationLogEntry, error)
	GetAutomationLogs(ctx context.Context, autoresponderID int64, limit int) ([]domain.AutomationLogEntry, error)

	SavePendingReply(ctx context.Context, p *domain.PendingReply) error
	GetDuePendingReplies(ctx context.Context, now time.Time, limit int) ([]domain.PendingReply, error)
	DeletePendingReply(ctx context.Context, id int64) error
}

type singleSender interface {
	SendOne(ctx context.Context, req SendRequest) (domain.SendResult, error)
}

type AutoresponderService struct {
	repo   autoresponderRepository
	sender singleSender
	now    func() time.Time

	// capMu makes the cap check and the log row that reserves a slot atomic
	// within this process.
	capMu sync.Mutex
}

func NewAutoresponderService(repo autoresponderRepository, sender singleSender) *AutoresponderService {
	return &AutoresponderService{
		repo:   repo,
		sender: sender,
		now:    time.Now,
	}
}

func (s *AutoresponderService) Create(ctx context.Context, a *domain.Autoresponder) error {
	if _, err := domain.ParseTriggerType(string(a.TriggerType)); err != nil {
		return err
	}
	if a.TriggerType == domain.TriggerKeyword {
		keywords, err := a.Keywords()
		if err != nil {
			return err
		}
		if len(keywords) == 0 {
			return fmt.Errorf("keyword autoresponder needs at least one keyword")
		}
	}
	if (a.ResponseMessage == nil || strings.TrimSpace(*a.ResponseMessage) == "") && a.TemplateID == nil {
		return domain.ErrNoMessageContent
	}
	if a.DelayMinutes < 0 || a.MaxTriggersPerNumber < 0 {
		return fmt.Errorf("delay and trigger cap must not be negative")
	}
	if err := validateConditions(a.Conditions); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("failed to create autoresponder: %w", err)
	}

	logger.Infof("Created autoresponder %d (%s) for %s", a.ID, a.Name, a.TriggerType)
	return nil
}

func (s *AutoresponderService) List(ctx context.Context) ([]domain.Autoresponder, error) {
	return s.repo.GetAll(ctx)
}

// SetActive toggles an autoresponder. Inactive autoresponders never match.
func (s *AutoresponderService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}

	logger.Infof("Autoresponder %d active=%t", id, active)
	return nil
}

// Logs returns the newest automation log rows of one autoresponder.
func (s *AutoresponderService) Logs(ctx context.Context, id int64, limit int) ([]domain.AutomationLogEntry, error) {
	ar, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load autoresponder %d: %w", id, err)
	}
	if ar == nil {
		return nil, domain.ErrAutoresponderNotFound
	}

	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetAutomationLogs(ctx, id, limit)
}

// ProcessInboundSMS offers one inbound text to both keyword and incoming_sms
// autoresponders.
func (s *AutoresponderService) ProcessInboundSMS(ctx context.Context, phoneNumber, text string) ([]domain.TriggerOutcome, error) {
	now := s.now()
	data := map[string]any{inboundMessageField: text}

	var outcomes []domain.TriggerOutcome
	for _, t := range []domain.TriggerType{domain.TriggerKeyword, domain.TriggerIncomingSMS} {
		out, err := s.HandleEvent(ctx, domain.InboundEvent{
			PhoneNumber: phoneNumber,
			TriggerType: t,
			Data:        data,
			OccurredAt:  now,
		})
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out...)
	}

	return outcomes, nil
}

// HandleEvent matches ev against every active autoresponder of its trigger
// type. No match is a normal outcome and returns an empty list. The error is
// only set when candidates cannot be loaded.
func (s *AutoresponderService) HandleEvent(ctx context.Context, ev domain.InboundEvent) ([]domain.TriggerOutcome, error) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if normalized, err := carrier.NormalizePhone(ev.PhoneNumber); err == nil {
		ev.PhoneNumber = normalized
	}

	candidates, err := s.repo.GetActiveByTriggerType(ctx, ev.TriggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to load autoresponders for %s: %w", ev.TriggerType, err)
	}

	var outcomes []domain.TriggerOutcome
	for i := range candidates {
		ar := &candidates[i]
		if !ar.IsActive || ar.TriggerType != ev.TriggerType {
			continue
		}

		matched, err := matches(ar, ev)
		if err != nil {
			logger.Warnf("Autoresponder %d skipped: %v", ar.ID, err)
			outcomes = append(outcomes, s.outcome(ar, domain.TriggerOutcome{
				AutoresponderID: ar.ID,
				Status:          domain.OutcomeSkipped,
				Reason:          ReasonInvalidConfig,
			}))
			continue
		}
		if !matched {
			continue
		}

		outcomes = append(outcomes, s.outcome(ar, s.fire(ctx, ar, ev)))
	}

	return outcomes, nil
}

func (s *AutoresponderService) outcome(ar *domain.Autoresponder, o domain.TriggerOutcome) domain.TriggerOutcome {
	observability.AutoresponderTriggers.WithLabelValues(string(ar.TriggerType), string(o.Status)).Inc()
	return o
}

func matches(ar *domain.Autoresponder, ev domain.InboundEvent) (bool, error) {
	switch ar.TriggerType {
	case domain.TriggerKeyword:
		keywords, err := ar.Keywords()
		if err != nil {
			return false, err
		}
		text, _ := ev.Data[inboundMessageField].(string)
		return matchKeyword(keywords, text), nil
	case domain.TriggerIncomingSMS, domain.TriggerMissedCall, domain.TriggerWebhook:
		return evaluateConditions(ar.Conditions, ev.Data)
	default:
		return false, fmt.Errorf("unsupported trigger type %q", ar.TriggerType)
	}
}

// matchKeyword is a trimmed, case-insensitive exact comparison.
func matchKeyword(keywords []string, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" && strings.EqualFold(k, text) {
			return true
		}
	}
	return false
}

// fire reserves a cap slot with a pending log row, then either stores a
// delayed reply or sends immediately and finalizes the row.
func (s *AutoresponderService) fire(ctx context.Context, ar *domain.Autoresponder, ev domain.InboundEvent) domain.TriggerOutcome {
	out := domain.TriggerOutcome{AutoresponderID: ar.ID}

	trigger := &domain.TriggerEvent{
		ID:              ulid.Make().String(),
		AutoresponderID: ar.ID,
		PhoneNumber:     ev.PhoneNumber,
		TriggerType:     ev.TriggerType,
		TriggerData:     ev.Data,
		OccurredAt:      ev.OccurredAt,
	}
	out.TriggerEventID = trigger.ID

	entry, reason, err := s.reserve(ctx, ar, trigger)
	if err != nil {
		logger.Errorf("Autoresponder %d could not record trigger for %s: %v", ar.ID, ev.PhoneNumber, err)
		out.Status = domain.OutcomeFailed
		out.Reason = err.Error()
		return out
	}
	if entry == nil {
		logger.Infof("Autoresponder %d skipped for %s: %s", ar.ID, ev.PhoneNumber, reason)
		out.Status = domain.OutcomeSkipped
		out.Reason = reason
		out.TriggerEventID = ""
		return out
	}

	if ar.DelayMinutes > 0 {
		pending := &domain.PendingReply{
			AutoresponderID: ar.ID,
			AutomationLogID: entry.ID,
			TriggerEventID:  trigger.ID,
			PhoneNumber:     ev.PhoneNumber,
			TriggerData:     ev.Data,
			DueAt:           s.now().Add(time.Duration(ar.DelayMinutes) * time.Minute),
		}
		if err := s.repo.SavePendingReply(ctx, pending); err != nil {
			s.finalize(ctx, entry, domain.SendResult{}, fmt.Errorf("failed to schedule reply: %w", err), 0)
			out.Status = domain.OutcomeFailed
			out.Reason = err.Error()
			return out
		}

		logger.Infof("Autoresponder %d reply to %s scheduled for %s", ar.ID, ev.PhoneNumber, pending.DueAt.Format(time.RFC3339))
		out.Status = domain.OutcomeScheduled
		return out
	}

	res := s.reply(ctx, ar, ev.PhoneNumber, ev.Data, entry)
	out.Status = domain.OutcomeSent
	out.MessageID = res.MessageID
	out.Carrier = res.Carrier
	if !res.Success {
		out.Status = domain.OutcomeFailed
		if res.Error != nil {
			out.Reason = res.Error.Detail
		}
	}
	return out
}

// reserve checks the per-number cap and records the trigger together with a
// pending log row. A nil entry with a reason means the cap was reached.
func (s *AutoresponderService) reserve(ctx context.Context, ar *domain.Autoresponder, trigger *domain.TriggerEvent) (*domain.AutomationLogEntry, string, error) {
	s.capMu.Lock()
	defer s.capMu.Unlock()

	if ar.MaxTriggersPerNumber > 0 {
		count, err := s.repo.CountAutomationLogs(ctx, ar.ID, trigger.PhoneNumber, s.now().Add(-TriggerCapWindow))
		if err != nil {
			return nil, "", fmt.Errorf("failed to count triggers: %w", err)
		}
		if count >= ar.MaxTriggersPerNumber {
			return nil, ReasonCapReached, nil
		}
	}

	if err := s.repo.SaveTriggerEvent(ctx, trigger); err != nil {
		return nil, "", fmt.Errorf("failed to save trigger event: %w", err)
	}

	entry := &domain.AutomationLogEntry{
		AutoresponderID: ar.ID,
		TriggerEventID:  trigger.ID,
		PhoneNumber:     trigger.PhoneNumber,
		Status:          domain.AutomationPending,
		ContextData: map[string]any{
			"trigger_type": string(trigger.TriggerType),
			"trigger_data": trigger.TriggerData,
		},
		CreatedAt: s.now(),
	}

	id, err := s.repo.SaveAutomationLog(ctx, entry)
	if err != nil {
		return nil, "", fmt.Errorf("failed to save automation log: %w", err)
	}
	entry.ID = id

	return entry, "", nil
}

// reply renders and sends the response, then finalizes entry with the
// outcome and the wall-clock duration of the dispatch call.
func (s *AutoresponderService) reply(
	ctx context.Context,
	ar *domain.Autoresponder,
	phoneNumber string,
	data map[string]any,
	entry *domain.AutomationLogEntry,
) domain.SendResult {
	req := SendRequest{
		To:        phoneNumber,
		Variables: replyVariables(phoneNumber, data),
		Actor:     "autoresponder:" + strconv.FormatInt(ar.ID, 10),
	}
	if ar.TemplateID != nil {
		req.TemplateID = ar.TemplateID
	} else if ar.ResponseMessage != nil {
		req.Message = *ar.ResponseMessage
	}

	start := time.Now()
	res, err := s.sender.SendOne(ctx, req)
	elapsed := time.Since(start)

	if err == nil && !res.Success {
		err = res.Err
		if err == nil && res.Error != nil {
			err = errors.New(res.Error.Detail)
		}
	}

	s.finalize(ctx, entry, res, err, elapsed)

	if err != nil {
		logger.Warnf("Autoresponder %d reply to %s failed: %v", ar.ID, phoneNumber, err)
	} else {
		logger.Infof("Autoresponder %d replied to %s via %s", ar.ID, phoneNumber, res.Carrier)
	}

	return res
}

func (s *AutoresponderService) finalize(ctx context.Context, entry *domain.AutomationLogEntry, res domain.SendResult, err error, elapsed time.Duration) {
	entry.ExecutionTimeMs = elapsed.Milliseconds()

	if err != nil {
		msg := err.Error()
		entry.Status = domain.AutomationFailed
		entry.ErrorMessage = &msg
	} else {
		entry.Status = domain.AutomationSuccess
		entry.MessageID = &res.MessageID
		entry.CarrierUsed = &res.Carrier
	}

	if err := s.repo.UpdateAutomationLog(ctx, entry); err != nil {
		logger.Errorf("Failed to finalize automation log %d: %v", entry.ID, err)
	}
}

// FirePendingReplies sends up to limit delayed replies whose due time has
// passed and returns how many were processed.
func (s *AutoresponderService) FirePendingReplies(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.GetDuePendingReplies(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get due replies: %w", err)
	}

	fired := 0
	for _, p := range due {
		entry, err := s.repo.GetAutomationLog(ctx, p.AutomationLogID)
		if err != nil {
			logger.Errorf("Failed to load automation log %d: %v", p.AutomationLogID, err)
			continue
		}
		if entry == nil {
			entry = &domain.AutomationLogEntry{
				ID:              p.AutomationLogID,
				AutoresponderID: p.AutoresponderID,
				TriggerEventID:  p.TriggerEventID,
				PhoneNumber:     p.PhoneNumber,
			}
		}

		ar, err := s.repo.GetByID(ctx, p.AutoresponderID)
		switch {
		case err != nil:
			logger.Errorf("Failed to load autoresponder %d: %v", p.AutoresponderID, err)
			continue
		case ar == nil || !ar.IsActive:
			s.finalize(ctx, entry, domain.SendResult{}, errors.New(ReasonAutoresponderGone), 0)
		default:
			s.reply(ctx, ar, p.PhoneNumber, p.TriggerData, entry)
		}

		if err := s.repo.DeletePendingReply(ctx, p.ID); err != nil {
			logger.Errorf("Failed to remove pending reply %d: %v", p.ID, err)
		}
		fired++
	}

	if fired > 0 {
		logger.Infof("Fired %d delayed autoresponder replies", fired)
	}

	return fired, nil
}

func replyVariables(phoneNumber string, data map[string]any) map[string]string {
	vars := make(map[string]string, len(data)+1)
	for k, v := range data {
		vars[k] = stringify(v)
	}
	vars[inboundPhoneNumberVarName] = phoneNumber
	return vars
}
