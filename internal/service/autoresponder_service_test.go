package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

type fakeAutoresponderRepo struct {
	mu            sync.Mutex
	autoresponder []domain.Autoresponder
	events        []*domain.TriggerEvent
	logs          []*domain.AutomationLogEntry
	pending       []*domain.PendingReply
	nextPendingID int64
}

func (r *fakeAutoresponderRepo) Create(ctx context.Context, a *domain.Autoresponder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = int64(len(r.autoresponder) + 1)
	r.autoresponder = append(r.autoresponder, *a)
	return nil
}

func (r *fakeAutoresponderRepo) GetAll(ctx context.Context) ([]domain.Autoresponder, error) {
	return r.autoresponder, nil
}

func (r *fakeAutoresponderRepo) GetByID(ctx context.Context, id int64) (*domain.Autoresponder, error) {
	for i := range r.autoresponder {
		if r.autoresponder[i].ID == id {
			a := r.autoresponder[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (r *fakeAutoresponderRepo) GetActiveByTriggerType(ctx context.Context, t domain.TriggerType) ([]domain.Autoresponder, error) {
	var out []domain.Autoresponder
	for _, a := range r.autoresponder {
		if a.IsActive && a.TriggerType == t {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAutoresponderRepo) SetActive(ctx context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.autoresponder {
		if r.autoresponder[i].ID == id {
			r.autoresponder[i].IsActive = active
			return nil
		}
	}
	return domain.ErrAutoresponderNotFound
}

func (r *fakeAutoresponderRepo) GetAutomationLogs(ctx context.Context, autoresponderID int64, limit int) ([]domain.AutomationLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.AutomationLogEntry
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.logs[i].AutoresponderID == autoresponderID {
			out = append(out, *r.logs[i])
		}
	}
	return out, nil
}

func (r *fakeAutoresponderRepo) CountAutomationLogs(ctx context.Context, autoresponderID int64, phoneNumber string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, l := range r.logs {
		if l.AutoresponderID == autoresponderID && l.PhoneNumber == phoneNumber && !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeAutoresponderRepo) SaveTriggerEvent(ctx context.Context, e *domain.TriggerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *fakeAutoresponderRepo) SaveAutomationLog(ctx context.Context, entry *domain.AutomationLogEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	cp.ID = int64(len(r.logs) + 1)
	r.logs = append(r.logs, &cp)
	return cp.ID, nil
}

func (r *fakeAutoresponderRepo) UpdateAutomationLog(ctx context.Context, entry *domain.AutomationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	r.logs[entry.ID-1] = &cp
	return nil
}

func (r *fakeAutoresponderRepo) GetAutomationLog(ctx context.Context, id int64) (*domain.AutomationLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 1 || int(id) > len(r.logs) {
		return nil, nil
	}
	cp := *r.logs[id-1]
	return &cp, nil
}

func (r *fakeAutoresponderRepo) SavePendingReply(ctx context.Context, p *domain.PendingReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextPendingID++
	p.ID = r.nextPendingID
	r.pending = append(r.pending, p)
	return nil
}

func (r *fakeAutoresponderRepo) GetDuePendingReplies(ctx context.Context, now time.Time, limit int) ([]domain.PendingReply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.PendingReply
	for _, p := range r.pending {
		if !p.DueAt.After(now) && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeAutoresponderRepo) DeletePendingReply(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.pending {
		if p.ID == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeAutoresponderRepo) logsWithStatus(status domain.AutomationStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, l := range r.logs {
		if l.Status == status {
			n++
		}
	}
	return n
}

type recordingSender struct {
	mu       sync.Mutex
	requests []SendRequest
	fail     bool
}

func (s *recordingSender) SendOne(ctx context.Context, req SendRequest) (domain.SendResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.fail {
		err := &domain.AllCarriersFailedError{}
		return domain.SendResult{To: req.To, Error: domain.NewSendError(err), Err: err}, nil
	}
	return domain.SendResult{To: req.To, Success: true, MessageID: "m-1", Carrier: "twilio"}, nil
}

func keywordResponder(keywords string, reply string) *domain.Autoresponder {
	value, _ := json.Marshal(keywords)
	return &domain.Autoresponder{
		Name:            "kw",
		TriggerType:     domain.TriggerKeyword,
		TriggerValue:    value,
		ResponseMessage: &reply,
		IsActive:        true,
	}
}

func newTestAutoresponders(t *testing.T, ars ...*domain.Autoresponder) (*AutoresponderService, *fakeAutoresponderRepo, *recordingSender) {
	t.Helper()

	repo := &fakeAutoresponderRepo{}
	sender := &recordingSender{}
	svc := NewAutoresponderService(repo, sender)

	for _, a := range ars {
		if err := svc.Create(context.Background(), a); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}
	return svc, repo, sender
}

func TestKeyword_CaseInsensitiveTrimmedExact(t *testing.T) {
	svc, repo, sender := newTestAutoresponders(t, keywordResponder("stop", "You are unsubscribed"))

	out, err := svc.ProcessInboundSMS(context.Background(), "+905551234567", "  Stop  ")
	if err != nil {
		t.Fatalf("ProcessInboundSMS returned error: %v", err)
	}

	if len(out) != 1 || out[0].Status != domain.OutcomeSent {
		t.Fatalf("expected one sent outcome, got %+v", out)
	}
	if len(sender.requests) != 1 || sender.requests[0].Message != "You are unsubscribed" {
		t.Fatalf("unexpected send requests %+v", sender.requests)
	}
	if repo.logsWithStatus(domain.AutomationSuccess) != 1 {
		t.Fatalf("expected one success log")
	}
	if len(repo.events) != 1 || repo.events[0].ID == "" {
		t.Fatalf("expected a trigger event with an id, got %+v", repo.events)
	}
}

func TestKeyword_NoSubstringMatch(t *testing.T) {
	svc, repo, sender := newTestAutoresponders(t, keywordResponder("stop", "bye"))

	out, err := svc.ProcessInboundSMS(context.Background(), "+905551234567", "please stop now")
	if err != nil {
		t.Fatalf("ProcessInboundSMS returned error: %v", err)
	}

	if len(out) != 0 || len(sender.requests) != 0 || len(repo.logs) != 0 {
		t.Fatalf("expected no match, got outcomes %+v", out)
	}
}

func TestKeyword_CommaSeparatedList(t *testing.T) {
	svc, _, sender := newTestAutoresponders(t, keywordResponder("help, info", "How can we help?"))

	if _, err := svc.ProcessInboundSMS(context.Background(), "+905551234567", "INFO"); err != nil {
		t.Fatalf("ProcessInboundSMS returned error: %v", err)
	}
	if len(sender.requests) != 1 {
		t.Fatalf("expected a reply for the second keyword, got %d", len(sender.requests))
	}
}

func TestCap_SecondTriggerWithin24hIsSkipped(t *testing.T) {
	ar := keywordResponder("stop", "bye")
	ar.MaxTriggersPerNumber = 1
	svc, repo, sender := newTestAutoresponders(t, ar)

	ctx := context.Background()
	first, _ := svc.ProcessInboundSMS(ctx, "+905551234567", "stop")
	second, _ := svc.ProcessInboundSMS(ctx, "+905551234567", "stop")

	if len(first) != 1 || first[0].Status != domain.OutcomeSent {
		t.Fatalf("expected first trigger to send, got %+v", first)
	}
	if len(second) != 1 || second[0].Status != domain.OutcomeSkipped || second[0].Reason != ReasonCapReached {
		t.Fatalf("expected second trigger to be skipped, got %+v", second)
	}
	if len(repo.logs) != 1 || repo.logsWithStatus(domain.AutomationSuccess) != 1 {
		t.Fatalf("expected exactly one success log, got %d logs", len(repo.logs))
	}
	if len(sender.requests) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.requests))
	}
}

func TestCap_CountsOnlyTrailingWindow(t *testing.T) {
	ar := keywordResponder("stop", "bye")
	ar.MaxTriggersPerNumber = 1
	svc, _, sender := newTestAutoresponders(t, ar)

	now := time.Now()
	svc.now = func() time.Time { return now }
	_, _ = svc.ProcessInboundSMS(context.Background(), "+905551234567", "stop")

	svc.now = func() time.Time { return now.Add(TriggerCapWindow + time.Minute) }
	out, _ := svc.ProcessInboundSMS(context.Background(), "+905551234567", "stop")

	if len(out) != 1 || out[0].Status != domain.OutcomeSent {
		t.Fatalf("expected trigger after the window to send, got %+v", out)
	}
	if len(sender.requests) != 2 {
		t.Fatalf("expected two sends, got %d", len(sender.requests))
	}
}

func TestCap_OtherNumbersAreIndependent(t *testing.T) {
	ar := keywordResponder("stop", "bye")
	ar.MaxTriggersPerNumber = 1
	svc, _, sender := newTestAutoresponders(t, ar)

	_, _ = svc.ProcessInboundSMS(context.Background(), "+905551234567", "stop")
	_, _ = svc.ProcessInboundSMS(context.Background(), "+905559999999", "stop")

	if len(sender.requests) != 2 {
		t.Fatalf("expected a reply to each number, got %d", len(sender.requests))
	}
}

func TestConditions_MissedCall(t *testing.T) {
	reply := "Sorry we missed you, {{phone_number}}"
	ar := &domain.Autoresponder{
		Name:            "missed",
		TriggerType:     domain.TriggerMissedCall,
		ResponseMessage: &reply,
		IsActive:        true,
		Conditions: []domain.Condition{
			{Field: "duration", Operator: domain.OpLess, Value: "5"},
		},
	}
	svc, _, sender := newTestAutoresponders(t, ar)
	ctx := context.Background()

	out, err := svc.HandleEvent(ctx, domain.InboundEvent{
		PhoneNumber: "905551234567",
		TriggerType: domain.TriggerMissedCall,
		Data:        map[string]any{"duration": float64(12)},
	})
	if err != nil || len(out) != 0 {
		t.Fatalf("expected no match for a long call, got %+v, %v", out, err)
	}

	out, err = svc.HandleEvent(ctx, domain.InboundEvent{
		PhoneNumber: "905551234567",
		TriggerType: domain.TriggerMissedCall,
		Data:        map[string]any{"duration": float64(2)},
	})
	if err != nil || len(out) != 1 || out[0].Status != domain.OutcomeSent {
		t.Fatalf("expected a reply for a short call, got %+v, %v", out, err)
	}

	req := sender.requests[0]
	if req.To != "+905551234567" || req.Variables["phone_number"] != "+905551234567" {
		t.Fatalf("expected normalized number in request, got %+v", req)
	}
}

func TestHandleEvent_FailedReplyIsLogged(t *testing.T) {
	svc, repo, sender := newTestAutoresponders(t, keywordResponder("stop", "bye"))
	sender.fail = true

	out, err := svc.ProcessInboundSMS(context.Background(), "+905551234567", "stop")
	if err != nil {
		t.Fatalf("ProcessInboundSMS returned error: %v", err)
	}

	if len(out) != 1 || out[0].Status != domain.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", out)
	}
	if repo.logsWithStatus(domain.AutomationFailed) != 1 || repo.logs[0].ErrorMessage == nil {
		t.Fatalf("expected failed log with error message, got %+v", repo.logs)
	}
}

func TestHandleEvent_BrokenAutoresponderDoesNotBlockOthers(t *testing.T) {
	svc, repo, sender := newTestAutoresponders(t, keywordResponder("stop", "bye"))
	repo.autoresponder = append(repo.autoresponder, domain.Autoresponder{
		ID:           2,
		TriggerType:  domain.TriggerKeyword,
		TriggerValue: json.RawMessage(`{"not":"a list"}`),
		IsActive:     true,
	})

	out, err := svc.ProcessInboundSMS(context.Background(), "+905551234567", "stop")
	if err != nil {
		t.Fatalf("ProcessInboundSMS returned error: %v", err)
	}

	if len(out) != 2 || out[0].Status != domain.OutcomeSent || out[1].Reason != ReasonInvalidConfig {
		t.Fatalf("unexpected outcomes %+v", out)
	}
	if len(sender.requests) != 1 {
		t.Fatalf("expected the valid autoresponder to reply")
	}
}

func TestDelayedReply_ScheduledThenFired(t *testing.T) {
	ar := keywordResponder("stop", "bye")
	ar.DelayMinutes = 10
	ar.MaxTriggersPerNumber = 1
	svc, repo, sender := newTestAutoresponders(t, ar)

	now := time.Now()
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	out, _ := svc.ProcessInboundSMS(ctx, "+905551234567", "stop")
	if len(out) != 1 || out[0].Status != domain.OutcomeScheduled {
		t.Fatalf("expected scheduled outcome, got %+v", out)
	}
	if len(sender.requests) != 0 {
		t.Fatalf("expected no synchronous send")
	}
	if repo.logsWithStatus(domain.AutomationPending) != 1 || len(repo.pending) != 1 {
		t.Fatalf("expected a pending log and a pending reply")
	}

	again, _ := svc.ProcessInboundSMS(ctx, "+905551234567", "stop")
	if len(again) != 1 || again[0].Reason != ReasonCapReached {
		t.Fatalf("expected pending reply to count toward the cap, got %+v", again)
	}

	fired, err := svc.FirePendingReplies(ctx, 10)
	if err != nil || fired != 0 {
		t.Fatalf("expected nothing due yet, got %d, %v", fired, err)
	}

	svc.now = func() time.Time { return now.Add(11 * time.Minute) }
	fired, err = svc.FirePendingReplies(ctx, 10)
	if err != nil || fired != 1 {
		t.Fatalf("expected one fired reply, got %d, %v", fired, err)
	}

	if len(sender.requests) != 1 {
		t.Fatalf("expected the delayed reply to be sent")
	}
	if len(repo.logs) != 1 || repo.logs[0].Status != domain.AutomationSuccess {
		t.Fatalf("expected the pending log to be finalized as success, got %+v", repo.logs)
	}
	if len(repo.pending) != 0 {
		t.Fatalf("expected pending reply to be removed")
	}
}

func TestDelayedReply_DeactivatedAutoresponderFails(t *testing.T) {
	ar := keywordResponder("stop", "bye")
	ar.DelayMinutes = 1
	svc, repo, sender := newTestAutoresponders(t, ar)

	now := time.Now()
	svc.now = func() time.Time { return now }
	_, _ = svc.ProcessInboundSMS(context.Background(), "+905551234567", "stop")

	repo.autoresponder[0].IsActive = false
	svc.now = func() time.Time { return now.Add(2 * time.Minute) }

	if _, err := svc.FirePendingReplies(context.Background(), 10); err != nil {
		t.Fatalf("FirePendingReplies returned error: %v", err)
	}

	if len(sender.requests) != 0 {
		t.Fatalf("expected no send for an inactive autoresponder")
	}
	if repo.logs[0].Status != domain.AutomationFailed {
		t.Fatalf("expected failed log, got %q", repo.logs[0].Status)
	}
}

func TestCreate_RejectsInvalidAutoresponders(t *testing.T) {
	svc, _, _ := newTestAutoresponders(t)
	reply := "hi"

	cases := []*domain.Autoresponder{
		{Name: "bad type", TriggerType: "sms", ResponseMessage: &reply},
		{Name: "no keywords", TriggerType: domain.TriggerKeyword, ResponseMessage: &reply},
		{Name: "no content", TriggerType: domain.TriggerWebhook},
		{Name: "negative delay", TriggerType: domain.TriggerWebhook, ResponseMessage: &reply, DelayMinutes: -1},
		{Name: "unknown operator", TriggerType: domain.TriggerWebhook, ResponseMessage: &reply,
			Conditions: []domain.Condition{{Field: "country", Operator: "~=", Value: "TR"}}},
	}

	for _, a := range cases {
		if err := svc.Create(context.Background(), a); err == nil {
			t.Errorf("%s: expected error", a.Name)
		}
	}
}

func TestSetActive_DeactivatedAutoresponderStopsMatching(t *testing.T) {
	svc, _, sender := newTestAutoresponders(t, keywordResponder("stop", "bye"))
	ctx := context.Background()

	if err := svc.SetActive(ctx, 1, false); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}

	out, err := svc.ProcessInboundSMS(ctx, "+905551234567", "stop")
	if err != nil {
		t.Fatalf("ProcessInboundSMS returned error: %v", err)
	}
	if len(out) != 0 || len(sender.requests) != 0 {
		t.Fatalf("expected no outcome for an inactive autoresponder, got %+v", out)
	}
}

func TestLogs_UnknownAutoresponder(t *testing.T) {
	svc, _, _ := newTestAutoresponders(t)

	if _, err := svc.Logs(context.Background(), 99, 10); !errors.Is(err, domain.ErrAutoresponderNotFound) {
		t.Fatalf("expected ErrAutoresponderNotFound, got %v", err)
	}
}

func TestLogs_NewestFirst(t *testing.T) {
	svc, _, _ := newTestAutoresponders(t, keywordResponder("hi", "hello"))
	ctx := context.Background()

	for _, phone := range []string{"+905551111111", "+905552222222"} {
		if _, err := svc.ProcessInboundSMS(ctx, phone, "hi"); err != nil {
			t.Fatalf("ProcessInboundSMS returned error: %v", err)
		}
	}

	logs, err := svc.Logs(ctx, 1, 0)
	if err != nil {
		t.Fatalf("Logs returned error: %v", err)
	}
	if len(logs) != 2 || logs[0].PhoneNumber != "+905552222222" {
		t.Fatalf("unexpected logs %+v", logs)
	}
}
