package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

type fakeCampaignRepo struct {
	mu         sync.Mutex
	nextID     int64
	campaigns  map[int64]*domain.Campaign
	increments []int
	saves      []domain.CampaignStatus
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[int64]*domain.Campaign)}
}

func (r *fakeCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) GetAll(ctx context.Context, status *domain.CampaignStatus, page, pageSize int) ([]domain.Campaign, int64, error) {
	return nil, 0, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *c
	r.campaigns[c.ID] = &cp
	r.saves = append(r.saves, c.Status)
	return nil
}

func (r *fakeCampaignRepo) MarkRunning(ctx context.Context, id int64, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	if c.Status != domain.CampaignScheduled {
		return domain.ErrInvalidTransition
	}
	c.Status = domain.CampaignRunning
	c.StartedAt = &startedAt
	c.SentCount, c.FailedCount = 0, 0
	r.saves = append(r.saves, domain.CampaignRunning)
	return nil
}

func (r *fakeCampaignRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Campaign
	for id := int64(1); id <= r.nextID && len(out) < limit; id++ {
		if c, ok := r.campaigns[id]; ok && c.IsDue(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) IncrementCounters(ctx context.Context, id int64, sent, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.campaigns[id]
	c.SentCount += sent
	c.FailedCount += failed
	r.increments = append(r.increments, sent+failed)
	return nil
}

type stubBulkSender struct {
	calls [][]string
	err   error
	fn    func(call int, to []string) []domain.SendResult
}

func (s *stubBulkSender) SendBulk(ctx context.Context, req BulkRequest) ([]domain.SendResult, error) {
	s.calls = append(s.calls, req.Recipients)
	if s.err != nil {
		return nil, s.err
	}
	return s.fn(len(s.calls), req.Recipients), nil
}

func strPtr(s string) *string { return &s }

func newScheduledCampaign(t *testing.T, svc *CampaignService, in CreateCampaignInput) *domain.Campaign {
	t.Helper()

	if in.ScheduledAt == nil {
		at := time.Now().Add(-time.Minute)
		in.ScheduledAt = &at
	}
	c, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return c
}

func TestCampaignExecute_CompletesWithCounters(t *testing.T) {
	a := &fakeAdapter{name: "a", failFor: func(to string) error {
		if to == "+905550000001" {
			return &domain.ProviderError{Carrier: "a", HTTPStatus: 500, Message: "boom"}
		}
		return nil
	}}
	dispatch, logs := newTestDispatch(a)
	repo := newFakeCampaignRepo()
	svc := NewCampaignService(repo, dispatch, 2)

	c := newScheduledCampaign(t, svc, CreateCampaignInput{
		Name:       "promo",
		Message:    strPtr("Hello"),
		Recipients: []string{"+905550000000", "+905550000001", "+905550000002", "+905550000003", "+905550000004"},
	})

	res, err := svc.Execute(context.Background(), c.ID, false)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if res.Status != domain.CampaignCompleted {
		t.Fatalf("expected completed, got %q (%s)", res.Status, res.Error)
	}
	if res.Sent != 4 || res.Failed != 1 {
		t.Fatalf("expected 4 sent 1 failed, got %d/%d", res.Sent, res.Failed)
	}

	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.SentCount+stored.FailedCount != stored.TotalRecipients {
		t.Fatalf("counters do not sum to total: %+v", stored)
	}
	if stored.StartedAt == nil || stored.CompletedAt == nil {
		t.Fatalf("expected timestamps to be set")
	}
	if len(repo.increments) != 3 {
		t.Fatalf("expected progress update per batch (3), got %v", repo.increments)
	}
	if logs.count() != 5 {
		t.Fatalf("expected 5 log records, got %d", logs.count())
	}
	for _, l := range logs.logs {
		if l.CampaignID == nil || *l.CampaignID != c.ID {
			t.Fatalf("expected logs to reference campaign %d", c.ID)
		}
	}
}

func TestCampaignExecute_NotDueUnlessForced(t *testing.T) {
	dispatch, _ := newTestDispatch(&fakeAdapter{name: "a"})
	svc := NewCampaignService(newFakeCampaignRepo(), dispatch, 0)

	later := time.Now().Add(time.Hour)
	c := newScheduledCampaign(t, svc, CreateCampaignInput{
		Name: "later", Message: strPtr("hi"), Recipients: []string{"+905550000000"}, ScheduledAt: &later,
	})

	if _, err := svc.Execute(context.Background(), c.ID, false); !errors.Is(err, domain.ErrCampaignNotDue) {
		t.Fatalf("expected ErrCampaignNotDue, got %v", err)
	}

	res, err := svc.Execute(context.Background(), c.ID, true)
	if err != nil || res.Status != domain.CampaignCompleted {
		t.Fatalf("expected forced run to complete, got %+v, %v", res, err)
	}
}

func TestCampaignExecute_CompletedCannotRunAgain(t *testing.T) {
	dispatch, _ := newTestDispatch(&fakeAdapter{name: "a"})
	svc := NewCampaignService(newFakeCampaignRepo(), dispatch, 0)

	c := newScheduledCampaign(t, svc, CreateCampaignInput{Name: "once", Message: strPtr("hi"), Recipients: []string{"+905550000000"}})

	if _, err := svc.Execute(context.Background(), c.ID, false); err != nil {
		t.Fatalf("first Execute returned error: %v", err)
	}

	_, err := svc.Execute(context.Background(), c.ID, true)
	if !errors.Is(err, domain.ErrInvalidTransition) || !IsConflict(err) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

// gatedCampaignRepo holds the first `parties` GetByID calls until all of them
// have read the campaign.
type gatedCampaignRepo struct {
	*fakeCampaignRepo

	gateMu  sync.Mutex
	parties int
	arrived int
	release chan struct{}
}

func (r *gatedCampaignRepo) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := r.fakeCampaignRepo.GetByID(ctx, id)

	r.gateMu.Lock()
	r.arrived++
	if r.arrived == r.parties {
		close(r.release)
	}
	r.gateMu.Unlock()

	<-r.release
	return c, err
}

func TestCampaignExecute_ConcurrentRunsSendOnce(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	dispatch, logs := newTestDispatch(a)
	repo := &gatedCampaignRepo{
		fakeCampaignRepo: newFakeCampaignRepo(),
		parties:          2,
		release:          make(chan struct{}),
	}
	svc := NewCampaignService(repo, dispatch, 0)

	c := newScheduledCampaign(t, svc, CreateCampaignInput{
		Name: "race", Message: strPtr("hi"), Recipients: recipients(3),
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Execute(context.Background(), c.ID, true)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected one run and one conflict, got errs=%v", errs)
	}
	if a.callCount() != 3 {
		t.Fatalf("expected 3 carrier calls, got %d", a.callCount())
	}
	if logs.count() != 3 {
		t.Fatalf("expected 3 log records, got %d", logs.count())
	}

	stored, _ := repo.fakeCampaignRepo.GetByID(context.Background(), c.ID)
	if stored.Status != domain.CampaignCompleted || stored.SentCount != 3 {
		t.Fatalf("expected completed with 3 sent, got %s %d", stored.Status, stored.SentCount)
	}
}

type claimedCampaignRepo struct {
	*fakeCampaignRepo
}

func (r *claimedCampaignRepo) MarkRunning(ctx context.Context, id int64, startedAt time.Time) error {
	return domain.ErrInvalidTransition
}

func TestCampaignRunDue_SkipsCampaignClaimedElsewhere(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	dispatch, _ := newTestDispatch(a)
	svc := NewCampaignService(&claimedCampaignRepo{newFakeCampaignRepo()}, dispatch, 0)

	newScheduledCampaign(t, svc, CreateCampaignInput{Name: "taken", Message: strPtr("hi"), Recipients: recipients(2)})

	results, err := svc.RunDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RunDue returned error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected claimed campaign to be skipped, got %+v", results)
	}
	if a.callCount() != 0 {
		t.Fatalf("expected no sends, got %d", a.callCount())
	}
}

func TestCampaignExecute_NoContentFails(t *testing.T) {
	sender := &stubBulkSender{}
	repo := newFakeCampaignRepo()
	svc := NewCampaignService(repo, sender, 0)

	c := newScheduledCampaign(t, svc, CreateCampaignInput{Name: "empty", Recipients: []string{"+905550000000"}})

	res, err := svc.Execute(context.Background(), c.ID, false)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if res.Status != domain.CampaignFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected no bulk send without content")
	}

	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.CompletedAt == nil || stored.FailureReason == nil {
		t.Fatalf("expected failure to be recorded, got %+v", stored)
	}
}

func TestCampaignExecute_MissingTemplateFails(t *testing.T) {
	dispatch, _ := newTestDispatch(&fakeAdapter{name: "a"})
	svc := NewCampaignService(newFakeCampaignRepo(), dispatch, 0)

	tplID := int64(99)
	c := newScheduledCampaign(t, svc, CreateCampaignInput{Name: "tpl", TemplateID: &tplID, Recipients: []string{"+905550000000"}})

	res, err := svc.Execute(context.Background(), c.ID, false)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Status != domain.CampaignFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
}

func TestCampaignExecute_EveryCarrierFailedFails(t *testing.T) {
	dispatch, _ := newTestDispatch(&fakeAdapter{name: "a", failFor: alwaysFail("a")})
	svc := NewCampaignService(newFakeCampaignRepo(), dispatch, 0)

	c := newScheduledCampaign(t, svc, CreateCampaignInput{
		Name: "down", Message: strPtr("hi"), Recipients: []string{"+905550000000", "+905550000001"},
	})

	res, err := svc.Execute(context.Background(), c.ID, false)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Status != domain.CampaignFailed || res.Failed != 2 {
		t.Fatalf("expected failed campaign with 2 failures, got %+v", res)
	}
}

func TestCampaignExecute_RetryFailedReplacesResults(t *testing.T) {
	sender := &stubBulkSender{fn: func(call int, to []string) []domain.SendResult {
		out := make([]domain.SendResult, len(to))
		for i, n := range to {
			out[i] = domain.SendResult{To: n, Success: true, MessageID: "ok"}
			if call == 1 && i > 0 {
				kind := domain.KindProvider
				if n == "bad" {
					kind = domain.KindInvalidRecipient
				}
				out[i] = domain.SendResult{To: n, Error: &domain.SendError{Kind: kind, Detail: "x"}}
			}
		}
		return out
	}}
	svc := NewCampaignService(newFakeCampaignRepo(), sender, 0)

	c := newScheduledCampaign(t, svc, CreateCampaignInput{
		Name:       "retry",
		Message:    strPtr("hi"),
		Recipients: []string{"+905550000000", "+905550000001", "bad"},
		Settings:   domain.CampaignSettings{RetryFailed: true},
	})

	res, err := svc.Execute(context.Background(), c.ID, false)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(sender.calls) != 2 {
		t.Fatalf("expected a retry pass, got %d calls", len(sender.calls))
	}
	if len(sender.calls[1]) != 1 || sender.calls[1][0] != "+905550000001" {
		t.Fatalf("expected only the retryable recipient to be retried, got %v", sender.calls[1])
	}
	if res.Sent != 2 || res.Failed != 1 {
		t.Fatalf("expected 2 sent 1 failed after retry, got %d/%d", res.Sent, res.Failed)
	}
}

func TestCampaignCancel(t *testing.T) {
	repo := newFakeCampaignRepo()
	svc := NewCampaignService(repo, &stubBulkSender{}, 0)

	draft, _ := svc.Create(context.Background(), CreateCampaignInput{Name: "draft", Recipients: []string{"+905550000000"}})
	if c, err := svc.Cancel(context.Background(), draft.ID); err != nil || c.Status != domain.CampaignCancelled {
		t.Fatalf("expected draft to be cancelled, got %v", err)
	}

	if _, err := svc.Cancel(context.Background(), 42); !errors.Is(err, domain.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}

	if _, err := svc.Schedule(context.Background(), draft.ID, time.Now()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected cancelled campaign not to be schedulable, got %v", err)
	}
}

func TestCampaignRunDue_RunsOnlyDueCampaigns(t *testing.T) {
	dispatch, _ := newTestDispatch(&fakeAdapter{name: "a"})
	repo := newFakeCampaignRepo()
	svc := NewCampaignService(repo, dispatch, 0)

	due := newScheduledCampaign(t, svc, CreateCampaignInput{Name: "due", Message: strPtr("hi"), Recipients: []string{"+905550000000"}})
	later := time.Now().Add(time.Hour)
	newScheduledCampaign(t, svc, CreateCampaignInput{Name: "later", Message: strPtr("hi"), Recipients: []string{"+905550000000"}, ScheduledAt: &later})
	if _, err := svc.Create(context.Background(), CreateCampaignInput{Name: "draft", Message: strPtr("hi")}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	results, err := svc.RunDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("RunDue returned error: %v", err)
	}

	if len(results) != 1 || results[0].CampaignID != due.ID || results[0].Status != domain.CampaignCompleted {
		t.Fatalf("unexpected results %+v", results)
	}

	again, err := svc.RunDue(context.Background(), 10)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected nothing due on second run, got %+v, %v", again, err)
	}
}
