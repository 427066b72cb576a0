package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/pkg/webhook"
)

type fakeRunner struct {
	mu      sync.Mutex
	results []domain.CampaignRunResult
	err     error
	limits  []int
}

func (f *fakeRunner) RunDue(ctx context.Context, limit int) ([]domain.CampaignRunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	return f.results, f.err
}

type fakeFirer struct {
	fired int
	calls int
}

func (f *fakeFirer) FirePendingReplies(ctx context.Context, limit int) (int, error) {
	f.calls++
	return f.fired, nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []webhook.Alert
	done   chan struct{}
}

func (f *fakeAlerter) SendAlert(ctx context.Context, alert webhook.Alert) error {
	f.mu.Lock()
	f.alerts = append(f.alerts, alert)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return nil
}

func TestScheduler_Tick_MixedResults(t *testing.T) {
	runner := &fakeRunner{results: []domain.CampaignRunResult{
		{CampaignID: 1, Status: domain.CampaignCompleted},
		{CampaignID: 2, Status: domain.CampaignFailed},
	}}
	firer := &fakeFirer{fired: 3}
	s := New(runner, firer, nil, time.Minute, 5, 3)

	s.tick(context.Background())

	status := s.GetStatus()
	if status.RunsCount != 1 {
		t.Errorf("expected RunsCount=1, got %d", status.RunsCount)
	}
	if status.CampaignsRun != 2 || status.CampaignsFailed != 1 {
		t.Errorf("expected 2 run and 1 failed, got %d/%d", status.CampaignsRun, status.CampaignsFailed)
	}
	if status.RepliesFired != 3 {
		t.Errorf("expected RepliesFired=3, got %d", status.RepliesFired)
	}
	if status.ConsecutiveAllFailCount != 0 {
		t.Errorf("expected ConsecutiveAllFailCount=0, got %d", status.ConsecutiveAllFailCount)
	}
	if len(runner.limits) != 1 || runner.limits[0] != 5 {
		t.Fatalf("expected RunDue(5), got %v", runner.limits)
	}
}

func TestScheduler_Tick_AllFailIncrementsCounter(t *testing.T) {
	runner := &fakeRunner{results: []domain.CampaignRunResult{
		{CampaignID: 1, Status: domain.CampaignFailed},
	}}
	s := New(runner, &fakeFirer{}, nil, time.Minute, 5, 5)

	s.tick(context.Background())
	s.tick(context.Background())

	if got := s.GetStatus().ConsecutiveAllFailCount; got != 2 {
		t.Errorf("expected ConsecutiveAllFailCount=2, got %d", got)
	}
}

func TestScheduler_Tick_NoDueCampaignsKeepsCounter(t *testing.T) {
	runner := &fakeRunner{results: []domain.CampaignRunResult{{Status: domain.CampaignFailed}}}
	s := New(runner, &fakeFirer{}, nil, time.Minute, 5, 5)

	s.tick(context.Background())
	runner.results = nil
	s.tick(context.Background())

	if got := s.GetStatus().ConsecutiveAllFailCount; got != 1 {
		t.Errorf("expected idle run not to reset the counter, got %d", got)
	}
}

func TestScheduler_Tick_RunnerErrorStillFiresReplies(t *testing.T) {
	runner := &fakeRunner{err: errors.New("db down")}
	firer := &fakeFirer{}
	s := New(runner, firer, nil, time.Minute, 5, 0)

	s.tick(context.Background())

	if firer.calls != 1 {
		t.Fatalf("expected delayed replies to be fired, got %d calls", firer.calls)
	}
}

func TestScheduler_AlertAfterThreshold(t *testing.T) {
	runner := &fakeRunner{results: []domain.CampaignRunResult{{Status: domain.CampaignFailed}}}
	alerter := &fakeAlerter{done: make(chan struct{}, 1)}
	s := New(runner, &fakeFirer{}, alerter, time.Minute, 5, 2)

	s.tick(context.Background())
	s.tick(context.Background())

	select {
	case <-alerter.done:
	case <-time.After(time.Second):
		t.Fatalf("expected an alert after two all-fail runs")
	}

	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	if len(alerter.alerts) != 1 || alerter.alerts[0].ConsecutiveFailures != 2 {
		t.Fatalf("unexpected alerts %+v", alerter.alerts)
	}
}

func TestScheduler_StartAndStopToggleRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(&fakeRunner{}, &fakeFirer{}, nil, 10*time.Millisecond, 1, 0)

	if s.IsRunning() {
		t.Fatalf("expected scheduler to be not running initially")
	}

	if err := s.StartWithParams(ctx, 0, 3, 0); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if !s.IsRunning() {
		t.Fatalf("expected scheduler to be running after Start")
	}
	if s.GetStatus().RunLimit != 3 {
		t.Fatalf("expected run limit override to apply")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	if s.IsRunning() {
		t.Fatalf("expected scheduler to be not running after Stop")
	}
}
