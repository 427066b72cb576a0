package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
	"github.com/onurcolak/sms-dispatch-service/pkg/webhook"
)

// campaignRunner and replyFirer are the minimal interfaces the scheduler
// drives on every tick. They let us unit test the scheduler with fakes.
type campaignRunner interface {
	RunDue(ctx context.Context, limit int) ([]domain.CampaignRunResult, error)
}

type replyFirer interface {
	FirePendingReplies(ctx context.Context, limit int) (int, error)
}

type alerter interface {
	SendAlert(ctx context.Context, alert webhook.Alert) error
}

type Scheduler struct {
	campaigns      campaignRunner
	replies        replyFirer
	alerter        alerter
	interval       time.Duration
	runLimit       int
	alertThreshold int // Number of consecutive all-fail runs before alert
	lastAlertAt    time.Time

	// Internal state
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex

	// Statistics
	lastRunAt       time.Time
	runsCount       int64
	campaignsRun    int64
	campaignsFailed int64
	repliesFired    int64

	// Count of consecutive runs where every executed campaign failed
	consecutiveAllFailCount int
}

// New builds a scheduler. alerter may be nil when no alert webhook is set.
func New(campaigns campaignRunner, replies replyFirer, alerter alerter, interval time.Duration, runLimit, alertThreshold int) *Scheduler {
	if runLimit <= 0 {
		runLimit = 10
	}

	return &Scheduler{
		campaigns:      campaigns,
		replies:        replies,
		alerter:        alerter,
		interval:       interval,
		runLimit:       runLimit,
		alertThreshold: alertThreshold,
	}
}

// StartWithParams overrides the tick interval, run limit and alert threshold
// before starting. Zero values keep the current settings.
func (s *Scheduler) StartWithParams(ctx context.Context, intervalSeconds, runLimit, alertThreshold int) error {
	s.mu.Lock()
	if intervalSeconds > 0 {
		s.interval = time.Duration(intervalSeconds) * time.Second
	}
	if runLimit > 0 {
		s.runLimit = runLimit
	}
	if alertThreshold > 0 {
		s.alertThreshold = alertThreshold
	}
	s.consecutiveAllFailCount = 0
	s.mu.Unlock()

	return s.Start(ctx)
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is already running")
		return nil
	}
	if s.interval <= 0 {
		s.interval = time.Minute
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	interval := s.interval
	s.mu.Unlock()

	logger.Infof("Starting scheduler with interval: %v", interval)

	go s.run(ctx, interval)

	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration) {
	defer close(s.doneChan)

	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof("Scheduler running. Next execution in %v", interval)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
			logger.Debugf("Next execution in %v", interval)

		case <-s.stopChan:
			logger.Warnf("Scheduler received stop signal")
			return

		case <-ctx.Done():
			logger.Warnf("Scheduler context cancelled")
			return
		}
	}
}

// tick runs due campaigns and fires due delayed replies once.
func (s *Scheduler) tick(ctx context.Context) {
	startedAt := time.Now()

	s.mu.Lock()
	s.lastRunAt = startedAt
	s.runsCount++
	runNumber := s.runsCount
	runLimit := s.runLimit
	s.mu.Unlock()

	logger.Infof("[Run #%d] Starting scheduler run at %s", runNumber, startedAt.Format(time.RFC3339))

	s.runCampaigns(ctx, runNumber, runLimit)

	if s.replies != nil {
		fired, err := s.replies.FirePendingReplies(ctx, runLimit)
		if err != nil {
			logger.Errorf("[Run #%d] Error firing delayed replies: %v", runNumber, err)
		} else if fired > 0 {
			s.mu.Lock()
			s.repliesFired += int64(fired)
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) runCampaigns(ctx context.Context, runNumber int64, runLimit int) {
	results, err := s.campaigns.RunDue(ctx, runLimit)
	if err != nil {
		logger.Errorf("[Run #%d] Error running due campaigns: %v", runNumber, err)
		return
	}

	if len(results) == 0 {
		logger.Debugf("[Run #%d] No due campaigns", runNumber)
		return
	}

	failedCount := 0
	for _, r := range results {
		if r.Status != domain.CampaignCompleted {
			failedCount++
		}
	}
	allFailed := failedCount == len(results)

	s.mu.Lock()
	s.campaignsRun += int64(len(results))
	s.campaignsFailed += int64(failedCount)

	if allFailed {
		s.consecutiveAllFailCount++
		logger.Warnf("[Run #%d] All %d campaigns failed (consecutive count: %d/%d)",
			runNumber, len(results), s.consecutiveAllFailCount, s.alertThreshold)

		if s.alertThreshold > 0 && s.consecutiveAllFailCount >= s.alertThreshold && s.alerter != nil {
			go s.sendAlert(runNumber, s.consecutiveAllFailCount, len(results))
		}
	} else {
		if s.consecutiveAllFailCount > 0 {
			logger.Debugf("[Run #%d] Resetting consecutive failure count (was: %d)", runNumber, s.consecutiveAllFailCount)
		}
		s.consecutiveAllFailCount = 0
	}
	s.mu.Unlock()

	logger.Infof("[Run #%d] Ran %d campaigns, %d completed, %d failed",
		runNumber, len(results), len(results)-failedCount, failedCount)
}

func (s *Scheduler) sendAlert(runNumber int64, consecutiveFailures, campaignsInRun int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.alerter.SendAlert(ctx, webhook.Alert{
		Alert:               "consecutive_all_fail",
		RunNumber:           runNumber,
		ConsecutiveFailures: consecutiveFailures,
		CampaignsInRun:      campaignsInRun,
		Timestamp:           time.Now().Format(time.RFC3339),
		Message: fmt.Sprintf(
			"All %d campaigns failed for %d consecutive runs",
			campaignsInRun,
			consecutiveFailures,
		),
	})
	if err != nil {
		logger.Errorf("Failed to send alert: %v", err)
		return
	}

	s.mu.Lock()
	s.lastAlertAt = time.Now()
	s.mu.Unlock()

	logger.Infof("Alert sent (consecutive failures: %d)", consecutiveFailures)
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is not running")
		return nil
	}

	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan

	logger.Infof("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running:                 s.running,
		LastRunAt:               s.lastRunAt,
		RunsCount:               s.runsCount,
		CampaignsRun:            s.campaignsRun,
		CampaignsFailed:         s.campaignsFailed,
		RepliesFired:            s.repliesFired,
		Interval:                s.interval.String(),
		RunLimit:                s.runLimit,
		ConsecutiveAllFailCount: s.consecutiveAllFailCount,
		LastAlertAt:             s.lastAlertAt,
	}

	if s.running && !s.lastRunAt.IsZero() {
		status.NextRunAt = s.lastRunAt.Add(s.interval)
	}

	return status
}

type Status struct {
	Running                 bool      `json:"running"`
	LastRunAt               time.Time `json:"lastRunAt,omitempty"`
	NextRunAt               time.Time `json:"nextRunAt,omitempty"`
	RunsCount               int64     `json:"runsCount"`
	CampaignsRun            int64     `json:"campaignsRun"`
	CampaignsFailed         int64     `json:"campaignsFailed"`
	RepliesFired            int64     `json:"repliesFired"`
	Interval                string    `json:"interval"`
	RunLimit                int       `json:"runLimit"`
	ConsecutiveAllFailCount int       `json:"consecutiveAllFailCount"`
	LastAlertAt             time.Time `json:"lastAlertAt,omitempty"`
}
