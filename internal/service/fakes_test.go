package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/carrier"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

//
// Test fakes shared by the service tests.
//

type fakeAdapter struct {
	name string
	// failFor returns the error to use for a recipient, or nil for success.
	failFor func(to string) error
	delay   time.Duration

	mu    sync.Mutex
	calls []string
	inFl  int
	maxIn int
}

func (a *fakeAdapter) Name() string       { return a.name }
func (a *fakeAdapter) IsConfigured() bool { return true }

func (a *fakeAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	a.mu.Lock()
	a.calls = append(a.calls, to)
	a.inFl++
	if a.inFl > a.maxIn {
		a.maxIn = a.inFl
	}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFl--
		a.mu.Unlock()
	}()

	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	if _, err := carrier.NormalizePhone(to); err != nil {
		return nil, err
	}
	if a.failFor != nil {
		if err := a.failFor(to); err != nil {
			return nil, err
		}
	}

	return &domain.ProviderResult{MessageID: a.name + ":" + to}, nil
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *fakeAdapter) maxInFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxIn
}

func alwaysFail(name string) func(string) error {
	return func(string) error {
		return &domain.ProviderError{Carrier: name, HTTPStatus: 500, Message: "boom"}
	}
}

type fakeLogRepo struct {
	mu   sync.Mutex
	logs []*domain.MessageLog
}

func (r *fakeLogRepo) SaveLog(ctx context.Context, log *domain.MessageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeLogRepo) GetAll(ctx context.Context, status *domain.LogStatus, page, pageSize int) ([]domain.MessageLog, int64, error) {
	return nil, 0, nil
}

func (r *fakeLogRepo) GetStats(ctx context.Context) (sent, failed int64, err error) {
	return 0, 0, nil
}

func (r *fakeLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

type fakeTemplateRepo struct {
	templates map[int64]*domain.Template
}

func (r *fakeTemplateRepo) GetByID(ctx context.Context, id int64) (*domain.Template, error) {
	return r.templates[id], nil
}

type fakeLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

func (l *fakeLimiter) Allow(ctx context.Context, actor string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	l.counts[actor]++
	if l.counts[actor] > l.limit {
		return &domain.RateLimitedError{Actor: actor, RetryAfterSeconds: 30}
	}
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.SentMessageCache
}

func (c *fakeCache) CacheSentMessage(ctx context.Context, messageID, carrierName, to string, sentAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		c.entries = make(map[string]*domain.SentMessageCache)
	}
	c.entries[messageID] = &domain.SentMessageCache{Carrier: carrierName, To: to, SentAt: sentAt}
	return nil
}

func (c *fakeCache) GetCachedMessage(ctx context.Context, messageID string) (*domain.SentMessageCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[messageID], nil
}

func (c *fakeCache) GetAllCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries, nil
}

func newTestDispatch(adapters ...*fakeAdapter) (*DispatchService, *fakeLogRepo) {
	names := make([]string, 0, len(adapters))
	list := make([]carrier.Adapter, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.name)
		list = append(list, a)
	}

	var def string
	var fallback []string
	if len(names) > 0 {
		def, fallback = names[0], names[1:]
	}

	logs := &fakeLogRepo{}
	svc := NewDispatchService(
		carrier.NewRegistry(def, fallback, list...),
		logs,
		&fakeTemplateRepo{},
		nil,
		nil,
		0,
	)
	return svc, logs
}

func recipients(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("+90555%07d", i)
	}
	return out
}
