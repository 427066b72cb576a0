package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onurcolak/sms-dispatch-service/internal/carrier"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

func TestSendOne_Success(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	svc, logs := newTestDispatch(a)

	res, err := svc.SendOne(context.Background(), SendRequest{To: "+905551234567", Message: "hello"})
	if err != nil {
		t.Fatalf("SendOne returned error: %v", err)
	}

	if !res.Success || res.MessageID == "" || res.Error != nil {
		t.Fatalf("expected success with message id, got %+v", res)
	}
	if res.Carrier != "a" {
		t.Fatalf("expected carrier a, got %q", res.Carrier)
	}
	if logs.count() != 1 {
		t.Fatalf("expected exactly one log record, got %d", logs.count())
	}
	if logs.logs[0].Status != domain.LogStatusSent {
		t.Fatalf("expected sent log, got %q", logs.logs[0].Status)
	}
}

func TestSendOne_FailoverAttributesLastCarrier(t *testing.T) {
	a := &fakeAdapter{name: "a", failFor: alwaysFail("a")}
	b := &fakeAdapter{name: "b", failFor: alwaysFail("b")}
	c := &fakeAdapter{name: "c"}
	svc, logs := newTestDispatch(a, b, c)

	res, err := svc.SendOne(context.Background(), SendRequest{To: "+905551234567", Message: "hello"})
	if err != nil {
		t.Fatalf("SendOne returned error: %v", err)
	}

	if !res.Success || res.Carrier != "c" {
		t.Fatalf("expected success via c, got %+v", res)
	}
	if len(res.Attempts) != 2 || res.Attempts[0].Carrier != "a" || res.Attempts[1].Carrier != "b" {
		t.Fatalf("expected attempts [a b], got %+v", res.Attempts)
	}

	var attempts []domain.CarrierAttempt
	if err := json.Unmarshal(logs.logs[0].Attempts, &attempts); err != nil {
		t.Fatalf("log attempts are not valid JSON: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected logged attempts for a and b, got %+v", attempts)
	}
}

func TestSendOne_AllCarriersFailed(t *testing.T) {
	a := &fakeAdapter{name: "a", failFor: alwaysFail("a")}
	b := &fakeAdapter{name: "b", failFor: alwaysFail("b")}
	svc, logs := newTestDispatch(a, b)

	res, err := svc.SendOne(context.Background(), SendRequest{To: "+905551234567", Message: "hello"})
	if err != nil {
		t.Fatalf("carrier failures must not be returned as error, got %v", err)
	}

	if res.Success || res.Error == nil {
		t.Fatalf("expected failed result with error, got %+v", res)
	}
	if res.Kind() != domain.KindAllCarriersFailed {
		t.Fatalf("expected all_carriers_failed, got %q", res.Kind())
	}

	var allErr *domain.AllCarriersFailedError
	if !errors.As(res.Err, &allErr) || len(allErr.Attempts) != 2 {
		t.Fatalf("expected typed error with two attempts, got %v", res.Err)
	}
	if logs.count() != 1 || logs.logs[0].Status != domain.LogStatusFailed {
		t.Fatalf("expected one failed log record")
	}
}

func TestSendOne_InvalidRecipientIsNotRetried(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	b := &fakeAdapter{name: "b"}
	svc, logs := newTestDispatch(a, b)

	res, err := svc.SendOne(context.Background(), SendRequest{To: "12345", Message: "hello"})
	if err != nil {
		t.Fatalf("SendOne returned error: %v", err)
	}

	if res.Kind() != domain.KindInvalidRecipient {
		t.Fatalf("expected invalid_recipient, got %q", res.Kind())
	}
	if b.callCount() != 0 {
		t.Fatalf("expected b never to be called, got %d calls", b.callCount())
	}
	if logs.count() != 1 {
		t.Fatalf("expected one log record, got %d", logs.count())
	}
}

func TestSendOne_ExplicitDriverIsNotReplaced(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	b := &fakeAdapter{name: "b", failFor: alwaysFail("b")}
	svc, _ := newTestDispatch(a, b)

	res, _ := svc.SendOne(context.Background(), SendRequest{To: "+905551234567", Message: "hello", Driver: "b"})

	if res.Success {
		t.Fatalf("expected failure when the explicit driver fails")
	}
	if a.callCount() != 0 {
		t.Fatalf("expected default carrier not to be used, got %d calls", a.callCount())
	}
}

func TestSendOne_RateLimitedTouchesNoAdapter(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	svc, logs := newTestDispatch(a)
	svc.limiter = &fakeLimiter{limit: 1}

	ctx := context.Background()
	if _, err := svc.SendOne(ctx, SendRequest{To: "+905551234567", Message: "one", Actor: "api"}); err != nil {
		t.Fatalf("first call returned error: %v", err)
	}

	res, err := svc.SendOne(ctx, SendRequest{To: "+905551234567", Message: "two", Actor: "api"})

	var rateErr *domain.RateLimitedError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rateErr.RetryAfterSeconds != 30 {
		t.Fatalf("expected retry hint to be kept, got %d", rateErr.RetryAfterSeconds)
	}
	if res.Kind() != domain.KindRateLimited {
		t.Fatalf("expected rate_limited result, got %q", res.Kind())
	}
	if a.callCount() != 1 {
		t.Fatalf("expected adapter to be called once, got %d", a.callCount())
	}
	if logs.count() != 1 {
		t.Fatalf("expected rejected call to leave no log record, got %d", logs.count())
	}
}

func TestSendOne_RendersMessageVariables(t *testing.T) {
	svc, logs := newTestDispatch(&fakeAdapter{name: "a"})

	_, err := svc.SendOne(context.Background(), SendRequest{
		To:        "+905551234567",
		Message:   "Hi {{name}}, code {code} {{unknown}}",
		Variables: map[string]string{"name": "Ana", "code": "42"},
	})
	if err != nil {
		t.Fatalf("SendOne returned error: %v", err)
	}

	if got := logs.logs[0].Body; got != "Hi Ana, code 42 {{unknown}}" {
		t.Fatalf("unexpected rendered body %q", got)
	}
}

func TestSendOne_Template(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	svc, logs := newTestDispatch(a)
	svc.templates = &fakeTemplateRepo{templates: map[int64]*domain.Template{
		1: {ID: 1, Body: "Welcome {{name}}", IsActive: true},
		2: {ID: 2, Body: "Old", IsActive: false},
	}}

	ctx := context.Background()
	id := int64(1)
	if _, err := svc.SendOne(ctx, SendRequest{To: "+905551234567", TemplateID: &id, Variables: map[string]string{"name": "Ana"}}); err != nil {
		t.Fatalf("SendOne returned error: %v", err)
	}
	if logs.logs[0].Body != "Welcome Ana" || logs.logs[0].TemplateID == nil || *logs.logs[0].TemplateID != 1 {
		t.Fatalf("unexpected log %+v", logs.logs[0])
	}

	for _, missing := range []int64{2, 3} {
		_, err := svc.SendOne(ctx, SendRequest{To: "+905551234567", TemplateID: &missing})

		var tplErr *domain.TemplateRenderError
		if !errors.As(err, &tplErr) || tplErr.TemplateID != missing {
			t.Fatalf("template %d: expected TemplateRenderError, got %v", missing, err)
		}
	}

	if a.callCount() != 1 {
		t.Fatalf("expected template failures not to reach the adapter, got %d calls", a.callCount())
	}
}

func TestSendOne_NoContent(t *testing.T) {
	svc, _ := newTestDispatch(&fakeAdapter{name: "a"})

	_, err := svc.SendOne(context.Background(), SendRequest{To: "+905551234567", Message: "   "})
	if !errors.Is(err, domain.ErrNoMessageContent) {
		t.Fatalf("expected ErrNoMessageContent, got %v", err)
	}
}

func TestSendOne_CachesSuccessfulSends(t *testing.T) {
	svc, _ := newTestDispatch(&fakeAdapter{name: "a"})
	cache := &fakeCache{}
	svc.cache = cache

	res, _ := svc.SendOne(context.Background(), SendRequest{To: "+905551234567", Message: "hello"})

	entry := cache.entries[res.MessageID]
	if entry == nil || entry.Carrier != "a" || entry.To != "+905551234567" {
		t.Fatalf("expected cache entry for %s, got %+v", res.MessageID, cache.entries)
	}
}

func TestGetCachedMessage(t *testing.T) {
	svc, _ := newTestDispatch(&fakeAdapter{name: "a"})
	ctx := context.Background()

	if _, err := svc.GetCachedMessage(ctx, "a:1"); err == nil {
		t.Fatalf("expected error without a cache")
	}

	svc.cache = &fakeCache{}
	res, _ := svc.SendOne(ctx, SendRequest{To: "+905551234567", Message: "hello"})

	got, err := svc.GetCachedMessage(ctx, res.MessageID)
	if err != nil {
		t.Fatalf("GetCachedMessage returned error: %v", err)
	}
	if got.Carrier != "a" || got.To != "+905551234567" {
		t.Fatalf("unexpected cache entry %+v", got)
	}

	if _, err := svc.GetCachedMessage(ctx, "unknown"); !errors.Is(err, domain.ErrCachedMessageNotFound) {
		t.Fatalf("expected ErrCachedMessageNotFound, got %v", err)
	}
}

func TestSendBulk_PreservesOrderAndCount(t *testing.T) {
	to := recipients(23)
	to[4] = "bad"

	a := &fakeAdapter{
		name: "a",
		failFor: func(n string) error {
			if strings.HasSuffix(n, "7") {
				return &domain.ProviderError{Carrier: "a", HTTPStatus: 503, Message: "busy"}
			}
			return nil
		},
		delay: time.Millisecond,
	}
	svc, logs := newTestDispatch(a)

	results, err := svc.SendBulk(context.Background(), BulkRequest{Recipients: to, Message: "hi", BatchSize: 5})
	if err != nil {
		t.Fatalf("SendBulk returned error: %v", err)
	}

	if len(results) != len(to) {
		t.Fatalf("expected %d results, got %d", len(to), len(results))
	}
	for i, r := range results {
		if r.To != to[i] {
			t.Fatalf("result %d is for %q, want %q", i, r.To, to[i])
		}
		if r.Success == (r.Error != nil) {
			t.Fatalf("result %d must have exactly one of success or error: %+v", i, r)
		}
		if r.Success && r.MessageID == "" {
			t.Fatalf("result %d succeeded without message id", i)
		}
	}

	if results[4].Kind() != domain.KindInvalidRecipient {
		t.Fatalf("expected invalid recipient at index 4, got %q", results[4].Kind())
	}
	if !results[0].Success {
		t.Fatalf("expected other recipients to succeed despite failures")
	}
	if logs.count() != len(to) {
		t.Fatalf("expected one log per recipient, got %d", logs.count())
	}
}

func TestSendBulk_BatchBoundsConcurrency(t *testing.T) {
	a := &fakeAdapter{name: "a", delay: 10 * time.Millisecond}
	svc, _ := newTestDispatch(a)

	var mu sync.Mutex
	var batchSizes []int

	_, err := svc.SendBulk(context.Background(), BulkRequest{
		Recipients: recipients(12),
		Message:    "hi",
		BatchSize:  5,
		OnBatchDone: func(ctx context.Context, batch []domain.SendResult) {
			mu.Lock()
			batchSizes = append(batchSizes, len(batch))
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("SendBulk returned error: %v", err)
	}

	if a.maxInFlight() > 5 {
		t.Fatalf("expected at most 5 concurrent sends, got %d", a.maxInFlight())
	}
	if len(batchSizes) != 3 || batchSizes[0] != 5 || batchSizes[1] != 5 || batchSizes[2] != 2 {
		t.Fatalf("unexpected batch sizes %v", batchSizes)
	}
}

func TestSendBulk_RateLimiterConsultedOncePerCall(t *testing.T) {
	a := &fakeAdapter{name: "a"}
	svc, _ := newTestDispatch(a)
	svc.limiter = &fakeLimiter{limit: 1}

	ctx := context.Background()
	results, err := svc.SendBulk(ctx, BulkRequest{Recipients: recipients(10), Message: "hi", Actor: "campaign:1"})
	if err != nil {
		t.Fatalf("SendBulk returned error: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}

	_, err = svc.SendBulk(ctx, BulkRequest{Recipients: recipients(3), Message: "hi", Actor: "campaign:1"})

	var rateErr *domain.RateLimitedError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitedError on second bulk call, got %v", err)
	}
	if a.callCount() != 10 {
		t.Fatalf("expected rejected bulk call to send nothing, got %d calls", a.callCount())
	}
}

func TestSendBulk_SendRatePacesSends(t *testing.T) {
	svc, _ := newTestDispatch(&fakeAdapter{name: "a"})

	start := time.Now()
	_, err := svc.SendBulk(context.Background(), BulkRequest{Recipients: recipients(5), Message: "hi", SendRate: 20})
	if err != nil {
		t.Fatalf("SendBulk returned error: %v", err)
	}

	// 5 sends at 20/s with a burst of one need at least four 50ms gaps.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected paced sends, finished in %v", elapsed)
	}
}

func TestSendBulk_EmptyRecipients(t *testing.T) {
	svc, _ := newTestDispatch(&fakeAdapter{name: "a"})

	results, err := svc.SendBulk(context.Background(), BulkRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("SendBulk returned error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSendBulk_NoCarriers(t *testing.T) {
	svc := NewDispatchService(carrier.NewRegistry("", nil), &fakeLogRepo{}, &fakeTemplateRepo{}, nil, nil, 0)

	results, err := svc.SendBulk(context.Background(), BulkRequest{Recipients: recipients(2), Message: "hi"})
	if err != nil {
		t.Fatalf("SendBulk returned error: %v", err)
	}
	for _, r := range results {
		if r.Kind() != domain.KindAllCarriersFailed {
			t.Fatalf("expected all_carriers_failed, got %q", r.Kind())
		}
	}
}
