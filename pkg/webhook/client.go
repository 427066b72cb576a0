package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
)

// Alert is posted when the scheduler sees repeated fully failed runs.
type Alert struct {
	Alert               string `json:"alert"`
	RunNumber           int64  `json:"runNumber"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	CampaignsInRun      int    `json:"campaignsInRun"`
	Timestamp           string `json:"timestamp"`
	Message             string `json:"message"`
}

type Client struct {
	httpClient *resty.Client
	webhookURL string
}

func NewWebhookClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		webhookURL: url,
	}
}

func (c *Client) SendAlert(ctx context.Context, alert Alert) error {
	startTime := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post(c.webhookURL)

	duration := time.Since(startTime)

	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}

	logger.Infof("Alert webhook request to %s completed in %v (status: %d)", c.webhookURL, duration, resp.StatusCode())

	if !resp.IsSuccess() {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

func (c *Client) GetURL() string {
	return c.webhookURL
}
