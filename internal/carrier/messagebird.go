package carrier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const messageBirdDefaultBaseURL = "https://rest.messagebird.com"

type MessageBirdAdapter struct {
	cfg  environments.MessageBirdConfig
	http *resty.Client
}

func NewMessageBird(cfg environments.MessageBirdConfig, opts HTTPOptions) *MessageBirdAdapter {
	return &MessageBirdAdapter{cfg: cfg, http: newRestClient(opts)}
}

type messageBirdRequest struct {
	Recipients []string `json:"recipients"`
	Originator string   `json:"originator"`
	Body       string   `json:"body"`
}

type messageBirdResponse struct {
	ID     string `json:"id"`
	Errors []struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
		Parameter   string `json:"parameter"`
	} `json:"errors"`
}

func (a *MessageBirdAdapter) Name() string { return MessageBird }

func (a *MessageBirdAdapter) IsConfigured() bool {
	return a.cfg.AccessKey != "" && a.cfg.Originator != ""
}

func (a *MessageBirdAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	if !a.IsConfigured() {
		return nil, notConfigured(MessageBird, "access key and originator are required")
	}

	number, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(firstNonEmpty(a.cfg.BaseURL, messageBirdDefaultBaseURL), "/")

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "AccessKey "+a.cfg.AccessKey).
		SetHeader("Content-Type", "application/json").
		SetBody(messageBirdRequest{
			Recipients: []string{msisdn(number)},
			Originator: firstNonEmpty(from, a.cfg.Originator),
			Body:       body,
		}).
		Post(baseURL + "/messages")
	if err != nil {
		return nil, transportError(MessageBird, err)
	}

	var out messageBirdResponse
	_ = json.Unmarshal(resp.Body(), &out)

	if !resp.IsSuccess() || len(out.Errors) > 0 {
		message := ""
		if len(out.Errors) > 0 {
			message = out.Errors[0].Description
		}
		return nil, statusError(MessageBird, resp, message)
	}
	if out.ID == "" {
		return nil, statusError(MessageBird, resp, "response without message id")
	}

	return &domain.ProviderResult{
		MessageID:   out.ID,
		RawResponse: rawJSON(resp.Body()),
	}, nil
}
