package carrier

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const vonageDefaultBaseURL = "https://rest.nexmo.com"

type VonageAdapter struct {
	cfg  environments.VonageConfig
	http *resty.Client
}

func NewVonage(cfg environments.VonageConfig, opts HTTPOptions) *VonageAdapter {
	return &VonageAdapter{cfg: cfg, http: newRestClient(opts)}
}

type vonageResponse struct {
	MessageCount string `json:"message-count"`
	Messages     []struct {
		To           string `json:"to"`
		MessageID    string `json:"message-id"`
		Status       string `json:"status"`
		MessagePrice string `json:"message-price"`
		ErrorText    string `json:"error-text"`
	} `json:"messages"`
}

func (a *VonageAdapter) Name() string { return Vonage }

func (a *VonageAdapter) IsConfigured() bool {
	return a.cfg.APIKey != "" && a.cfg.APISecret != "" && a.cfg.From != ""
}

func (a *VonageAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	if !a.IsConfigured() {
		return nil, notConfigured(Vonage, "api key, api secret and sender are required")
	}

	number, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(firstNonEmpty(a.cfg.BaseURL, vonageDefaultBaseURL), "/")

	resp, err := a.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"api_key":    a.cfg.APIKey,
			"api_secret": a.cfg.APISecret,
			"from":       firstNonEmpty(from, a.cfg.From),
			"to":         msisdn(number),
			"text":       body,
		}).
		Post(baseURL + "/sms/json")
	if err != nil {
		return nil, transportError(Vonage, err)
	}
	if !resp.IsSuccess() {
		return nil, statusError(Vonage, resp, "")
	}

	var out vonageResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || len(out.Messages) == 0 {
		return nil, statusError(Vonage, resp, "unreadable response")
	}

	// Vonage reports rejections with HTTP 200 and a non-zero status per message.
	msg := out.Messages[0]
	if msg.Status != "0" {
		return nil, statusError(Vonage, resp, firstNonEmpty(msg.ErrorText, "rejected with status "+msg.Status))
	}
	if msg.MessageID == "" {
		return nil, statusError(Vonage, resp, "response without message id")
	}

	result := &domain.ProviderResult{
		MessageID:   msg.MessageID,
		RawResponse: rawJSON(resp.Body()),
	}
	if price, err := strconv.ParseFloat(msg.MessagePrice, 64); err == nil {
		result.Cost = &price
	}

	return result, nil
}
