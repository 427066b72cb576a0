package carrier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const (
	whatsAppDefaultBaseURL    = "https://graph.facebook.com"
	whatsAppDefaultAPIVersion = "v18.0"
)

// WhatsAppAdapter sends text messages through the Meta Cloud API. The sender
// is fixed by the configured phone number id, so the from argument is ignored.
type WhatsAppAdapter struct {
	cfg  environments.WhatsAppConfig
	http *resty.Client
}

func NewWhatsApp(cfg environments.WhatsAppConfig, opts HTTPOptions) *WhatsAppAdapter {
	return &WhatsAppAdapter{cfg: cfg, http: newRestClient(opts)}
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (a *WhatsAppAdapter) Name() string { return WhatsApp }

func (a *WhatsAppAdapter) IsConfigured() bool {
	return a.cfg.AccessToken != "" && a.cfg.PhoneNumberID != ""
}

func (a *WhatsAppAdapter) Send(ctx context.Context, to, body, _ string) (*domain.ProviderResult, error) {
	if !a.IsConfigured() {
		return nil, notConfigured(WhatsApp, "access token and phone number id are required")
	}

	number, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(firstNonEmpty(a.cfg.BaseURL, whatsAppDefaultBaseURL), "/")
	version := firstNonEmpty(a.cfg.APIVersion, whatsAppDefaultAPIVersion)
	endpoint := baseURL + "/" + version + "/" + a.cfg.PhoneNumberID + "/messages"

	resp, err := a.http.R().
		SetContext(ctx).
		SetAuthToken(a.cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(whatsAppRequest{
			MessagingProduct: "whatsapp",
			To:               msisdn(number),
			Type:             "text",
			Text:             whatsAppText{Body: body},
		}).
		Post(endpoint)
	if err != nil {
		return nil, transportError(WhatsApp, err)
	}

	var out whatsAppResponse
	_ = json.Unmarshal(resp.Body(), &out)

	if !resp.IsSuccess() {
		return nil, statusError(WhatsApp, resp, out.Error.Message)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return nil, statusError(WhatsApp, resp, "response without message id")
	}

	return &domain.ProviderResult{
		MessageID:   out.Messages[0].ID,
		RawResponse: rawJSON(resp.Body()),
	}, nil
}
