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

const viberDefaultBaseURL = "https://chatapi.viber.com/pa"

type ViberAdapter struct {
	cfg  environments.ViberConfig
	http *resty.Client
}

func NewViber(cfg environments.ViberConfig, opts HTTPOptions) *ViberAdapter {
	return &ViberAdapter{cfg: cfg, http: newRestClient(opts)}
}

type viberSender struct {
	Name string `json:"name"`
}

type viberRequest struct {
	Receiver string      `json:"receiver"`
	Type     string      `json:"type"`
	Text     string      `json:"text"`
	Sender   viberSender `json:"sender"`
}

type viberResponse struct {
	Status        int         `json:"status"`
	StatusMessage string      `json:"status_message"`
	MessageToken  json.Number `json:"message_token"`
}

func (a *ViberAdapter) Name() string { return Viber }

func (a *ViberAdapter) IsConfigured() bool {
	return a.cfg.AuthToken != "" && a.cfg.SenderName != ""
}

func (a *ViberAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	if !a.IsConfigured() {
		return nil, notConfigured(Viber, "auth token and sender name are required")
	}

	number, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(firstNonEmpty(a.cfg.BaseURL, viberDefaultBaseURL), "/")

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("X-Viber-Auth-Token", a.cfg.AuthToken).
		SetHeader("Content-Type", "application/json").
		SetBody(viberRequest{
			Receiver: number,
			Type:     "text",
			Text:     body,
			Sender:   viberSender{Name: firstNonEmpty(from, a.cfg.SenderName)},
		}).
		Post(baseURL + "/send_message")
	if err != nil {
		return nil, transportError(Viber, err)
	}

	var out viberResponse
	_ = json.Unmarshal(resp.Body(), &out)

	if !resp.IsSuccess() {
		return nil, statusError(Viber, resp, out.StatusMessage)
	}
	// Viber signals failures with HTTP 200 and a non-zero status code.
	if out.Status != 0 {
		return nil, statusError(Viber, resp, firstNonEmpty(out.StatusMessage, "rejected with status "+strconv.Itoa(out.Status)))
	}
	if out.MessageToken == "" {
		return nil, statusError(Viber, resp, "response without message token")
	}

	return &domain.ProviderResult{
		MessageID:   out.MessageToken.String(),
		RawResponse: rawJSON(resp.Body()),
	}, nil
}
