package carrier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

// InfobipAdapter talks to the account specific Infobip base URL, so BaseURL is
// part of the required configuration.
type InfobipAdapter struct {
	cfg  environments.InfobipConfig
	http *resty.Client
}

func NewInfobip(cfg environments.InfobipConfig, opts HTTPOptions) *InfobipAdapter {
	return &InfobipAdapter{cfg: cfg, http: newRestClient(opts)}
}

type infobipDestination struct {
	To string `json:"to"`
}

type infobipMessage struct {
	Destinations []infobipDestination `json:"destinations"`
	From         string               `json:"from,omitempty"`
	Text         string               `json:"text"`
}

type infobipRequest struct {
	Messages []infobipMessage `json:"messages"`
}

type infobipResponse struct {
	BulkID   string `json:"bulkId"`
	Messages []struct {
		MessageID string `json:"messageId"`
		To        string `json:"to"`
		Status    struct {
			GroupName   string `json:"groupName"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"status"`
	} `json:"messages"`
	RequestError struct {
		ServiceException struct {
			MessageID string `json:"messageId"`
			Text      string `json:"text"`
		} `json:"serviceException"`
	} `json:"requestError"`
}

func (a *InfobipAdapter) Name() string { return Infobip }

func (a *InfobipAdapter) IsConfigured() bool {
	return a.cfg.APIKey != "" && a.cfg.BaseURL != ""
}

func (a *InfobipAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	if !a.IsConfigured() {
		return nil, notConfigured(Infobip, "api key and base url are required")
	}

	number, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	payload := infobipRequest{
		Messages: []infobipMessage{{
			Destinations: []infobipDestination{{To: msisdn(number)}},
			From:         firstNonEmpty(from, a.cfg.From),
			Text:         body,
		}},
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "App "+a.cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(strings.TrimRight(a.cfg.BaseURL, "/") + "/sms/2/text/advanced")
	if err != nil {
		return nil, transportError(Infobip, err)
	}

	var out infobipResponse
	_ = json.Unmarshal(resp.Body(), &out)

	if !resp.IsSuccess() {
		return nil, statusError(Infobip, resp, out.RequestError.ServiceException.Text)
	}
	if len(out.Messages) == 0 {
		return nil, statusError(Infobip, resp, "response without messages")
	}

	msg := out.Messages[0]
	if strings.EqualFold(msg.Status.GroupName, "REJECTED") {
		return nil, statusError(Infobip, resp, firstNonEmpty(msg.Status.Description, msg.Status.Name))
	}
	if msg.MessageID == "" {
		return nil, statusError(Infobip, resp, "response without message id")
	}

	return &domain.ProviderResult{
		MessageID:   msg.MessageID,
		RawResponse: rawJSON(resp.Body()),
	}, nil
}
