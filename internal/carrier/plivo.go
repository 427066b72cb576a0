package carrier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const plivoDefaultBaseURL = "https://api.plivo.com"

type PlivoAdapter struct {
	cfg  environments.PlivoConfig
	http *resty.Client
}

func NewPlivo(cfg environments.PlivoConfig, opts HTTPOptions) *PlivoAdapter {
	return &PlivoAdapter{cfg: cfg, http: newRestClient(opts)}
}

type plivoRequest struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Text string `json:"text"`
}

type plivoResponse struct {
	APIID       string   `json:"api_id"`
	Message     string   `json:"message"`
	MessageUUID []string `json:"message_uuid"`
	Error       string   `json:"error"`
}

func (a *PlivoAdapter) Name() string { return Plivo }

func (a *PlivoAdapter) IsConfigured() bool {
	return a.cfg.AuthID != "" && a.cfg.AuthToken != "" && a.cfg.From != ""
}

func (a *PlivoAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	if !a.IsConfigured() {
		return nil, notConfigured(Plivo, "auth id, auth token and sender are required")
	}

	number, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(firstNonEmpty(a.cfg.BaseURL, plivoDefaultBaseURL), "/")
	endpoint := baseURL + "/v1/Account/" + a.cfg.AuthID + "/Message/"

	resp, err := a.http.R().
		SetContext(ctx).
		SetBasicAuth(a.cfg.AuthID, a.cfg.AuthToken).
		SetHeader("Content-Type", "application/json").
		SetBody(plivoRequest{
			Src:  firstNonEmpty(from, a.cfg.From),
			Dst:  msisdn(number),
			Text: body,
		}).
		Post(endpoint)
	if err != nil {
		return nil, transportError(Plivo, err)
	}

	var out plivoResponse
	_ = json.Unmarshal(resp.Body(), &out)

	if !resp.IsSuccess() {
		return nil, statusError(Plivo, resp, out.Error)
	}
	if len(out.MessageUUID) == 0 || out.MessageUUID[0] == "" {
		return nil, statusError(Plivo, resp, firstNonEmpty(out.Error, "response without message uuid"))
	}

	return &domain.ProviderResult{
		MessageID:   out.MessageUUID[0],
		RawResponse: rawJSON(resp.Body()),
	}, nil
}
