package carrier

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

type TwilioAdapter struct {
	cfg  environments.TwilioConfig
	http *resty.Client
}

func NewTwilio(cfg environments.TwilioConfig, opts HTTPOptions) *TwilioAdapter {
	return &TwilioAdapter{cfg: cfg, http: newRestClient(opts)}
}

type twilioResponse struct {
	Sid     string  `json:"sid"`
	Status  string  `json:"status"`
	Price   *string `json:"price"`
	Code    int     `json:"code"`
	Message string  `json:"message"`
}

func (a *TwilioAdapter) Name() string { return Twilio }

func (a *TwilioAdapter) IsConfigured() bool {
	return a.cfg.AccountSID != "" && a.cfg.AuthToken != "" &&
		(a.cfg.FromNumber != "" || a.cfg.MessagingServiceSID != "")
}

func (a *TwilioAdapter) Send(ctx context.Context, to, body, from string) (*domain.ProviderResult, error) {
	if !a.IsConfigured() {
		return nil, notConfigured(Twilio, "account sid, auth token and a sender are required")
	}

	number, err := NormalizePhone(to)
	if err != nil {
		return nil, err
	}

	form := map[string]string{
		"To":   number,
		"Body": body,
	}
	switch {
	case from != "":
		form["From"] = from
	case a.cfg.MessagingServiceSID != "":
		form["MessagingServiceSid"] = a.cfg.MessagingServiceSID
	default:
		form["From"] = a.cfg.FromNumber
	}

	baseURL := strings.TrimRight(firstNonEmpty(a.cfg.BaseURL, twilioDefaultBaseURL), "/")
	endpoint := baseURL + "/2010-04-01/Accounts/" + a.cfg.AccountSID + "/Messages.json"

	resp, err := a.http.R().
		SetContext(ctx).
		SetBasicAuth(a.cfg.AccountSID, a.cfg.AuthToken).
		SetFormData(form).
		Post(endpoint)
	if err != nil {
		return nil, transportError(Twilio, err)
	}

	var out twilioResponse
	_ = json.Unmarshal(resp.Body(), &out)

	// Twilio answers 201 Created; any 2xx is accepted.
	if !resp.IsSuccess() {
		return nil, statusError(Twilio, resp, out.Message)
	}
	if out.Sid == "" {
		return nil, statusError(Twilio, resp, "response without message sid")
	}

	result := &domain.ProviderResult{
		MessageID:   out.Sid,
		RawResponse: rawJSON(resp.Body()),
	}
	if out.Price != nil {
		if price, err := strconv.ParseFloat(*out.Price, 64); err == nil {
			cost := math.Abs(price)
			result.Cost = &cost
		}
	}

	return result, nil
}
