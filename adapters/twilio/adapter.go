package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	twiliosdk "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	"github.com/MuhammadAslam635/referable-dev-sub000/transport"
)

const (
	defaultCountryCode = "US"
	defaultSearchLimit = 20
)

// messagingAPI is the slice of the Twilio REST surface the relay uses.
// The rest client's Api service satisfies it; tests supply a fake.
type messagingAPI interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
	ListAvailablePhoneNumberLocal(countryCode string, params *twilioapi.ListAvailablePhoneNumberLocalParams) ([]twilioapi.ApiV2010AvailablePhoneNumberLocal, error)
	CreateIncomingPhoneNumber(params *twilioapi.CreateIncomingPhoneNumberParams) (*twilioapi.ApiV2010IncomingPhoneNumber, error)
}

// Config carries the account credentials and provisioning defaults. When an
// API key pair is present it is used in place of the auth token, with the
// account sid identifying the account the key acts on.
type Config struct {
	AccountSID        string
	AuthToken         string
	APIKeySID         string
	APIKeySecret      string
	CountryCode       string
	StatusCallbackURL string
	SmsWebhookURL     string
}

// Transport sends relay messages through the Twilio REST API and provisions
// transport numbers for onboarding. Numbers are canonical (+<digits>) by the
// time they reach this adapter; no normalization happens here.
type Transport struct {
	api messagingAPI
	cfg Config
}

func NewTransport(api messagingAPI, cfg Config) *Transport {
	return &Transport{api: api, cfg: cfg}
}

// NewTransportFromConfig builds the REST client from credentials and wraps
// its Api service.
func NewTransportFromConfig(cfg Config) (*Transport, error) {
	accountSID := strings.TrimSpace(cfg.AccountSID)
	if accountSID == "" {
		return nil, configError("twilio: account sid is required")
	}
	username := strings.TrimSpace(cfg.APIKeySID)
	password := strings.TrimSpace(cfg.APIKeySecret)
	if username == "" || password == "" {
		username = accountSID
		password = strings.TrimSpace(cfg.AuthToken)
	}
	if password == "" {
		return nil, configError("twilio: auth token or api key pair is required")
	}

	client := twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{
		Username:   username,
		Password:   password,
		AccountSid: accountSID,
	})
	return NewTransport(client.Api, cfg), nil
}

// Factory adapts the credential config map used by transport registry
// wiring. Recognized keys: account_sid, auth_token, api_key_sid,
// api_key_secret, country_code, status_callback_url, sms_webhook_url.
func Factory() transport.TransportFactory {
	return func(config map[string]any) (core.MessageTransport, error) {
		return NewTransportFromConfig(Config{
			AccountSID:        configString(config, "account_sid"),
			AuthToken:         configString(config, "auth_token"),
			APIKeySID:         configString(config, "api_key_sid"),
			APIKeySecret:      configString(config, "api_key_secret"),
			CountryCode:       configString(config, "country_code"),
			StatusCallbackURL: configString(config, "status_callback_url"),
			SmsWebhookURL:     configString(config, "sms_webhook_url"),
		})
	}
}

func (t *Transport) Kind() string {
	return transport.KindTwilio
}

// Send returns *core.SendError on provider failure so the sender can feed
// the response status into the throttle policy.
func (t *Transport) Send(_ context.Context, req core.SendRequest) (core.SendResult, error) {
	if t == nil || t.api == nil {
		return core.SendResult{}, &core.SendError{
			StatusCode: http.StatusInternalServerError,
			Err:        fmt.Errorf("twilio: transport is not configured"),
		}
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.From) == "" {
		return core.SendResult{}, &core.SendError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("twilio: send requires both to and from numbers"),
		}
	}
	if strings.TrimSpace(req.Body) == "" {
		return core.SendResult{}, &core.SendError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("twilio: send requires a message body"),
		}
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetBody(req.Body)
	if callback := strings.TrimSpace(t.cfg.StatusCallbackURL); callback != "" {
		params.SetStatusCallback(callback)
	}

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return core.SendResult{}, sendError(err)
	}
	if resp == nil || stringDeref(resp.Sid) == "" {
		return core.SendResult{}, &core.SendError{
			StatusCode: http.StatusBadGateway,
			Err:        fmt.Errorf("twilio: create message response is missing a sid"),
		}
	}

	result := core.SendResult{
		ProviderMessageID: stringDeref(resp.Sid),
		Status:            stringDeref(resp.Status),
		Metadata: map[string]any{
			"transport_kind": transport.KindTwilio,
			"status_code":    http.StatusCreated,
		},
	}
	if segments := stringDeref(resp.NumSegments); segments != "" {
		result.Metadata["num_segments"] = segments
	}
	return result, nil
}

// ListNumbers searches the purchasable local inventory. Only SMS-capable
// numbers are returned; the relay never provisions voice-only numbers.
func (t *Transport) ListNumbers(_ context.Context, filter core.NumberFilter) ([]core.TransportNumber, error) {
	if t == nil || t.api == nil {
		return nil, restError("list numbers", fmt.Errorf("twilio: transport is not configured"))
	}

	params := &twilioapi.ListAvailablePhoneNumberLocalParams{}
	params.SetSmsEnabled(true)
	if areaCode := strings.TrimSpace(filter.AreaCode); areaCode != "" {
		numeric, err := strconv.Atoi(areaCode)
		if err != nil {
			return nil, inputError("twilio: area code must be numeric")
		}
		params.SetAreaCode(numeric)
	}
	if contains := strings.TrimSpace(filter.Contains); contains != "" {
		params.SetContains(contains)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	params.SetPageSize(limit)

	available, err := t.api.ListAvailablePhoneNumberLocal(t.countryCode(), params)
	if err != nil {
		return nil, restError("list numbers", err)
	}

	result := make([]core.TransportNumber, 0, len(available))
	for _, candidate := range available {
		number := stringDeref(candidate.PhoneNumber)
		if number == "" {
			continue
		}
		result = append(result, core.TransportNumber{
			Number:       number,
			FriendlyName: stringDeref(candidate.FriendlyName),
			Capabilities: []string{"sms"},
			Metadata:     map[string]any{"country_code": t.countryCode()},
		})
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// PurchaseNumber provisions a number onto the account. With no explicit
// number the area code drives an availability search and the first hit is
// bought. Purchased numbers get their SMS webhook pointed at the relay when
// SmsWebhookURL is configured.
func (t *Transport) PurchaseNumber(ctx context.Context, req core.PurchaseNumberRequest) (core.TransportNumber, error) {
	if t == nil || t.api == nil {
		return core.TransportNumber{}, restError("purchase number", fmt.Errorf("twilio: transport is not configured"))
	}

	number := strings.TrimSpace(req.Number)
	if number == "" {
		areaCode := strings.TrimSpace(req.AreaCode)
		if areaCode == "" {
			return core.TransportNumber{}, inputError("twilio: purchase requires a number or an area code")
		}
		candidates, err := t.ListNumbers(ctx, core.NumberFilter{AreaCode: areaCode, Limit: 1})
		if err != nil {
			return core.TransportNumber{}, err
		}
		if len(candidates) == 0 {
			return core.TransportNumber{}, inputError(
				fmt.Sprintf("twilio: no sms-capable numbers available in area code %s", areaCode),
			)
		}
		number = candidates[0].Number
	}

	params := &twilioapi.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(number)
	if friendly := strings.TrimSpace(req.FriendlyName); friendly != "" {
		params.SetFriendlyName(friendly)
	}
	if webhook := strings.TrimSpace(t.cfg.SmsWebhookURL); webhook != "" {
		params.SetSmsUrl(webhook)
		params.SetSmsMethod(http.MethodPost)
	}

	resp, err := t.api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return core.TransportNumber{}, restError("purchase number", err)
	}
	if resp == nil {
		return core.TransportNumber{}, restError("purchase number", fmt.Errorf("twilio: empty provisioning response"))
	}

	purchased := core.TransportNumber{
		Number:       stringDeref(resp.PhoneNumber),
		ProviderSID:  stringDeref(resp.Sid),
		FriendlyName: stringDeref(resp.FriendlyName),
		Capabilities: []string{"sms"},
		Metadata:     cloneMetadata(req.Metadata),
	}
	if purchased.Number == "" {
		purchased.Number = number
	}
	if purchased.FriendlyName == "" {
		purchased.FriendlyName = strings.TrimSpace(req.FriendlyName)
	}
	if purchased.FriendlyName == "" {
		purchased.FriendlyName = purchased.Number
	}
	purchased.Metadata["transport_kind"] = transport.KindTwilio
	return purchased, nil
}

func (t *Transport) countryCode() string {
	if t != nil {
		if code := strings.TrimSpace(t.cfg.CountryCode); code != "" {
			return strings.ToUpper(code)
		}
	}
	return defaultCountryCode
}

// sendError preserves the provider response status for the throttle policy.
// Retry-After stays unset; the adaptive policy backs off on its own when a
// 429 arrives without one.
func sendError(err error) error {
	var rest *twilioclient.TwilioRestError
	if errors.As(err, &rest) {
		return &core.SendError{StatusCode: rest.Status, Err: err}
	}
	return &core.SendError{StatusCode: http.StatusBadGateway, Err: err}
}

// restError maps provisioning and search failures onto the relay envelope:
// 429 is rate limited, other 4xx is bad input, everything else is a failed
// provider operation.
func restError(op string, err error) error {
	var rest *twilioclient.TwilioRestError
	if !errors.As(err, &rest) {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "twilio: "+op+" failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.RelayErrorSendFailed)
	}
	switch {
	case rest.Status == http.StatusTooManyRequests:
		return goerrors.Wrap(err, goerrors.CategoryRateLimit, "twilio: "+op+" throttled").
			WithCode(rest.Status).
			WithTextCode(core.RelayErrorRateLimited)
	case rest.Status >= http.StatusBadRequest && rest.Status < http.StatusInternalServerError:
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "twilio: "+op+" rejected").
			WithCode(rest.Status).
			WithTextCode(core.RelayErrorBadInput)
	default:
		return goerrors.Wrap(err, goerrors.CategoryExternal, "twilio: "+op+" failed").
			WithCode(rest.Status).
			WithTextCode(core.RelayErrorSendFailed)
	}
}

func inputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.RelayErrorBadInput)
}

func configError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.RelayErrorInternal)
}

func configString(config map[string]any, key string) string {
	if len(config) == 0 {
		return ""
	}
	raw, ok := config[key]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

func stringDeref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func cloneMetadata(input map[string]any) map[string]any {
	output := make(map[string]any, len(input)+1)
	for key, value := range input {
		output[key] = value
	}
	return output
}

var _ core.MessageTransport = (*Transport)(nil)
