// Package mspace wraps the Mspace REST API (SMS, USSD, voice, airtime).
//
// Every operation POSTs a JSON body carrying the account credentials plus
// operation fields. The provider signals success through a numeric status
// code embedded in the response body, not through the HTTP status: 1701
// (and 1702 for SMS sends) means accepted, anything else is a failure.
package mspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// StatusSuccess is the provider's generic success code.
	StatusSuccess = 1701
	// StatusSMSAccepted is the second success code returned for SMS sends.
	StatusSMSAccepted = 1702
)

type Client struct {
	http    *http.Client
	baseURL string
	userID  string
	apiKey  string
	logger  *zap.Logger
}

func NewClient(baseURL, userID, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		userID:  userID,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// envelope is the provider's uniform response shape.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SendOutcome is the normalized result of one paid dispatch attempt.
// Transport-level failures (timeout, non-2xx, malformed body) are reported
// as a failed outcome, never as an error: the caller owns retry policy.
type SendOutcome struct {
	Success    bool
	ProviderID string
	CostHint   float64
	StatusCode int
	Message    string
}

type SMSMessage struct {
	Recipient    string
	Message      string
	SenderID     string
	ScheduleTime string
}

type USSDMessage struct {
	Recipient   string
	Message     string
	ServiceCode string
}

type VoiceCall struct {
	Recipient    string
	VoiceFileURL string
	TextToSpeech string
}

type AirtimeTransfer struct {
	Recipient string
	Amount    float64
	Network   string
	Reference string
}

type Balance struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

type DeliveryReport struct {
	MessageID    string `json:"message_id"`
	Status       string `json:"status"`
	DeliveredAt  string `json:"delivered_at,omitempty"`
	FailedReason string `json:"failed_reason,omitempty"`
}

// post issues one provider call and decodes the envelope. The credentials
// are merged into the caller's body fields.
func (c *Client) post(ctx context.Context, path string, fields map[string]any) (*envelope, error) {
	body := map[string]any{
		"userid":   c.userID,
		"password": c.apiKey,
	}
	for k, v := range fields {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &env, nil
}

// outcome maps an envelope (or transport error) onto a SendOutcome. The
// providerID is extracted from the named data field when the code is a
// success code.
func (c *Client) outcome(env *envelope, err error, idField string, successCodes ...int) SendOutcome {
	if err != nil {
		return SendOutcome{Success: false, Message: err.Error()}
	}

	for _, code := range successCodes {
		if env.Status == code {
			out := SendOutcome{Success: true, StatusCode: env.Status, Message: env.Message}
			if len(env.Data) > 0 {
				var data map[string]any
				if jsonErr := json.Unmarshal(env.Data, &data); jsonErr == nil {
					if id, ok := data[idField].(string); ok {
						out.ProviderID = id
					}
					if cost, ok := data["cost"].(float64); ok {
						out.CostHint = cost
					}
				}
			}
			return out
		}
	}

	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("provider status %d", env.Status)
	}
	return SendOutcome{Success: false, StatusCode: env.Status, Message: msg}
}

func (c *Client) SendSMS(ctx context.Context, msg SMSMessage) SendOutcome {
	env, err := c.post(ctx, "/sms/", map[string]any{
		"mobile":         msg.Recipient,
		"msg":            msg.Message,
		"senderid":       msg.SenderID,
		"msgtype":        0,
		"duplicatecheck": 1,
		"scheduletime":   msg.ScheduleTime,
	})
	return c.outcome(env, err, "msgid", StatusSuccess, StatusSMSAccepted)
}

func (c *Client) SendUSSD(ctx context.Context, msg USSDMessage) SendOutcome {
	env, err := c.post(ctx, "/ussd/", map[string]any{
		"mobile":      msg.Recipient,
		"msg":         msg.Message,
		"servicecode": msg.ServiceCode,
	})
	return c.outcome(env, err, "sessionid", StatusSuccess)
}

func (c *Client) MakeCall(ctx context.Context, call VoiceCall) SendOutcome {
	env, err := c.post(ctx, "/voice/", map[string]any{
		"mobile":      call.Recipient,
		"voice_file":  call.VoiceFileURL,
		"tts_message": call.TextToSpeech,
	})
	return c.outcome(env, err, "callid", StatusSuccess)
}

func (c *Client) SendAirtime(ctx context.Context, tx AirtimeTransfer) SendOutcome {
	env, err := c.post(ctx, "/airtime/", map[string]any{
		"mobile":    tx.Recipient,
		"amount":    tx.Amount,
		"network":   tx.Network,
		"reference": tx.Reference,
	})
	return c.outcome(env, err, "transactionid", StatusSuccess)
}

func (c *Client) CheckBalance(ctx context.Context) (*Balance, error) {
	env, err := c.post(ctx, "/balance/", nil)
	if err != nil {
		return nil, err
	}
	if env.Status != StatusSuccess {
		if env.Message != "" {
			return nil, fmt.Errorf("balance check failed: %s", env.Message)
		}
		return nil, fmt.Errorf("balance check failed: provider status %d", env.Status)
	}

	bal := &Balance{Currency: "KES", Balance: "0.00"}
	if len(env.Data) > 0 {
		var data struct {
			Balance string `json:"balance"`
		}
		if err := json.Unmarshal(env.Data, &data); err == nil && data.Balance != "" {
			bal.Balance = data.Balance
		}
	}
	return bal, nil
}

// FetchDeliveryReport queries the report endpoint for one provider message
// id. Provider statuses other than success leave the report empty-handed.
func (c *Client) FetchDeliveryReport(ctx context.Context, messageID string) (*DeliveryReport, error) {
	env, err := c.post(ctx, "/reports/", map[string]any{"msgid": messageID})
	if err != nil {
		return nil, err
	}
	if env.Status != StatusSuccess {
		return nil, fmt.Errorf("report fetch failed for %s: provider status %d", messageID, env.Status)
	}

	report := &DeliveryReport{MessageID: messageID, Status: "pending"}
	if len(env.Data) > 0 {
		var data struct {
			Status       string `json:"status"`
			DeliveredAt  string `json:"delivered_at"`
			FailedReason string `json:"failed_reason"`
		}
		if err := json.Unmarshal(env.Data, &data); err == nil {
			if data.Status != "" {
				report.Status = data.Status
			}
			report.DeliveredAt = data.DeliveredAt
			report.FailedReason = data.FailedReason
		}
	}
	return report, nil
}

// listing fetches a read-only provider listing and returns the named array
// from the response data untouched.
func (c *Client) listing(ctx context.Context, path, field string) (json.RawMessage, error) {
	env, err := c.post(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	if len(env.Data) > 0 {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(env.Data, &data); err == nil {
			if raw, ok := data[field]; ok {
				return raw, nil
			}
		}
	}
	return json.RawMessage("[]"), nil
}

func (c *Client) Sessions(ctx context.Context) (json.RawMessage, error) {
	return c.listing(ctx, "/ussd/sessions/", "sessions")
}

func (c *Client) CallHistory(ctx context.Context) (json.RawMessage, error) {
	return c.listing(ctx, "/voice/history/", "calls")
}

func (c *Client) AirtimeHistory(ctx context.Context) (json.RawMessage, error) {
	return c.listing(ctx, "/airtime/history/", "transactions")
}
