package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSMessage is the outbound SMS contract: an E.164-ish destination and a
// plain-text body.
type SMSMessage struct {
	To   string
	Body string
}

// SMSSender delivers a single SMS.  Same contract as EmailSender: all
// failures are data, never panics or returned Go errors.
type SMSSender interface {
	Send(ctx context.Context, msg SMSMessage) SendResult
}

// TwilioClient sends messages through a Twilio-style REST API using
// account-SID basic auth and form-encoded bodies.
type TwilioClient struct {
	AccountSID string
	AuthToken  string
	From       string
	APIBase    string
	HTTP       *http.Client
}

// NewTwilioClient builds a client with a 10s request timeout.
func NewTwilioClient(accountSID, authToken, from, apiBase string) *TwilioClient {
	return &TwilioClient{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		APIBase:    apiBase,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the message.  HTTP-level failures keep the provider response
// body in Detail for operator debugging.
func (c *TwilioClient) Send(ctx context.Context, msg SMSMessage) SendResult {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.APIBase, c.AccountSID)
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", c.From)
	form.Set("Body", msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{Err: &ChannelError{Kind: KindTransport, Message: "build sms request: " + err.Error()}}
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return SendResult{Err: &ChannelError{Kind: KindTransport, Message: "sms request failed: " + err.Error()}}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{Err: &ChannelError{
			Kind:    KindProvider,
			Message: fmt.Sprintf("sms provider returned %d", resp.StatusCode),
			Detail:  string(body),
		}}
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return SendResult{}
	}
	return SendResult{MessageID: out.SID}
}

// NormalizePhone prepares a stored phone number for the SMS provider.
// Numbers already carrying a leading "+" are passed through unchanged.
// Otherwise formatting characters are stripped; a bare 10-digit number is
// assumed domestic and given the +1 country prefix, and an 11-digit number
// starting with 1 gets just the "+".
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "+") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return "+" + digits
	}
}
