package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailMessage is the outbound email contract: sender, recipient, subject
// and an HTML body.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// EmailSender delivers a single email.  Implementations never panic and
// never return a Go error; every failure mode lands in SendResult.Err.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) SendResult
}

// ResendClient sends mail through a Resend-style JSON API.  The request
// is bounded by the HTTP client's timeout so a slow provider can never
// hold up the caller indefinitely.
type ResendClient struct {
	APIKey string
	APIURL string
	HTTP   *http.Client
}

// NewResendClient builds a client with a 10s request timeout.
func NewResendClient(apiKey, apiURL string) *ResendClient {
	return &ResendClient{
		APIKey: apiKey,
		APIURL: apiURL,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// Send posts the message and maps the response into a tagged result.  On
// a non-2xx status the provider's body is preserved verbatim in Detail.
func (c *ResendClient) Send(ctx context.Context, msg EmailMessage) SendResult {
	payload, err := json.Marshal(resendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return SendResult{Err: &ChannelError{Kind: KindTransport, Message: "encode email request: " + err.Error()}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(payload))
	if err != nil {
		return SendResult{Err: &ChannelError{Kind: KindTransport, Message: "build email request: " + err.Error()}}
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return SendResult{Err: &ChannelError{Kind: KindTransport, Message: "email request failed: " + err.Error()}}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{Err: &ChannelError{
			Kind:    KindProvider,
			Message: fmt.Sprintf("email provider returned %d", resp.StatusCode),
			Detail:  string(body),
		}}
	}

	var out resendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		// Accepted by the provider; a malformed success body is not a failure.
		return SendResult{}
	}
	return SendResult{MessageID: out.ID}
}
