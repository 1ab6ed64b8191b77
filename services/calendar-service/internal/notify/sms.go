package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type SMSSender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(url string, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookSender) ProviderID() string {
	return "sms-webhook"
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	raw, err := json.Marshal(map[string]string{
		"to":   to,
		"body": body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %d", resp.StatusCode)
	}
	return nil
}

type NoopSender struct{}

func (NoopSender) ProviderID() string { return "sms-noop" }
func (NoopSender) Send(context.Context, string, string) error { return nil }

type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   accountSID,
			Password:   authToken,
			AccountSid: accountSID,
		}),
		from: strings.TrimSpace(from),
	}
}

func (s *TwilioSender) ProviderID() string {
	return "sms-twilio"
}

// Send runs the blocking Twilio call in the background so ctx can bound it.
func (s *TwilioSender) Send(ctx context.Context, to string, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	done := make(chan error, 1)
	go func() {
		_, err := s.client.Api.CreateMessage(params)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SMSChannel delivers reminders to the client's phone number.
type SMSChannel struct {
	Sender SMSSender
}

func (c SMSChannel) Notify(ctx context.Context, r Reminder) error {
	to := strings.TrimSpace(r.ClientPhone)
	if to == "" {
		return ErrNoRecipient
	}
	return c.Sender.Send(ctx, to, r.Short())
}
