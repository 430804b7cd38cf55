package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, to, from string, msg *Message) error
}

// SendGridClient delivers mail through the SendGrid v3 API.
type SendGridClient struct {
	http *resty.Client
}

// NewSendGridClient builds a client for the API at baseURL authenticated with apiKey.
func NewSendGridClient(baseURL, apiKey string) *SendGridClient {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &SendGridClient{http: c}
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type apiError struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// Send posts msg to the mail send endpoint. SendGrid answers 202 on success.
func (c *SendGridClient) Send(ctx context.Context, to, from string, msg *Message) error {
	body := mailRequest{
		Personalizations: []personalization{{To: []address{{Email: to}}}},
		From:             address{Email: from},
		Subject:          msg.Subject,
		Content:          []content{{Type: "text/html", Value: msg.HTML}},
	}

	apiErr := new(apiError)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(apiErr).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		var msgs []string
		for _, e := range apiErr.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("sendgrid error: code=%d, message=%s", resp.StatusCode(), strings.Join(msgs, "; "))
	}
	return nil
}
