package email

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const resendTimeout = 10 * time.Second

type ResendProvider struct {
	client *resend.Client
}

func NewResend(apiKey string, httpClient *http.Client) *ResendProvider {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   resendTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &ResendProvider{client: resend.NewCustomClient(httpClient, apiKey)}
}

func (p *ResendProvider) Send(ctx context.Context, msg Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}

	_, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
