package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// ErrNoRecipient is returned when a notice has nobody to go to.
var ErrNoRecipient = errors.New("notice has no recipient")

// ResendSender delivers account notices, such as the lockout notice the loyalty
// API sends when a principal hits the failed-login limit, through Resend.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender returns a sender that mails notices from the given address.
// PRE: apiKey is a Resend API key; from is a verified sender address
// POST: Returns a ready sender; no request is made until Send
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

// Send hands one notice to Resend. Recipient addresses are not logged.
// PRE: req has at least one recipient
// POST: The notice is accepted by Resend, or an error is returned and nothing was sent
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	params, err := resendParams(req, s.from)
	if err != nil {
		return SendResult{}, err
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("notice_send_failed", "provider", "resend", "category", req.Category, "recipients", len(req.To), "error", err)
		return SendResult{}, fmt.Errorf("resend %s notice: %w", req.Category, err)
	}
	slog.Info("notice_sent", "provider", "resend", "category", req.Category, "message_id", sent.Id)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}

// resendParams maps a notice onto a Resend request. The category becomes a
// Resend tag so lockout mail can be filtered in the provider's dashboard.
func resendParams(req SendRequest, defaultFrom string) (*resend.SendEmailRequest, error) {
	if len(req.To) == 0 {
		return nil, ErrNoRecipient
	}
	from := req.From
	if from == "" {
		from = defaultFrom
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		ReplyTo: req.ReplyTo,
	}
	if req.Category != "" {
		params.Tags = []resend.Tag{{Name: "category", Value: req.Category}}
	}
	return params, nil
}
