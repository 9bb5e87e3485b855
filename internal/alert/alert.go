// Package alert delivers operator notifications: low signer balance and
// settlement mismatches.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/slack-go/slack"
)

type Alerter interface {
	Alert(ctx context.Context, title, text string) error
}

// Slack posts alerts to an incoming webhook.
type Slack struct {
	webhookURL string
	username   string
	httpClient *http.Client
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		username:   "vaultcrack",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Alert(ctx context.Context, title, text string) error {
	msg := &slack.WebhookMessage{
		Username: s.username,
		Attachments: []slack.Attachment{{
			Color:  "danger",
			Title:  title,
			Text:   text,
			Footer: "vaultcrack",
		}},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.httpClient, msg); err != nil {
		return fmt.Errorf("slack alert: %w", err)
	}
	return nil
}

// Sentry records alerts as messages on the current hub.
type Sentry struct{}

func (Sentry) Alert(_ context.Context, title, text string) error {
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("alert", title)
		scope.SetLevel(sentry.LevelError)
		hub.CaptureMessage(title + ": " + text)
	})
	return nil
}

// Log writes alerts to the service log. It is always part of the chain so
// alerts remain visible when no external channel is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Alert(_ context.Context, title, text string) error {
	l.Logger.Error("alert: "+title, "text", text)
	return nil
}

// Multi fans an alert out to every alerter and joins their errors.
type Multi []Alerter

func (m Multi) Alert(ctx context.Context, title, text string) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, title, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the alert chain from configuration.
func New(log *slog.Logger, slackWebhookURL string, sentryEnabled bool) Multi {
	chain := Multi{Log{Logger: log}}
	if slackWebhookURL != "" {
		chain = append(chain, NewSlack(slackWebhookURL))
	}
	if sentryEnabled {
		chain = append(chain, Sentry{})
	}
	return chain
}
