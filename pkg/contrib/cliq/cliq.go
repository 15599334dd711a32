// Package cliq posts deployment notifications to a Zoho Cliq incoming
// webhook.
//
// Configuration:
//   - cliq_webhook: incoming webhook URL, required
//   - cliq_title: bot name shown in the channel (application name)
//   - cliq_text, cliq_success_text, cliq_failure_text, cliq_rollback_text:
//     message templates
//
// Usage:
//
//	r.Before("deploy", "cliq:notify")
//	r.After("deploy:success", "cliq:notify:success")
//	r.After("deploy:failed", "cliq:notify:failure")
package cliq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"wpdeploy/pkg/log"
	"wpdeploy/pkg/recipe"
	"wpdeploy/pkg/settings"
)

// ErrNoWebhook is returned when cliq_webhook is not configured.
var ErrNoWebhook = errors.New("missing required settings for cliq: set cliq_webhook")

// Message is the webhook payload.
type Message struct {
	Text string `json:"text"`
	Bot  Bot    `json:"bot"`
}

// Bot names the sender.
type Bot struct {
	Name string `json:"name"`
}

// Client posts messages to one webhook.
type Client struct {
	Webhook    string
	HTTPClient *http.Client
}

// NewClient reads cliq_webhook from cfg.
func NewClient(cfg *settings.Store) (*Client, error) {
	webhook := cfg.String("cliq_webhook", "")
	if webhook == "" {
		return nil, ErrNoWebhook
	}
	return &Client{
		Webhook:    webhook,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Send posts msg. A status above 204 is logged, not returned.
func (c *Client) Send(ctx context.Context, msg Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Webhook, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("cliq request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode > http.StatusNoContent {
		log.L().Warn("There was an error sending the notification to Cliq", "status", resp.StatusCode)
	}
	return nil
}

func notify(templateKey string) recipe.Func {
	return func(c *recipe.Context) error {
		client, err := NewClient(c.Config())
		if err != nil {
			c.Warning("No Cliq webhook configured")
			return err
		}
		text, err := c.Parse(c.Config().String(templateKey, ""))
		if err != nil {
			return err
		}
		title, err := c.Parse(c.Config().String("cliq_title", "Project"))
		if err != nil {
			return err
		}
		msg := Message{Text: text, Bot: Bot{Name: title}}
		if c.DryRun() {
			c.Writeln("[DRY-RUN] Would notify Cliq: %s", msg.Text)
			return nil
		}
		return client.Send(c.Ctx(), msg)
	}
}

// Register adds the cliq:notify tasks.
func Register(r *recipe.Registry) {
	r.SetFunc("cliq_title", func(c *recipe.Context) (any, error) {
		return c.Config().String("application", "Project"), nil
	})
	r.Set("cliq_text", "_{{user}}_ deploying `{{target}}` to *{{hostname}}*")
	r.Set("cliq_success_text", "Deploy to *{{target}}* successful")
	r.Set("cliq_failure_text", "Deploy to *{{target}}* failed")
	r.Set("cliq_rollback_text", "_{{user}}_ rolled back changes on *{{target}}*")

	r.Task("cliq:notify", notify("cliq_text")).Desc("Notifies Cliq").Once()
	r.Task("cliq:notify:success", notify("cliq_success_text")).Desc("Notifies Cliq about deploy finish").Once().Hidden()
	r.Task("cliq:notify:failure", notify("cliq_failure_text")).Desc("Notifies Cliq about deploy failure").Once().Hidden()
	r.Task("cliq:notify:rollback", notify("cliq_rollback_text")).Desc("Notifies Cliq about rollback").Once().Hidden()
}
