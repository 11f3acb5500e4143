package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	colorDown = "#d93025"
	colorUp   = "#2eb67d"
)

// Slack posts channel alerts to an incoming webhook as one colored
// attachment per alert.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil for an empty webhook; leave it out of Multi then.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackAttachment struct {
	Fallback string `json:"fallback"`
	Color    string `json:"color"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Footer   string `json:"footer"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackMessageFor(a Alert) slackMessage {
	color := colorDown
	if a.Up {
		color = colorUp
	}
	summary := fmt.Sprintf("%s: %s", a.Title, a.ChannelName)
	return slackMessage{
		Text: summary,
		Attachments: []slackAttachment{{
			Fallback: summary,
			Color:    color,
			Title:    a.Title,
			Text:     a.Text,
			Footer:   "channelcheck · channel " + a.ChannelID,
		}},
	}
}

func (s *Slack) Send(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack: no webhook")
	}
	body, err := json.Marshal(slackMessageFor(a))
	if err != nil {
		return fmt.Errorf("slack encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack alert for channel %s: %w", a.ChannelID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack alert for channel %s: HTTP %d: %s", a.ChannelID, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
