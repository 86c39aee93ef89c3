package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"papertrends/internal/config"
	"papertrends/internal/domain"
	"papertrends/internal/ports"
)

const slackDefaultBaseURL = "https://slack.com/api"

// Slack posts announcements as Block Kit messages via chat.postMessage.
type Slack struct {
	client   *http.Client
	baseURL  string
	botToken string
	channel  string
}

var _ ports.Publisher = (*Slack)(nil)

// NewSlack wires the bot token and target channel.
func NewSlack(client *http.Client, cfg config.SlackConfig) *Slack {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &Slack{
		client:   client,
		baseURL:  slackDefaultBaseURL,
		botToken: cfg.BotToken,
		channel:  cfg.Channel,
	}
}

// Name identifies the channel in publish results.
func (s *Slack) Name() string { return "slack" }

type slackBlock struct {
	Type string          `json:"type"`
	Text *slackBlockText `json:"text,omitempty"`
}

type slackBlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Publish sends one announcement section; the translated abstract rides in a
// second block when present.
func (s *Slack) Publish(ctx context.Context, a domain.Announcement) error {
	if s.botToken == "" || s.channel == "" {
		return permanentError(s.Name(), fmt.Errorf("slack publisher misconfigured"))
	}

	title := clip(a.Enrichment.Title, 200)
	body := fmt.Sprintf("[%d/%d] *%s*\n_%s_, %s\n%s",
		a.Rank, a.Total,
		title,
		statsLine(a.Candidate),
		a.Enrichment.PublishedAt.Format("02 Jan 2006"),
		clip(firstSentence(a.Enrichment), 200))

	blocks := []slackBlock{
		{Type: "section", Text: &slackBlockText{Type: "mrkdwn", Text: body}},
	}
	if a.Enrichment.Translation != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackBlockText{Type: "mrkdwn", Text: clip(a.Enrichment.Translation, 3000)},
		})
	}

	payload, err := json.Marshal(map[string]any{
		"channel": s.channel,
		"text":    title,
		"blocks":  blocks,
	})
	if err != nil {
		return permanentError(s.Name(), fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return permanentError(s.Name(), err)
	}
	req.Header.Set("Authorization", "Bearer "+s.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return transportError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(s.Name(), resp.StatusCode)
	}

	// Slack reports API-level failures inside a 200 body.
	var parsed struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return transportError(s.Name(), fmt.Errorf("decode response: %w", err))
	}
	if !parsed.OK {
		apiErr := fmt.Errorf("slack api: %s", parsed.Error)
		if parsed.Error == "rate_limited" || parsed.Error == "ratelimited" {
			return &Error{Channel: s.Name(), Retriable: true, Err: apiErr}
		}
		return permanentError(s.Name(), apiErr)
	}
	return nil
}

// firstSentence returns the leading sentence of the translated or original
// abstract for the compact section block.
func firstSentence(en domain.Enrichment) string {
	text := en.Summary
	if en.Translation != "" {
		text = en.Translation
	}
	for i, r := range text {
		if r == '.' || r == '。' {
			return text[:i+len(string(r))]
		}
	}
	return text
}
