package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Message is a rendered email ready for a provider.
type Message struct {
	Type    Type   `json:"type"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Name    string `json:"name,omitempty"`
	Subject string `json:"subject"`
	URL     string `json:"url,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func NewMessage(job Job) Message {
	return Message{
		Type:    job.Type,
		To:      job.Payload.To,
		Name:    job.Payload.Name,
		Subject: job.Type.Subject(job.Payload),
		URL:     job.Payload.URL,
	}
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email",
		"type", msg.Type,
		"to", msg.To,
		"subject", msg.Subject,
		"url", msg.URL)
	return nil
}

// HTTPSender posts messages as JSON to an email provider API.
type HTTPSender struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

type HTTPSenderConfig struct {
	URL         string
	APIKey      string
	FromAddress string
	Timeout     time.Duration
}

func NewHTTPSender(cfg HTTPSenderConfig) *HTTPSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		from:   cfg.FromAddress,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	msg.From = s.from
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	return nil
}
