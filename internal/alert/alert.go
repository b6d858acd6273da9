// Package alert reports operational exceptions to humans.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sink receives exceptions from background work. Implementations never
// return errors to the caller.
type Sink interface {
	NotifyException(ctx context.Context, err error, fields map[string]any)
}

// LogSink writes exceptions to the structured log only.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyException(_ context.Context, err error, fields map[string]any) {
	args := make([]any, 0, 2+2*len(fields))
	args = append(args, "error", err)
	for _, k := range sortedKeys(fields) {
		args = append(args, k, fields[k])
	}
	s.logger.Error("exception triggered", args...)
}

// SlackWebhook posts exceptions to a Slack incoming webhook and logs them.
type SlackWebhook struct {
	client *resty.Client
	url    string
	logger *slog.Logger
}

func NewSlackWebhook(url string, logger *slog.Logger) *SlackWebhook {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(5*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &SlackWebhook{client: client, url: url, logger: logger}
}

type slackMessage struct {
	Text string `json:"text"`
}

func (s *SlackWebhook) NotifyException(ctx context.Context, err error, fields map[string]any) {
	NewLogSink(s.logger).NotifyException(ctx, err, fields)

	resp, postErr := s.client.R().
		SetContext(ctx).
		SetBody(slackMessage{Text: FormatException(err, fields)}).
		Post(s.url)
	if postErr == nil && resp.IsError() {
		postErr = fmt.Errorf("slack webhook returned %s", resp.Status())
	}
	if postErr != nil {
		s.logger.Warn("failed to deliver exception to slack", "error", postErr)
	}
}

// FormatException renders an exception as Slack mrkdwn.
func FormatException(err error, fields map[string]any) string {
	var b strings.Builder
	b.WriteString("*Exception triggered*\n")
	fmt.Fprintf(&b, "*Status:* %s\n", status(err))
	fmt.Fprintf(&b, "*Message:* %v\n", err)
	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(&b, "*%s:* %v\n", k, fields[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func status(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
