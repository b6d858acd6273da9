// Package notify delivers push notifications to user devices.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

//go:generate mockgen -source=./dispatcher.go -destination=../mocks/mock_dispatcher.go -package=mocks Dispatcher

// Message is one push notification. Data values must be strings.
type Message struct {
	Title    string
	Body     string
	Data     map[string]string
	ImageURL string
}

// SendResult summarizes a multi-device send.
type SendResult struct {
	SuccessCount int
	FailureCount int
	FailedTokens []string
}

// Dispatcher sends one message to many devices. Per-device failures are
// reported in the result, not as an error.
type Dispatcher interface {
	SendToDevices(ctx context.Context, tokens []string, msg Message) (*SendResult, error)
}

// fcmMulticastLimit is the token cap of one FCM multicast request.
const fcmMulticastLimit = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMDispatcher sends through Firebase Cloud Messaging.
type FCMDispatcher struct {
	client multicastSender
	logger *slog.Logger
}

// NewFCMDispatcher initializes a Firebase app from a service account file.
func NewFCMDispatcher(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCMDispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCMDispatcher{client: client, logger: logger}, nil
}

func (d *FCMDispatcher) SendToDevices(ctx context.Context, tokens []string, msg Message) (*SendResult, error) {
	result := &SendResult{}
	for start := 0; start < len(tokens); start += fcmMulticastLimit {
		end := min(start+fcmMulticastLimit, len(tokens))
		chunk := tokens[start:end]

		resp, err := d.client.SendEachForMulticast(ctx, multicast(chunk, msg))
		if err != nil {
			return result, fmt.Errorf("failed to send multicast: %w", err)
		}
		result.SuccessCount += resp.SuccessCount
		result.FailureCount += resp.FailureCount
		for i, r := range resp.Responses {
			if !r.Success {
				result.FailedTokens = append(result.FailedTokens, chunk[i])
				d.logger.Debug("push delivery failed", "error", r.Error)
			}
		}
	}
	return result, nil
}

func multicast(tokens []string, msg Message) *messaging.MulticastMessage {
	m := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.ImageURL,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	}
	if msg.ImageURL != "" {
		m.APNS = &messaging.APNSConfig{
			Payload:    &messaging.APNSPayload{Aps: &messaging.Aps{MutableContent: true}},
			FCMOptions: &messaging.APNSFCMOptions{ImageURL: msg.ImageURL},
		}
	}
	return m
}
