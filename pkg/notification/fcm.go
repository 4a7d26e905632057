// Package notification delivers push notifications through Firebase Cloud Messaging.
package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCM's multicast limit
const maxTokensPerBatch = 500

// Push is a notification addressed to a set of device tokens
type Push struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// Pusher sends push notifications through FCM
type Pusher struct {
	client *messaging.Client
	log    *zap.Logger
}

// NewPusher initializes FCM from a service-account file. It returns nil, nil
// when no credentials are configured so push stays optional.
func NewPusher(ctx context.Context, credentialsFile string, log *zap.Logger) (*Pusher, error) {
	if credentialsFile == "" {
		log.Warn("firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	log.Info("firebase FCM initialized")
	return &Pusher{client: client, log: log}, nil
}

// Send delivers p and returns the tokens FCM reports as unregistered so the
// caller can prune them.
func (s *Pusher) Send(ctx context.Context, p Push) ([]string, error) {
	if s == nil || s.client == nil || len(p.Tokens) == 0 {
		return nil, nil
	}

	var stale []string
	for start := 0; start < len(p.Tokens); start += maxTokensPerBatch {
		end := start + maxTokensPerBatch
		if end > len(p.Tokens) {
			end = len(p.Tokens)
		}
		tokens := p.Tokens[start:end]

		br, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: tokens,
			Notification: &messaging.Notification{
				Title: p.Title,
				Body:  p.Body,
			},
			Data: p.Data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{Sound: "default"},
				},
			},
		})
		if err != nil {
			return stale, fmt.Errorf("send multicast: %w", err)
		}

		for idx, resp := range br.Responses {
			if resp.Success {
				continue
			}
			if messaging.IsUnregistered(resp.Error) {
				stale = append(stale, tokens[idx])
				continue
			}
			s.log.Warn("fcm delivery failed", zap.Error(resp.Error))
		}
	}
	return stale, nil
}
