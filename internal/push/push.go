// Package push delivers device notifications.
package push

import (
	"context"
	"errors"
	"log/slog"
)

// ErrInvalidDeviceToken means the provider rejected the token as unregistered.
var ErrInvalidDeviceToken = errors.New("push: invalid device token")

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type Gateway interface {
	Send(ctx context.Context, deviceToken string, msg Message) error
}

// LogGateway writes notifications to the log instead of delivering them.
type LogGateway struct{}

func (LogGateway) Send(ctx context.Context, deviceToken string, msg Message) error {
	slog.InfoContext(ctx, "push notification",
		"device", redact(deviceToken),
		"title", msg.Title,
		"body", msg.Body,
	)
	return nil
}

func redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
