package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go-social-feed/internal/event"
	"go-social-feed/internal/push"
)

const notificationTimeout = 10 * time.Second

// NotificationService turns feed events into push notifications for the post
// author. Delivery is best effort: failures are logged and dropped.
type NotificationService struct {
	users   UserStore
	gateway push.Gateway
	bus     event.Bus
}

func NewNotificationService(users UserStore, gateway push.Gateway, bus event.Bus) *NotificationService {
	return &NotificationService{users: users, gateway: gateway, bus: bus}
}

// Run consumes events until ctx is cancelled or the bus closes the channel.
func (s *NotificationService) Run(ctx context.Context) {
	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.Handle(ctx, e)
		}
	}
}

func (s *NotificationService) Handle(ctx context.Context, e event.Event) {
	var (
		recipientID string
		msg         push.Message
	)

	switch p := e.Payload.(type) {
	case event.PostLiked:
		recipientID = p.PostAuthorID
		msg = push.Message{
			Title: "New Like",
			Body:  p.LikerUsername + " liked your post",
			Data:  map[string]string{"type": string(e.Type), "postId": p.PostID},
		}
	case event.CommentCreated:
		recipientID = p.PostAuthorID
		msg = push.Message{
			Title: "New Comment",
			Body:  p.CommenterUsername + " commented on your post",
			Data:  map[string]string{"type": string(e.Type), "postId": p.PostID, "commentId": p.CommentID},
		}
	default:
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
	defer cancel()

	recipient, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		slog.Warn("notification recipient lookup failed", "user_id", recipientID, "event", e.Type, "error", err)
		return
	}
	if recipient.PushToken == nil || *recipient.PushToken == "" {
		return
	}

	if err := s.gateway.Send(ctx, *recipient.PushToken, msg); err != nil {
		if errors.Is(err, push.ErrInvalidDeviceToken) {
			slog.Info("push token rejected by provider", "user_id", recipientID)
			return
		}
		slog.Error("push notification failed", "user_id", recipientID, "event", e.Type, "error", err)
	}
}
