// Package notify delivers web-push notifications for messages whose receiver
// has no open socket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"offerland/config"
	"offerland/models"
	"offerland/repository"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

const maxBodyLength = 100

type sendFunc func(payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

type WebPush struct {
	subs       repository.PushSubscriptionRepository
	publicKey  string
	privateKey string
	subscriber string
	logger     *zap.Logger
	send       sendFunc
}

func NewWebPush(subs repository.PushSubscriptionRepository, cfg config.Push, logger *zap.Logger) *WebPush {
	return &WebPush{
		subs:       subs,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		subscriber: cfg.Subscriber,
		logger:     logger,
		send:       webpush.SendNotification,
	}
}

func (p *WebPush) PublicKey() string {
	return p.publicKey
}

// NotifyMessage pushes msg to every subscription of its receiver. Expired
// subscriptions are deleted.
func (p *WebPush) NotifyMessage(ctx context.Context, msg *models.Message) error {
	subs, err := p.subs.FindByUser(ctx, msg.ReceiverID)
	if err != nil {
		return fmt.Errorf("load push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(messagePayload(msg))
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	for _, sub := range subs {
		p.deliver(ctx, payload, sub)
	}
	return nil
}

func (p *WebPush) deliver(ctx context.Context, payload []byte, sub models.PushSubscription) {
	resp, err := p.send(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		Subscriber:      p.subscriber,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             30,
	})
	if err != nil {
		p.logger.Warn("Failed to send push notification",
			zap.String("userId", sub.UserID.Hex()), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		p.logger.Info("Push subscription expired, deleting", zap.String("userId", sub.UserID.Hex()))
		if err := p.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
			p.logger.Error("Failed to delete expired subscription", zap.Error(err))
		}
	default:
		if resp.StatusCode >= 400 {
			p.logger.Warn("Push service rejected notification",
				zap.String("userId", sub.UserID.Hex()), zap.Int("status", resp.StatusCode))
		}
	}
}

func messagePayload(msg *models.Message) map[string]interface{} {
	senderName, icon := "Someone", models.DefaultAvatar
	if msg.Sender != nil {
		senderName, icon = msg.Sender.Username, msg.Sender.Avatar
	}

	body := msg.Content
	if utf8.RuneCountInString(body) > maxBodyLength {
		body = string([]rune(body)[:maxBodyLength]) + "..."
	}

	return map[string]interface{}{
		"title": senderName + " sent a message",
		"body":  body,
		"icon":  icon,
		"data": map[string]interface{}{
			"url":       "/messages/" + msg.SenderID.Hex(),
			"messageId": msg.ID.Hex(),
			"timestamp": time.Now().Unix(),
		},
	}
}
