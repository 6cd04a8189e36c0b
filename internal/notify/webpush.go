package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

// PushPayload is the JSON document delivered to the service worker.
type PushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// SubscriptionStore lists and prunes push subscriptions.
type SubscriptionStore interface {
	ListPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	RemovePushSubscription(ctx context.Context, endpoint string) error
}

// WebPush delivers reminders to stored browser subscriptions.
type WebPush struct {
	Subs       SubscriptionStore
	PublicKey  string
	PrivateKey string
	Subject    string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

func (w *WebPush) configured() bool {
	return w != nil && w.Subs != nil && w.PublicKey != "" && w.PrivateKey != "" && w.Subject != ""
}

func (w *WebPush) options() *webpush.Options {
	o := &webpush.Options{
		Subscriber:      w.Subject,
		VAPIDPublicKey:  w.PublicKey,
		VAPIDPrivateKey: w.PrivateKey,
		TTL:             60 * 60,
		Urgency:         webpush.UrgencyHigh,
		Topic:           ChannelID,
	}
	if w.HTTPClient != nil {
		o.HTTPClient = w.HTTPClient
	}
	return o
}

// Permitted is true when VAPID keys are set and a browser has subscribed.
func (w *WebPush) Permitted(ctx context.Context) bool {
	if !w.configured() {
		return false
	}
	subs, err := w.Subs.ListPushSubscriptions(ctx)
	if err != nil {
		logger.Warn("Cannot list push subscriptions", "error", err)
		return false
	}
	return len(subs) > 0
}

func Payload(n Notification) PushPayload {
	body := n.Summary
	if body == "" {
		body = n.Body
	}
	return PushPayload{
		Title: n.Title,
		Body:  body,
		Tag:   ChannelID,
		Data: map[string]any{
			"url":       n.Link,
			"dayOfWeek": int(n.Day),
			"details":   n.Body,
		},
	}
}

func (w *WebPush) Notify(ctx context.Context, n Notification) error {
	if !w.configured() {
		logger.Debug("Web push not configured, skipping")
		return nil
	}
	subs, err := w.Subs.ListPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch subscriptions: %w", err)
	}

	payload, err := json.Marshal(Payload(n))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	opts := w.options()
	success, failed := 0, 0
	var errs []error
	for _, s := range subs {
		sub := &webpush.Subscription{
			Endpoint: s.Endpoint,
			Keys:     webpush.Keys{P256dh: s.P256dh, Auth: s.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, opts)
		if err != nil {
			failed++
			errs = append(errs, err)
			logger.Warn("Failed to send push", "endpoint", s.Endpoint, "error", err)
			continue
		}
		status := resp.StatusCode
		if status >= 400 {
			body, _ := io.ReadAll(resp.Body)
			logger.Debug("Push service error", "status", status, "body", string(body))
		}
		resp.Body.Close()

		switch {
		case status == http.StatusNotFound || status == http.StatusGone || status == http.StatusForbidden:
			// Expired, or created with other VAPID keys. The client re-subscribes.
			if err := w.Subs.RemovePushSubscription(ctx, s.Endpoint); err != nil {
				logger.Warn("Failed to remove subscription", "endpoint", s.Endpoint, "error", err)
			}
			logger.Info("Removed stale push subscription", "endpoint", s.Endpoint, "status", status)
			failed++
		case status >= 400:
			failed++
			errs = append(errs, fmt.Errorf("push service returned %d", status))
		default:
			success++
		}
	}

	logger.Debug("Push summary", "subscriptions", len(subs), "success", success, "failed", failed)
	if success == 0 && len(errs) > 0 {
		return fmt.Errorf("failed to send any push notifications: %w", errors.Join(errs...))
	}
	return nil
}
