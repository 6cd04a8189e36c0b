package storage

import (
	"context"
	"fmt"
	"time"

	"prayernote/internal/models"
)

// ---------- telegram chats --------------------------------------------------

// AddChat subscribes a Telegram chat to reminders. Re-adding is a no-op.
func (d *DB) AddChat(ctx context.Context, chatID int64) error {
	_, err := d.ExecContext(ctx,
		`INSERT INTO telegram_chats(chat_id, created_at) VALUES(?, ?) ON CONFLICT(chat_id) DO NOTHING`,
		chatID, unix(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to add chat %d: %w", chatID, err)
	}
	return nil
}

func (d *DB) RemoveChat(ctx context.Context, chatID int64) error {
	if _, err := d.ExecContext(ctx, `DELETE FROM telegram_chats WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to remove chat %d: %w", chatID, err)
	}
	return nil
}

func (d *DB) ListChats(ctx context.Context) ([]int64, error) {
	rows, err := d.QueryContext(ctx, `SELECT chat_id FROM telegram_chats ORDER BY created_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// ---------- push subscriptions ----------------------------------------------

// AddPushSubscription stores or refreshes the keys of an endpoint.
func (d *DB) AddPushSubscription(ctx context.Context, s models.PushSubscription) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := d.ExecContext(ctx,
		`INSERT INTO push_subscriptions(endpoint, p256dh, auth, created_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET p256dh = excluded.p256dh, auth = excluded.auth`,
		s.Endpoint, s.P256dh, s.Auth, unix(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to add push subscription: %w", err)
	}
	return nil
}

func (d *DB) RemovePushSubscription(ctx context.Context, endpoint string) error {
	if _, err := d.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("failed to remove push subscription: %w", err)
	}
	return nil
}

func (d *DB) ListPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	rows, err := d.QueryContext(ctx,
		`SELECT endpoint, p256dh, auth FROM push_subscriptions ORDER BY created_at, endpoint`)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	defer rows.Close()

	var res []models.PushSubscription
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.Endpoint, &s.P256dh, &s.Auth); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
