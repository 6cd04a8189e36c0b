package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ---------- settings --------------------------------------------------------

const keyDeviceID = "device_id"

// GetSetting returns the value for key and whether it was set.
func (d *DB) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return v, true, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// DeviceID returns the installation's stable identifier, creating it once.
func (d *DB) DeviceID(ctx context.Context) (string, error) {
	if id, ok, err := d.GetSetting(ctx, keyDeviceID); err != nil || ok {
		return id, err
	}
	id := uuid.NewString()
	_, err := d.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`, keyDeviceID, id)
	if err != nil {
		return "", fmt.Errorf("failed to store device id: %w", err)
	}
	id, _, err = d.GetSetting(ctx, keyDeviceID)
	return id, err
}

func chatStateKey(chatID int64) string {
	return fmt.Sprintf("chat_state:%d", chatID)
}

// ChatState returns what the bot is waiting for in a chat, empty when idle.
func (d *DB) ChatState(ctx context.Context, chatID int64) (string, error) {
	v, _, err := d.GetSetting(ctx, chatStateKey(chatID))
	return v, err
}

// SetChatState stores the awaited input of a chat. Empty clears it.
func (d *DB) SetChatState(ctx context.Context, chatID int64, state string) error {
	if state == "" {
		if _, err := d.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, chatStateKey(chatID)); err != nil {
			return fmt.Errorf("failed to clear chat state: %w", err)
		}
		return nil
	}
	return d.SetSetting(ctx, chatStateKey(chatID), state)
}
