package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	service = "prayernote"
	user    = "backup-dsn"
)

var (
	// ErrNotFound is returned when no backup DSN is stored.
	ErrNotFound = errors.New("backup connection string not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring cannot be used.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// GetBackupDSN reads the backup database connection string.
func GetBackupDSN() (string, error) {
	dsn, err := keyring.Get(service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return dsn, nil
}

// SetBackupDSN stores a PostgreSQL connection string.
func SetBackupDSN(dsn string) error {
	if dsn == "" {
		return errors.New("connection string cannot be empty")
	}
	if !strings.HasPrefix(dsn, "postgres://") &&
		!strings.HasPrefix(dsn, "postgresql://") &&
		!strings.Contains(dsn, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}
	if err := keyring.Set(service, user, dsn); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

func DeleteBackupDSN() error {
	if err := keyring.Delete(service, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// MaskDSN hides the password of a connection string for display.
func MaskDSN(dsn string) string {
	if idx := strings.Index(dsn, "://"); idx != -1 {
		rest := dsn[idx+3:]
		if at := strings.LastIndex(rest, "@"); at != -1 {
			if colon := strings.Index(rest[:at], ":"); colon != -1 {
				return dsn[:idx+3] + rest[:colon] + ":****" + rest[at:]
			}
		}
		return dsn
	}
	parts := strings.Fields(dsn)
	for i, p := range parts {
		if strings.HasPrefix(p, "password=") {
			parts[i] = "password=****"
		}
	}
	return strings.Join(parts, " ")
}
