package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"prayernote/internal/logger"
)

// Kinds of failure surfaced to the user.
var (
	ErrStore      = stderrors.New("store failure")
	ErrBackup     = stderrors.New("backup failure")
	ErrPermission = stderrors.New("permission denied")
)

// Store marks err as a local database failure.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// Backup marks err as a cloud backup/restore failure.
func Backup(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackup, err)
}

// UserMessage renders a one-line message fit for a chat reply or API body.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return "The operation was interrupted. Please try again."
	case stderrors.Is(err, ErrBackup):
		return fmt.Sprintf("Backup failed: %v", err)
	case stderrors.Is(err, ErrStore):
		return "Could not access the prayer database. The change was not saved."
	case stderrors.Is(err, ErrPermission):
		return "Permission is missing. Grant it and the reminder will resume."
	}
	return err.Error()
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
