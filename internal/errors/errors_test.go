package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	if got := Format(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	if got := Format(fmt.Errorf("boom")); got != "Error: boom" {
		t.Errorf("expected %q, got %q", "Error: boom", got)
	}
}

func TestStoreWrapping(t *testing.T) {
	cause := stderrors.New("disk I/O error")
	err := Store("insert person", cause)
	if !stderrors.Is(err, ErrStore) {
		t.Error("expected ErrStore in chain")
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if Store("noop", nil) != nil {
		t.Error("expected nil for nil cause")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"store", Store("update topic", stderrors.New("locked")), "Could not access the prayer database"},
		{"backup", Backup("upload person", stderrors.New("unreachable")), "Backup failed: upload person"},
		{"permission", fmt.Errorf("notify: %w", ErrPermission), "Permission is missing"},
		{"cancelled", fmt.Errorf("wrap: %w", context.Canceled), "interrupted"},
		{"plain", stderrors.New("name is required"), "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected message containing %q, got %q", tt.want, got)
			}
		})
	}
}
