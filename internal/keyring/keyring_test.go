package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGetBackupDSN(t *testing.T) {
	gokeyring.MockInit()

	dsn := "postgres://prayer@localhost:5432/backups?sslmode=disable"
	if err := SetBackupDSN(dsn); err != nil {
		t.Fatalf("SetBackupDSN() failed: %v", err)
	}
	got, err := GetBackupDSN()
	if err != nil {
		t.Fatalf("GetBackupDSN() failed: %v", err)
	}
	if got != dsn {
		t.Errorf("GetBackupDSN() = %q, want %q", got, dsn)
	}
}

func TestSetBackupDSNRejectsGarbage(t *testing.T) {
	gokeyring.MockInit()

	for _, dsn := range []string{"", "mysql://root@localhost/db"} {
		if err := SetBackupDSN(dsn); err == nil {
			t.Errorf("SetBackupDSN(%q) should fail", dsn)
		}
	}
}

func TestDeleteBackupDSN(t *testing.T) {
	gokeyring.MockInit()

	if err := SetBackupDSN("host=localhost dbname=backups"); err != nil {
		t.Fatalf("SetBackupDSN() failed: %v", err)
	}
	if err := DeleteBackupDSN(); err != nil {
		t.Fatalf("DeleteBackupDSN() failed: %v", err)
	}
	if _, err := GetBackupDSN(); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBackupDSN() error = %v, want %v", err, ErrNotFound)
	}
	if err := DeleteBackupDSN(); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteBackupDSN() error = %v, want %v", err, ErrNotFound)
	}
}

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:secret@db:5432/x", "postgres://u:****@db:5432/x"},
		{"postgres://u@db/x", "postgres://u@db/x"},
		{"host=db user=u password=secret dbname=x", "host=db user=u password=**** dbname=x"},
	}
	for _, tt := range tests {
		if got := MaskDSN(tt.in); got != tt.want {
			t.Errorf("MaskDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
