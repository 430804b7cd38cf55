package store

import (
	"context"
	"testing"

	"github.com/erazemk/alergo/internal/db"
)

func TestGetJWTSecretGeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSetSettingOverwrites(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, ok, err := GetSetting(ctx, database, SettingNotifyTo); err != nil || ok {
		t.Fatalf("GetSetting on empty table: ok=%v err=%v", ok, err)
	}

	SetSetting(ctx, database, SettingNotifyTo, "a@clinic.example")
	if err := SetSetting(ctx, database, SettingNotifyTo, "b@clinic.example"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	got, ok, err := GetSetting(ctx, database, SettingNotifyTo)
	if err != nil || !ok {
		t.Fatalf("GetSetting: ok=%v err=%v", ok, err)
	}
	if got != "b@clinic.example" {
		t.Errorf("expected b@clinic.example, got %q", got)
	}
}
