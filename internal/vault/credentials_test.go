package vault

import (
	"context"
	"errors"
	"testing"
)

func TestIsSensitiveField(t *testing.T) {
	cases := []struct {
		field string
		want  bool
	}{
		{"api_key", true},
		{"API_SECRET", true},
		{"accessToken", true},
		{"password", true},
		{"oauth_credential", true},
		{"basic_auth", true},
		{"username", false},
		{"client_id", false},
		{"endpoint_url", false},
	}

	for _, tc := range cases {
		if got := IsSensitiveField(tc.field); got != tc.want {
			t.Errorf("IsSensitiveField(%q) = %v, want %v", tc.field, got, tc.want)
		}
	}
}

func TestStoreConnectorCredentials_OnlySensitiveNonEmpty(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	refs, err := svc.StoreConnectorCredentials(ctx, "conn-1", map[string]string{
		"api_key":      "k1",
		"api_secret":   "s1",
		"bearer_token": "", // empty: skipped
		"username":     "alice",
		"client_id":    "app-123",
	})
	if err != nil {
		t.Fatalf("StoreConnectorCredentials: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 vault refs, got %d: %v", len(refs), refs)
	}
	if _, ok := refs["api_key"]; !ok {
		t.Error("api_key was not vaulted")
	}
	if _, ok := refs["api_secret"]; !ok {
		t.Error("api_secret was not vaulted")
	}
	if store.inserts != 2 {
		t.Errorf("expected 2 inserts, got %d", store.inserts)
	}
}

func TestConnectorCredentials_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fields := map[string]string{
		"api_key":        "k1",
		"api_secret":     "s1",
		"access_token":   "t1",
		"empty_password": "",
		"username":       "bob",
	}

	refs, err := svc.StoreConnectorCredentials(ctx, "conn-1", fields)
	if err != nil {
		t.Fatalf("StoreConnectorCredentials: %v", err)
	}

	creds, err := svc.GetConnectorCredentials(ctx, refs)
	if err != nil {
		t.Fatalf("GetConnectorCredentials: %v", err)
	}

	want := map[string]string{"api_key": "k1", "api_secret": "s1", "access_token": "t1"}
	if len(creds) != len(want) {
		t.Fatalf("expected %d creds, got %d: %v", len(want), len(creds), creds)
	}
	for field, value := range want {
		if creds[field] != value {
			t.Errorf("creds[%q] = %q, want %q", field, creds[field], value)
		}
	}
}

func TestUpdateConnectorCredentials_IdempotentRotation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	refs, err := svc.StoreConnectorCredentials(ctx, "conn-1", map[string]string{"api_key": "k1"})
	if err != nil {
		t.Fatalf("StoreConnectorCredentials: %v", err)
	}
	originalID := refs["api_key"]

	for i := 0; i < 2; i++ {
		refs, err = svc.UpdateConnectorCredentials(ctx, "conn-1", map[string]string{"api_key": "k1"}, refs)
		if err != nil {
			t.Fatalf("UpdateConnectorCredentials: %v", err)
		}
	}

	if refs["api_key"] != originalID {
		t.Errorf("rotation changed vault id: %s -> %s", originalID, refs["api_key"])
	}
	if store.inserts != 1 {
		t.Errorf("rotation allocated new vault ids, inserts = %d", store.inserts)
	}
}

func TestUpdateConnectorCredentials_CreateAndDelete(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	refs, err := svc.StoreConnectorCredentials(ctx, "conn-1", map[string]string{
		"api_key":    "k1",
		"api_secret": "s1",
	})
	if err != nil {
		t.Fatalf("StoreConnectorCredentials: %v", err)
	}

	// Clear api_secret, add a bearer_token.
	updated, err := svc.UpdateConnectorCredentials(ctx, "conn-1", map[string]string{
		"api_secret":   "",
		"bearer_token": "b1",
	}, refs)
	if err != nil {
		t.Fatalf("UpdateConnectorCredentials: %v", err)
	}

	if _, ok := updated["api_secret"]; ok {
		t.Error("cleared field still mapped")
	}
	if _, ok := updated["bearer_token"]; !ok {
		t.Error("new field not mapped")
	}
	if updated["api_key"] != refs["api_key"] {
		t.Error("untouched field id changed")
	}
	if store.deletes != 1 {
		t.Errorf("expected 1 delete, got %d", store.deletes)
	}
}

func TestDeleteConnectorCredentials_BestEffort(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	refs, err := svc.StoreConnectorCredentials(ctx, "conn-1", map[string]string{
		"api_key":    "k1",
		"api_secret": "s1",
	})
	if err != nil {
		t.Fatalf("StoreConnectorCredentials: %v", err)
	}

	store.failDelete = errors.New("store offline")
	if err := svc.DeleteConnectorCredentials(ctx, refs); err == nil {
		t.Error("expected joined error when deletes fail")
	}

	store.failDelete = nil
	if err := svc.DeleteConnectorCredentials(ctx, refs); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(store.secrets) != 0 {
		t.Errorf("expected all secrets deleted, %d remain", len(store.secrets))
	}
}
