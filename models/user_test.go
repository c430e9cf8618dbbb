package models

import (
	"encoding/json"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/contacts_backend/utils"
)

func TestCachedUser_RoundTripsPasswordHash(t *testing.T) {
	email := "mm@datafocus.dev"
	user := User{
		ID:       7,
		Username: "mm",
		Name:     "Min Min",
		Email:    &email,
		Password: "$2a$10$abcdefghijklmnopqrstuv",
		IsActive: utils.NewTrue(),
	}

	data, err := json.Marshal(newCachedUser(user))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var restored cachedUser
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := restored.toUser()
	if got.Password != user.Password {
		t.Fatalf("cache must keep the password hash, got %q", got.Password)
	}
	if got.ID != user.ID || got.Username != user.Username {
		t.Fatalf("unexpected user after round trip: %+v", got)
	}
	if got.Email == nil || *got.Email != email {
		t.Fatalf("unexpected email after round trip: %+v", got.Email)
	}
}

func TestUser_JSONDropsPasswordHash(t *testing.T) {
	user := User{Username: "mm", Password: "$2a$10$abcdefghijklmnopqrstuv"}

	raw, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(raw), "$2a$") {
		t.Fatalf("User must never serialize the hash: %s", raw)
	}
}
