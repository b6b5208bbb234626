package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mdiaz/mailsweep/internal/model"
	"github.com/mdiaz/mailsweep/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestAccount inserts a linked account owned by userID and returns it.
func NewTestAccount(t *testing.T, s *store.SQLiteStore, userID, address string) *model.LinkedAccount {
	t.Helper()

	acct := model.LinkedAccount{
		ID:        uuid.New().String(),
		UserID:    userID,
		Address:   address,
		Password:  []byte("encrypted"),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("creating test account: %v", err)
	}
	return &acct
}
