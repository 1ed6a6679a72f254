package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"storyworlds/site/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
	nextID     int
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	if _, ok := m.emailIndex[user.Email]; ok {
		return store.ErrDuplicate
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if user, ok := m.users[userID]; ok {
		user.PasswordHash = passwordHash
		m.users[userID] = user
		return nil
	}
	return sql.ErrNoRows
}

func newTestService(ms *mockUserStore) *Service {
	svc := NewService(ms)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	ms := newMockUserStore()
	svc := newTestService(ms)

	t.Run("creates normalized account", func(t *testing.T) {
		user, err := svc.CreateUser(ctx, CreateUserRequest{
			Email:       "  Concierge@Example.com ",
			Password:    "sahara-at-dusk",
			DisplayName: "Concierge Desk",
			Role:        "admin",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Email != "concierge@example.com" {
			t.Errorf("expected normalized email, got %q", user.Email)
		}
		if user.Role != "admin" {
			t.Errorf("expected admin role, got %q", user.Role)
		}
		if user.PasswordHash == "sahara-at-dusk" || user.PasswordHash == "" {
			t.Error("expected password to be hashed")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserRequest{
			Email:       "concierge@example.com",
			Password:    "another-password",
			DisplayName: "Second",
		})
		if !errors.Is(err, ErrEmailTaken) {
			t.Errorf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserRequest{
			Email:       "editor@example.com",
			Password:    "short",
			DisplayName: "Editor",
		})
		if err == nil {
			t.Error("expected error for short password")
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserRequest{
			Email:       "not-an-email",
			Password:    "long-enough-password",
			DisplayName: "Editor",
		})
		if err == nil {
			t.Error("expected error for invalid email")
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	ms := newMockUserStore()
	svc := newTestService(ms)

	if _, err := svc.CreateUser(ctx, CreateUserRequest{
		Email:       "editor@example.com",
		Password:    "atlas-mountains",
		DisplayName: "Editor",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "Editor@example.com", Password: "atlas-mountains"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Role != "editor" {
			t.Errorf("expected default editor role, got %q", user.Role)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "editor@example.com", Password: "wrong-password"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@example.com", Password: "atlas-mountains"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("empty fields", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestSetPassword(t *testing.T) {
	ctx := context.Background()
	ms := newMockUserStore()
	svc := newTestService(ms)

	if _, err := svc.CreateUser(ctx, CreateUserRequest{
		Email:       "editor@example.com",
		Password:    "old-password-1",
		DisplayName: "Editor",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := svc.SetPassword(ctx, "editor@example.com", "new-password-2"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "editor@example.com", Password: "old-password-1"}); err == nil {
		t.Error("expected old password to be rejected")
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "editor@example.com", Password: "new-password-2"}); err != nil {
		t.Errorf("expected new password to work, got %v", err)
	}

	if err := svc.SetPassword(ctx, "missing@example.com", "new-password-2"); err == nil {
		t.Error("expected error for unknown user")
	}
}
