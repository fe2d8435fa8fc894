package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/playvault/backend/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	t.Run("hash and verify round trip", func(t *testing.T) {
		hash, err := hashPassword("password123")
		require.NoError(t, err)
		assert.True(t, verifyPassword("password123", hash))
	})

	t.Run("wrong password", func(t *testing.T) {
		hash, err := hashPassword("password123")
		require.NoError(t, err)
		assert.False(t, verifyPassword("password124", hash))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		first, err := hashPassword("password123")
		require.NoError(t, err)
		second, err := hashPassword("password123")
		require.NoError(t, err)
		assert.NotEqual(t, first, second, "salts must be fresh per hash")
	})

	t.Run("malformed stored hash", func(t *testing.T) {
		assert.False(t, verifyPassword("password123", "not-a-valid-hash"))
		assert.False(t, verifyPassword("password123", "a$b$c"))
	})
}

func TestAuthRegister(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		accounts := newMemAccounts()
		service := NewAuthService(accounts, nil, zap.NewNop())

		body, _ := json.Marshal(RegisterRequest{
			Email:     "test@example.com",
			Password:  "password123",
			FirstName: "John",
			LastName:  "Doe",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "test@example.com", response.User.Email)
		assert.Equal(t, models.RoleUser, response.User.Role)
		assert.Equal(t, 0.0, response.User.Balance)
	})

	t.Run("email already exists", func(t *testing.T) {
		accounts := newMemAccounts()
		_, err := accounts.Create(context.Background(), &models.User{Email: "test@example.com"})
		require.NoError(t, err)
		service := NewAuthService(accounts, nil, zap.NewNop())

		body, _ := json.Marshal(RegisterRequest{
			Email:     "Test@Example.com",
			Password:  "password123",
			FirstName: "John",
			LastName:  "Doe",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		service := NewAuthService(newMemAccounts(), nil, zap.NewNop())

		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBufferString("invalid"))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		service := NewAuthService(newMemAccounts(), nil, zap.NewNop())

		body, _ := json.Marshal(RegisterRequest{
			Email:     "not-an-email",
			Password:  "short",
			FirstName: "J",
			LastName:  "D",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthLogin(t *testing.T) {
	registerUser := func(t *testing.T, accounts *memAccounts, email, password string) *models.User {
		t.Helper()
		hash, err := hashPassword(password)
		require.NoError(t, err)
		user, err := accounts.Create(context.Background(), &models.User{
			Email:          email,
			HashedPassword: hash,
		})
		require.NoError(t, err)
		return user
	}

	t.Run("successful login", func(t *testing.T) {
		accounts := newMemAccounts()
		registerUser(t, accounts, "test@example.com", "password123")
		service := NewAuthService(accounts, nil, zap.NewNop())

		body, _ := json.Marshal(LoginRequest{Email: "test@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		accounts := newMemAccounts()
		registerUser(t, accounts, "test@example.com", "password123")
		service := NewAuthService(accounts, nil, zap.NewNop())

		body, _ := json.Marshal(LoginRequest{Email: "test@example.com", Password: "password124"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		service := NewAuthService(newMemAccounts(), nil, zap.NewNop())

		body, _ := json.Marshal(LoginRequest{Email: "ghost@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("deactivated account", func(t *testing.T) {
		accounts := newMemAccounts()
		user := registerUser(t, accounts, "test@example.com", "password123")
		require.NoError(t, accounts.SetActive(context.Background(), user.ID.Hex(), false))
		service := NewAuthService(accounts, nil, zap.NewNop())

		body, _ := json.Marshal(LoginRequest{Email: "test@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAuthLogout(t *testing.T) {
	t.Run("blacklists the presented token", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		service := NewAuthService(newMemAccounts(), db, zap.NewNop())

		mock.ExpectSet("blacklist:sometoken", "1", time.Hour).SetVal("OK")

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		r.Header.Set("Authorization", "Bearer sometoken")
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("logout without redis still succeeds", func(t *testing.T) {
		service := NewAuthService(newMemAccounts(), nil, zap.NewNop())

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		r.Header.Set("Authorization", "Bearer sometoken")
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetUserAccount(t *testing.T) {
	t.Run("returns the caller's account", func(t *testing.T) {
		accounts := newMemAccounts()
		userID := accounts.seed(75)
		service := NewAuthService(accounts, nil, zap.NewNop())

		r := httptest.NewRequest("GET", "/auth/account", nil)
		r = r.WithContext(context.WithValue(r.Context(), "userID", userID))
		w := httptest.NewRecorder()

		service.GetUserAccount(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var user models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, 75.0, user.Balance)
	})

	t.Run("no principal in context", func(t *testing.T) {
		service := NewAuthService(newMemAccounts(), nil, zap.NewNop())

		r := httptest.NewRequest("GET", "/auth/account", nil)
		w := httptest.NewRecorder()

		service.GetUserAccount(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("account no longer exists", func(t *testing.T) {
		service := NewAuthService(newMemAccounts(), nil, zap.NewNop())

		r := httptest.NewRequest("GET", "/auth/account", nil)
		r = r.WithContext(context.WithValue(r.Context(), "userID", "64f000000000000000000000"))
		w := httptest.NewRecorder()

		service.GetUserAccount(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
