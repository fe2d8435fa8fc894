package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payoutForm struct {
	Email   string  `validate:"required,email"`
	Amount  float64 `validate:"required,gt=0"`
	Account string  `validate:"required,len=10"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := payoutForm{
			Email:   "ada@example.com",
			Amount:  25.5,
			Account: "0123456789",
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("missing required fields", func(t *testing.T) {
		err := vh.ValidateStruct(&payoutForm{})
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		assert.Len(t, validationErrors, 3)
	})

	t.Run("invalid email format", func(t *testing.T) {
		invalid := payoutForm{
			Email:   "not-an-email",
			Amount:  25.5,
			Account: "0123456789",
		}

		err := vh.ValidateStruct(&invalid)
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		require.Len(t, validationErrors, 1)
		assert.Equal(t, "Email", validationErrors[0].Field())
		assert.Equal(t, "email", validationErrors[0].Tag())
	})

	t.Run("short account number", func(t *testing.T) {
		invalid := payoutForm{
			Email:   "ada@example.com",
			Amount:  25.5,
			Account: "123",
		}

		err := vh.ValidateStruct(&invalid)
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		require.Len(t, validationErrors, 1)
		assert.Equal(t, "len", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("attaches validation details", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&payoutForm{Email: "not-an-email"})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Email")
		assert.Contains(t, response.Details, "Amount")
		assert.Contains(t, response.Details, "Account")
	})
}

func TestSendServiceError(t *testing.T) {
	t.Run("maps typed failures to their status", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendServiceError(w, ErrInsufficientBalance)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "insufficient balance", response.Error)
		assert.Equal(t, string(CodeInsufficientBalance), response.Code)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendServiceError(w, Errorf(CodeNotFound, "deposit not found"))

		assert.Equal(t, http.StatusNotFound, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "deposit not found", response.Error)
	})

	t.Run("duplicate account conflicts", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendServiceError(w, ErrDuplicateAccount)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("masks internal details", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendServiceError(w, WrapErr(CodeInternal, "unexpected store error", errors.New("connection reset by peer")))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "An Internal Error Occurred", response.Error)
		assert.Equal(t, string(CodeInternal), response.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})

	t.Run("untyped errors are internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendServiceError(w, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "An Internal Error Occurred", response.Error)
	})
}

func TestSendJSON(t *testing.T) {
	w := httptest.NewRecorder()
	SendJSON(w, http.StatusCreated, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
