package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playvault/backend/internal/models"
)

func TestWithdrawalCreateGuards(t *testing.T) {
	h := NewWithdrawalHandler(nil, nil)

	create := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/withdrawals", strings.NewReader(body))
		h.Create(rr, asCaller(req, "u-1", models.RoleUser))
		return rr
	}

	t.Run("missing bank account", func(t *testing.T) {
		rr := create(`{"amount":50}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, "Validation failed", body.Error)
		assert.Contains(t, body.Details, "AccountNumber")
	})

	t.Run("short account number", func(t *testing.T) {
		rr := create(`{"amount":50,"bank_account":{"account_number":"123","account_name":"Ada Osei","bank_name":"First Harbor Bank","bank_code":"FHB"}}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr).Details, "AccountNumber")
	})

	t.Run("zero amount", func(t *testing.T) {
		rr := create(`{"amount":0,"bank_account":{"account_number":"0123456789","account_name":"Ada Osei","bank_name":"First Harbor Bank"}}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr).Details, "Amount")
	})

	t.Run("unknown fields are refused", func(t *testing.T) {
		rr := create(`{"amount":50,"status":"approved"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid request body", decodeError(t, rr).Error)
	})
}

func TestWithdrawalProcessGuards(t *testing.T) {
	h := NewWithdrawalHandler(nil, nil)

	process := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/admin/withdrawals/w-1/process", strings.NewReader(body))
		h.Process(rr, asCaller(req, "a-1", models.RoleAdmin))
		return rr
	}

	t.Run("unknown action", func(t *testing.T) {
		rr := process(`{"action":"maybe"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, "Validation failed", body.Error)
		assert.Contains(t, body.Details, "Action")
	})

	t.Run("missing action", func(t *testing.T) {
		rr := process(`{"notes":"looks fine"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr).Details, "Action")
	})

	t.Run("trailing data is refused", func(t *testing.T) {
		rr := process(`{"action":"approve"}{"action":"reject"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Request body must only contain a single JSON object", decodeError(t, rr).Error)
	})
}
