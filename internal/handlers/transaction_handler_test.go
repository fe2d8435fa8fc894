package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/playvault/backend/internal/models"
	"github.com/playvault/backend/internal/services"
)

type fakeLedger struct {
	recs []models.Transaction
}

func (f *fakeLedger) Append(_ context.Context, rec *models.Transaction) (*models.Transaction, error) {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	f.recs = append(f.recs, *rec)
	return rec, nil
}

func (f *fakeLedger) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	for i := range f.recs {
		if f.recs[i].ID.Hex() == id {
			cp := f.recs[i]
			return &cp, nil
		}
	}
	return nil, services.Errorf(services.CodeNotFound, "transaction not found")
}

func (f *fakeLedger) ListByAccount(_ context.Context, accountID string, _ services.Page) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, rec := range f.recs {
		if rec.UserID == accountID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListAll(_ context.Context, _ services.Page) ([]models.Transaction, error) {
	return append([]models.Transaction(nil), f.recs...), nil
}

func (f *fakeLedger) UpdateStatusByReference(_ context.Context, reference string, status models.TransactionStatus) error {
	for i := range f.recs {
		if f.recs[i].Reference == reference {
			f.recs[i].Status = status
			return nil
		}
	}
	return services.Errorf(services.CodeNotFound, "transaction not found")
}

func ledgerRouter(h *TransactionHandler, callerID string, role models.Role) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, asCaller(req, callerID, role))
		})
	})
	r.Get("/transactions", h.Mine)
	r.Get("/transactions/{id}", h.Get)
	r.Get("/admin/transactions", h.ListAll)
	return r
}

func TestTransactionEndpoints(t *testing.T) {
	mine := models.Transaction{ID: primitive.NewObjectID(), UserID: "u-1", Type: models.TransactionDeposit, Amount: 100, Status: models.TransactionCompleted, Reference: "DEP-1"}
	theirs := models.Transaction{ID: primitive.NewObjectID(), UserID: "u-2", Type: models.TransactionGame, Amount: 25, Status: models.TransactionCompleted, Reference: "GAME-1"}
	h := NewTransactionHandler(&fakeLedger{recs: []models.Transaction{mine, theirs}})

	t.Run("mine lists only the caller's records", func(t *testing.T) {
		r := ledgerRouter(h, "u-1", models.RoleUser)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/transactions", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got []models.Transaction
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "DEP-1", got[0].Reference)
	})

	t.Run("owner reads own record", func(t *testing.T) {
		r := ledgerRouter(h, "u-1", models.RoleUser)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/transactions/"+mine.ID.Hex(), nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("stranger is refused", func(t *testing.T) {
		r := ledgerRouter(h, "u-1", models.RoleUser)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/transactions/"+theirs.ID.Hex(), nil))

		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, string(services.CodeForbidden), decodeError(t, rr).Code)
	})

	t.Run("admin reads any record", func(t *testing.T) {
		r := ledgerRouter(h, "a-1", models.RoleAdmin)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/transactions/"+theirs.ID.Hex(), nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown record", func(t *testing.T) {
		r := ledgerRouter(h, "a-1", models.RoleAdmin)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/transactions/"+primitive.NewObjectID().Hex(), nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("admin listing returns everything", func(t *testing.T) {
		r := ledgerRouter(h, "a-1", models.RoleAdmin)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/admin/transactions", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got []models.Transaction
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Len(t, got, 2)
	})
}
