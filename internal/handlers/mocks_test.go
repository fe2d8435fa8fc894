package handlers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/playvault/backend/internal/models"
	"github.com/playvault/backend/internal/services"
)

// asCaller attaches the identity AuthMiddleware would have stored on the
// request context.
func asCaller(r *http.Request, accountID string, role models.Role) *http.Request {
	ctx := context.WithValue(r.Context(), "userID", accountID)
	ctx = context.WithValue(ctx, "userRole", string(role))
	return r.WithContext(ctx)
}

func player(balance float64) *models.User {
	id := primitive.NewObjectID()
	return &models.User{
		ID:       id,
		Email:    id.Hex() + "@example.com",
		Role:     models.RoleUser,
		Balance:  balance,
		IsActive: true,
	}
}

// fakeAccounts is a map-backed AccountStore for handler tests.
type fakeAccounts struct {
	users map[string]*models.User
}

func newFakeAccounts(users ...*models.User) *fakeAccounts {
	m := make(map[string]*models.User, len(users))
	for _, u := range users {
		m[u.ID.Hex()] = u
	}
	return &fakeAccounts{users: m}
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, services.Errorf(services.CodeNotFound, "account not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, services.Errorf(services.CodeNotFound, "account not found")
}

func (f *fakeAccounts) Create(_ context.Context, user *models.User) (*models.User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	f.users[user.ID.Hex()] = user
	return user, nil
}

func (f *fakeAccounts) AdjustBalance(_ context.Context, id string, delta float64) error {
	u, ok := f.users[id]
	if !ok {
		return services.Errorf(services.CodeNotFound, "account not found")
	}
	u.Balance += delta
	return nil
}

func (f *fakeAccounts) DebitIfSufficient(_ context.Context, id string, amount float64) error {
	u, ok := f.users[id]
	if !ok {
		return services.Errorf(services.CodeNotFound, "account not found")
	}
	if u.Balance < amount {
		return services.ErrInsufficientBalance
	}
	u.Balance -= amount
	return nil
}

func (f *fakeAccounts) List(_ context.Context, _ services.Page) ([]models.User, error) {
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeAccounts) Update(_ context.Context, id string, upd models.AccountUpdate) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, services.Errorf(services.CodeNotFound, "account not found")
	}
	if upd.Email != "" {
		u.Email = upd.Email
	}
	if upd.FirstName != "" {
		u.FirstName = upd.FirstName
	}
	if upd.LastName != "" {
		u.LastName = upd.LastName
	}
	if upd.Role != "" {
		u.Role = upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAccounts) SetActive(_ context.Context, id string, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return services.Errorf(services.CodeNotFound, "account not found")
	}
	u.IsActive = active
	return nil
}

func (f *fakeAccounts) Count(_ context.Context) (int64, error) {
	return int64(len(f.users)), nil
}
