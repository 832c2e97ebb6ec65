package seed

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	repositories.IUserRepository
	byEmail map[string]*models.User
}

func (m *memUsers) EmailExists(_ context.Context, email string, _ int64) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	u.ID = int64(len(m.byEmail) + 1)
	m.byEmail[u.Email] = u
	return nil
}

func TestCreateDefaultAdmin(t *testing.T) {
	users := &memUsers{byEmail: map[string]*models.User{}}
	ctx := context.Background()
	account := AdminAccount{Email: " Admin@SGA.local ", Password: "changeme123"}

	require.NoError(t, CreateDefaultAdmin(ctx, users, account, zerolog.Nop()))
	require.Contains(t, users.byEmail, "admin@sga.local")
	admin := users.byEmail["admin@sga.local"]
	assert.Equal(t, "admin", admin.Username)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.IsActive)
	assert.True(t, auth.CheckPassword(admin.PasswordHash, "changeme123"))

	// second boot leaves the account alone
	require.NoError(t, CreateDefaultAdmin(ctx, users, account, zerolog.Nop()))
	assert.Len(t, users.byEmail, 1)
}

func TestCreateDefaultAdminSkipsWithoutPassword(t *testing.T) {
	users := &memUsers{byEmail: map[string]*models.User{}}
	require.NoError(t, CreateDefaultAdmin(context.Background(), users, AdminAccount{Email: "admin@sga.local"}, zerolog.Nop()))
	assert.Empty(t, users.byEmail)
}
