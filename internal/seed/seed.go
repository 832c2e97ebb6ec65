// Package seed creates the data a fresh installation needs to be usable.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/repositories"
	"github.com/sga/schoolhub/internal/pkg/auth"
)

// AdminAccount describes the bootstrap administrator
type AdminAccount struct {
	Email    string
	Username string
	Password string
}

// CreateDefaultAdmin creates the administrator account unless one with the
// same email already exists. An empty password disables seeding.
func CreateDefaultAdmin(ctx context.Context, users repositories.IUserRepository, admin AdminAccount, lgr zerolog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || admin.Password == "" {
		lgr.Warn().Msg("Seed admin email or password not configured, skipping admin creation")
		return nil
	}

	exists, err := users.EmailExists(ctx, email, 0)
	if err != nil {
		return fmt.Errorf("error checking if admin user exists: %w", err)
	}
	if exists {
		lgr.Info().Str("email", email).Msg("Admin user already exists, skipping creation")
		return nil
	}

	hash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return fmt.Errorf("error hashing admin password: %w", err)
	}

	username := strings.TrimSpace(admin.Username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("error creating admin user: %w", err)
	}

	lgr.Info().Int64("adminID", user.ID).Str("email", email).Msg("Default admin user created successfully")
	return nil
}
