package seeders

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/app/services"
	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"gorm.io/gorm"
)

func init() {
	Register("admin", seedAdmin)
}

// seedAdmin creates the admin account from ADMIN_EMAIL and ADMIN_PASSWORD.
// It is skipped when either is unset or the account already exists.
func seedAdmin(ctx context.Context, db *gorm.DB) error {
	email, password := config.Get("ADMIN_EMAIL", ""), config.Get("ADMIN_PASSWORD", "")
	if email == "" || password == "" {
		logger.Info("seed admin: ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping")
		return nil
	}

	svc := services.NewAuthService(repositories.NewUserRepository(db), 0)
	_, err := svc.CreateAdmin(ctx, services.RegisterInput{Username: "admin", Email: email, Password: password})
	if errors.Is(err, services.ErrConflict) {
		return nil
	}
	return err
}
