package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/app/services"
)

var (
	adminUsername string
	adminEmail    string
	adminPassword string
)

// foodie user:create-admin
var createAdminCmd = &cobra.Command{
	Use:   "user:create-admin",
	Short: "Create an admin account",
	RunE: withDB(func(cmd *cobra.Command, _ []string, db *gorm.DB) error {
		svc := services.NewAuthService(repositories.NewUserRepository(db), 0)
		user, err := svc.CreateAdmin(cmd.Context(), services.RegisterInput{
			Username: adminUsername,
			Email:    adminEmail,
			Password: adminPassword,
		})
		if err != nil {
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				for field, msg := range verr.Fields {
					fmt.Printf("  %s: %s\n", field, msg)
				}
			}
			return err
		}
		fmt.Printf("✅  Admin %s created (id %s).\n", user.Email, user.ID)
		return nil
	}),
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUsername, "name", "admin", "Display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Login email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Password (8-72 characters)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}
