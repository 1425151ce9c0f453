package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"exam-editor/internal/config"
	"exam-editor/internal/domain"
	"exam-editor/internal/repository/sqlite"
	"exam-editor/internal/service"
)

func userCmd(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts in the credential store",
	}
	cmd.AddCommand(userCreateCmd(logger))
	return cmd
}

func userCreateCmd(logger *logrus.Logger) *cobra.Command {
	var (
		email    string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account directly in the database",
		Long: `Create an account without going through the HTTP API.

This is the way to bootstrap the first admin when no admin secret code is
configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != string(domain.RoleStudent) && role != string(domain.RoleAdmin) {
				return fmt.Errorf("role must be %q or %q", domain.RoleStudent, domain.RoleAdmin)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := sqlite.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			repo := sqlite.NewUserRepository(db)
			if err := repo.Init(cmd.Context()); err != nil {
				return fmt.Errorf("init user repository: %w", err)
			}

			users := service.NewUserService(repo, cfg.Auth.AdminSecretCode, cfg.Auth.BcryptCost)
			user, err := users.Provision(cmd.Context(), email, password, domain.Role(role))
			if err != nil {
				if errors.Is(err, service.ErrUserAlreadyExists) {
					return fmt.Errorf("%s is already registered", email)
				}
				return err
			}

			logger.WithFields(logrus.Fields{
				"id":    user.ID,
				"email": user.Email,
				"role":  user.Role,
			}).Info("user created")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleStudent), "Account role (student or admin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
