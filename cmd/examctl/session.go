package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"exam-editor/internal/client"
	"exam-editor/internal/domain"
)

type sessionFlags struct {
	server    string
	tokenFile string
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&f.tokenFile, "token-file", defaultTokenFile(), "File the bearer token is kept in")
}

func (f *sessionFlags) open(logger *logrus.Logger) (*client.AuthSession, error) {
	return client.New(client.Options{
		BaseURL:   f.server,
		Tokens:    client.NewFileTokenStore(f.tokenFile),
		Logger:    logger,
		Navigator: client.NavigatorFunc(func(path string) { logger.Debugf("navigate %s", path) }),
	})
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".examctl-auth.json"
	}
	return filepath.Join(dir, "examctl", "auth.json")
}

func loginCmd(logger *logrus.Logger) *cobra.Command {
	var (
		flags      sessionFlags
		email      string
		password   string
		register   bool
		role       string
		secretCode string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in (or register with --register) and keep the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(logger)
			if err != nil {
				return err
			}
			if register {
				return s.Register(cmd.Context(), client.RegisterData{
					Email:      email,
					Password:   password,
					Role:       domain.ResolveRole(role),
					SecretCode: secretCode,
				})
			}
			return s.Login(cmd.Context(), client.LoginData{Email: email, Password: password})
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&register, "register", false, "Create the account first")
	cmd.Flags().StringVar(&role, "role", "student", "Role to register as")
	cmd.Flags().StringVar(&secretCode, "secret-code", "", "Admin secret code, for --role admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func whoamiCmd(logger *logrus.Logger) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the user behind the kept token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(logger)
			if err != nil {
				return err
			}
			if s.State().Token == "" {
				return fmt.Errorf("not logged in")
			}
			if err := s.Start(cmd.Context()); err != nil {
				if client.IsUnauthorized(err) {
					return fmt.Errorf("token rejected; log in again")
				}
				return err
			}
			user := s.State().User
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, id %d)\n", user.Email, user.Role, user.ID)
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}

func logoutCmd(logger *logrus.Logger) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the server session and forget the kept token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(logger)
			if err != nil {
				return err
			}
			return s.Logout(cmd.Context())
		},
	}

	flags.bind(cmd)
	return cmd
}
