package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storyworlds/site/internal/authpw"
	"storyworlds/site/internal/store"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin panel accounts",
	}
	cmd.AddCommand(createUserCmd())
	cmd.AddCommand(setPasswordCmd())
	return cmd
}

func createUserCmd() *cobra.Command {
	var (
		emailAddr string
		name      string
		role      string
		password  string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an admin account",
		Example: `  site admin create-user --email ada@example.com --name "Ada" --role admin
  echo "$PASSWORD" | site admin create-user --email eli@example.com --role editor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			password, err := passwordInput(password)
			if err != nil {
				return err
			}
			_, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			accounts := authpw.NewService(store.NewPostgresStore(db))
			user, err := accounts.CreateUser(ctx, authpw.CreateUserRequest{
				Email:       emailAddr,
				Password:    password,
				DisplayName: name,
				Role:        role,
			})
			if errors.Is(err, authpw.ErrEmailTaken) {
				return fmt.Errorf("%s already has an account; use set-password to change it", emailAddr)
			}
			if err != nil {
				return err
			}
			fmt.Println(success(fmt.Sprintf("created %s (%s)", highlight(user.Email), user.Role)))
			return nil
		},
	}
	cmd.Flags().StringVar(&emailAddr, "email", "", "account email (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "editor", "viewer, editor or admin")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func setPasswordCmd() *cobra.Command {
	var (
		emailAddr string
		password  string
	)

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace the password of an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			password, err := passwordInput(password)
			if err != nil {
				return err
			}
			_, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			accounts := authpw.NewService(store.NewPostgresStore(db))
			if err := accounts.SetPassword(ctx, emailAddr, password); err != nil {
				return err
			}
			fmt.Println(success("password updated for " + highlight(emailAddr)))
			return nil
		},
	}
	cmd.Flags().StringVar(&emailAddr, "email", "", "account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// passwordInput returns flagValue, or the first line of stdin when the flag
// was not given.
func passwordInput(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}
