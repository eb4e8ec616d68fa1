package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"todoapp/internal/models"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE:  runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE:  runWhoami,
}

func init() {
	for _, cmd := range []*cobra.Command{registerCmd, loginCmd} {
		cmd.Flags().String("email", "", "Account email")
		cmd.Flags().String("password", "", "Password (prompted when omitted)")
	}
	registerCmd.Flags().String("first-name", "", "First name")
	registerCmd.Flags().String("last-name", "", "Last name")
}

// credentials returns the email and password flags, prompting for any that
// are missing.
func credentials(cmd *cobra.Command) (email, password string, err error) {
	email, _ = cmd.Flags().GetString("email")
	password, _ = cmd.Flags().GetString("password")

	in := bufio.NewReader(cmd.InOrStdin())
	if email == "" {
		if email, err = prompt(in, cmd.OutOrStdout(), "Email: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = prompt(in, cmd.OutOrStdout(), "Password: "); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	email, password, err := credentials(cmd)
	if err != nil {
		return err
	}
	first, _ := cmd.Flags().GetString("first-name")
	last, _ := cmd.Flags().GetString("last-name")

	req := models.RegisterRequest{Email: email, Password: password, FirstName: first, LastName: last}
	if err := req.Validate(); err != nil {
		return describe(err)
	}
	resp, err := env.api.Register(cmd.Context(), req)
	if err != nil {
		return describe(err)
	}
	if err := env.begin(resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", resp.User.Email)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	email, password, err := credentials(cmd)
	if err != nil {
		return err
	}

	req := models.LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return describe(err)
	}
	resp, err := env.api.Login(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := env.begin(resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session expires %s)\n",
		resp.User.Email, resp.Expires.Local().Format("2006-01-02 15:04"))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	if err := env.end(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	if err := env.requireSession(); err != nil {
		return err
	}
	user, err := env.api.Me(cmd.Context())
	if err != nil {
		return describe(err)
	}
	renderUser(cmd.OutOrStdout(), user, env.session.Current().Expires)
	return nil
}
