package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Krimson/xray-triage/internal/identity"
	"github.com/Krimson/xray-triage/pkg/models"
)

var (
	loginUser     string
	loginPassword string

	registerEmail    string
	registerFullName string
)

// registerCmd creates a backend account
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the backend",
	RunE:  runRegister,
}

// loginCmd signs in with username and password
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with username and password",
	Long: `Signs in against the backend and stores the access token in the profile
for the current session. The password may also come from TRIAGE_PASSWORD.`,
	RunE: runLogin,
}

// oauthCmd signs in with an access token issued by the OAuth provider
var oauthCmd = &cobra.Command{
	Use:   "oauth <access-token>",
	Short: "Sign in with an OAuth access token",
	Long: `Stores an access token obtained through the OAuth flow. The username is
read from the token claims (preferred_username, email, name, sub).`,
	Args: cobra.ExactArgs(1),
	RunE: runOAuth,
}

// logoutCmd forgets the stored credential
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential of the current session",
	RunE:  runLogout,
}

// whoamiCmd prints the resolved identity
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who is signed in for the current session",
	RunE:  runWhoami,
}

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, registerCmd} {
		cmd.Flags().StringVarP(&loginUser, "username", "u", "", "Username (required)")
		cmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (or set TRIAGE_PASSWORD env)")
		cmd.MarkFlagRequired("username")
	}
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Email (required)")
	registerCmd.Flags().StringVar(&registerFullName, "full-name", "", "Full name")
	registerCmd.MarkFlagRequired("email")
}

func password() (string, error) {
	if loginPassword != "" {
		return loginPassword, nil
	}
	if p := os.Getenv("TRIAGE_PASSWORD"); p != "" {
		return p, nil
	}
	return "", errors.New("password is required (--password or TRIAGE_PASSWORD)")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	pw, err := password()
	if err != nil {
		return err
	}

	err = app.Client.Register(ctx, &models.RegisterRequest{
		Username: loginUser,
		Email:    registerEmail,
		FullName: registerFullName,
		Password: pw,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Sign in with: triagectl login -u %s\n", loginUser, loginUser)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	pw, err := password()
	if err != nil {
		return err
	}

	token, err := app.Client.Login(ctx, loginUser, pw)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	id, err := app.Identities.SignInWithPassword(ctx, app.SessionID, token.Username, token.AccessToken)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (profile: %s)\n", id.Username, app.Config.ProfilePath)
	return nil
}

func runOAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	id, err := app.Identities.SignInWithToken(ctx, app.SessionID, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s via OAuth\n", id.Username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := app.Identities.SignOut(ctx, app.SessionID); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	id, err := app.Identities.Resolve(ctx, app.SessionID)
	if errors.Is(err, identity.ErrUnauthenticated) {
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, since %s)\nsession: %s\n",
		id.Username, id.Source, id.SignedInAt.Format("2006-01-02 15:04"), app.SessionID)
	return nil
}

// credential - имя и токен текущей сессии для команд, которым нужен вход
func credential(cmd *cobra.Command) (*identity.Identity, error) {
	id, err := app.Identities.Resolve(cmd.Context(), app.SessionID)
	if errors.Is(err, identity.ErrUnauthenticated) {
		return nil, errors.New("not signed in, run: triagectl login")
	}
	return id, err
}
