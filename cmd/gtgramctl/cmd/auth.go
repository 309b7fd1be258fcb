package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate against the session server",
}

var (
	loginEmail    string
	loginPassword string
)

var (
	registerEmail    string
	registerPassword string
	registerFullName string
)

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new email/password account",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := apiClient().Register(cmd.Context(), registerEmail, registerPassword, registerFullName)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}
		appLogger.Info(cmd.Context(), "Account created", map[string]interface{}{
			"user_id":  sess.ID,
			"username": sess.Username,
		})
		return nil
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with an email/password credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := apiClient().Login(cmd.Context(), loginEmail, loginPassword)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		appLogger.Info(cmd.Context(), "Logged in", map[string]interface{}{
			"user_id":  sess.ID,
			"username": sess.Username,
		})
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().Logout(cmd.Context()); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		appLogger.Info(cmd.Context(), "Logged out")
		return nil
	},
}

var (
	autoUID   string
	autoName  string
	autoPhone string
)

var authAutoActionCmd = &cobra.Command{
	Use:   "auto-action",
	Short: "Establish a session through the auto-provisioning entry path",
	RunE: func(cmd *cobra.Command, args []string) error {
		location, err := apiClient().AutoAction(cmd.Context(), autoUID, autoName, autoPhone)
		if err != nil {
			return fmt.Errorf("auto action failed: %w", err)
		}
		appLogger.Info(cmd.Context(), "Auto action accepted", map[string]interface{}{
			"redirect": location,
		})
		return nil
	},
}

func init() {
	authRegisterCmd.Flags().StringVar(&registerEmail, "email", "", "Account email (required)")
	authRegisterCmd.Flags().StringVar(&registerPassword, "password", "", "Account password (required)")
	authRegisterCmd.Flags().StringVar(&registerFullName, "full-name", "", "Full name for the new profile")
	_ = authRegisterCmd.MarkFlagRequired("email")
	_ = authRegisterCmd.MarkFlagRequired("password")

	authLoginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	authLoginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (required)")
	_ = authLoginCmd.MarkFlagRequired("email")
	_ = authLoginCmd.MarkFlagRequired("password")

	authAutoActionCmd.Flags().StringVar(&autoUID, "uid", "", "Stable user ID (required)")
	authAutoActionCmd.Flags().StringVar(&autoName, "name", "", "Display name for a newly provisioned profile")
	authAutoActionCmd.Flags().StringVar(&autoPhone, "phone", "", "Phone number for a newly provisioned profile")
	_ = authAutoActionCmd.MarkFlagRequired("uid")

	authCmd.AddCommand(authRegisterCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authAutoActionCmd)
}
