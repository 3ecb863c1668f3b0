package main

import (
	"fmt"

	"sirius/pkg/config"
	"sirius/pkg/iam"

	"github.com/spf13/cobra"
)

func entraCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entra",
		Short: "Sign in with Microsoft Entra ID",
	}

	loginURL := &cobra.Command{
		Use:   "login-url",
		Short: "Print the authorization-code sign-in URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entra, err := iam.DefaultEntraID()
			if err != nil {
				return err
			}

			redirectURL, _ := cmd.Flags().GetString("redirect-url")
			if redirectURL == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				redirectURL = cfg.EntraIDRedirectURL
			}
			if redirectURL == "" {
				return fmt.Errorf("--redirect-url or ENTRA_ID_REDIRECT_URL is required")
			}

			scope, _ := cmd.Flags().GetString("scope")
			fmt.Fprintln(cmd.OutOrStdout(), entra.GetLoginURL(redirectURL, iam.WithScope(scope)))
			return nil
		},
	}
	loginURL.Flags().String("redirect-url", "", "Redirect URL registered for the application")
	loginURL.Flags().String("scope", iam.DefaultScope, "Space separated scopes")

	deviceLogin := &cobra.Command{
		Use:   "device-login",
		Short: "Sign in on another device and print the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entra, err := iam.DefaultEntraID()
			if err != nil {
				return err
			}

			flow, err := entra.StartDeviceFlow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), flow.Message)

			token, err := entra.PollDeviceFlow(cmd.Context(), flow)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.AddCommand(loginURL)
	cmd.AddCommand(deviceLogin)
	return cmd
}
