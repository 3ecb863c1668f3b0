package main

import (
	"fmt"

	"sirius/pkg/keyvault"

	"github.com/spf13/cobra"
)

func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets in the Azure Key Vault named by AZURE_KEY_VAULT_URL",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [name]",
		Short: "Print a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := keyvault.Default()
			if err != nil {
				return err
			}
			value, err := vault.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [name] [value]",
		Short: "Create a secret or add a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := keyvault.Default()
			if err != nil {
				return err
			}
			return vault.Set(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := keyvault.Default()
			if err != nil {
				return err
			}
			return vault.Delete(cmd.Context(), args[0])
		},
	})

	return cmd
}
