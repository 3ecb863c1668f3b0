package main

import (
	"fmt"
	"io"
	"strings"

	"sirius/pkg/wise"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func wiseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wise",
		Short: "Inspect Wise balances and move money",
	}
	cmd.PersistentFlags().StringP("account", "a", "primary", "Wise login (primary, secondary)")
	cmd.PersistentFlags().StringP("profile", "p", "personal", "Profile (personal, business)")

	cmd.AddCommand(wiseProfilesCmd())
	cmd.AddCommand(wiseTransferCmd())

	return cmd
}

func parseAccountType(name string) (wise.AccountType, error) {
	switch strings.ToLower(name) {
	case "primary":
		return wise.Primary, nil
	case "secondary":
		return wise.Secondary, nil
	default:
		return 0, fmt.Errorf("unknown Wise account %q", name)
	}
}

func loadProfile(cmd *cobra.Command) (*wise.Profile, error) {
	accountName, _ := cmd.Flags().GetString("account")
	profileName, _ := cmd.Flags().GetString("profile")

	accountType, err := parseAccountType(accountName)
	if err != nil {
		return nil, err
	}
	account, err := wise.Get(cmd.Context(), accountType)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(profileName) {
	case "personal":
		return account.PersonalProfile, nil
	case "business":
		return account.BusinessProfile, nil
	default:
		return nil, fmt.Errorf("unknown Wise profile %q", profileName)
	}
}

func wiseProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List balances and recipients of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := loadProfile(cmd)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
}

func printProfile(w io.Writer, p *wise.Profile) {
	fmt.Fprintf(w, "Profile %d (%s)\n", p.ID, p.Type)

	fmt.Fprintln(w, "\nCash:")
	for _, a := range p.CashAccounts {
		fmt.Fprintf(w, "  %-4s %14s\n", a.Currency, a.Balance.StringFixed(2))
	}

	fmt.Fprintln(w, "\nReserves:")
	for _, a := range p.ReserveAccounts {
		fmt.Fprintf(w, "  %-20s %-4s %14s\n", a.Name, a.Currency, a.Balance.StringFixed(2))
	}

	fmt.Fprintln(w, "\nRecipients:")
	for _, r := range p.Recipients {
		fmt.Fprintf(w, "  %-24s %-4s %s\n", r.AccountHolderName, r.Currency, r.AccountNumber)
	}
}

func wiseTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer [amount]",
		Short: "Transfer between balances or to a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}

			profile, err := loadProfile(cmd)
			if err != nil {
				return err
			}
			to, err := transferDestination(cmd, profile)
			if err != nil {
				return err
			}

			fromSavings, _ := cmd.Flags().GetString("from-savings")
			var transfer *wise.Transfer
			if fromSavings != "" {
				source, err := profile.GetReserveAccount(fromSavings)
				if err != nil {
					return err
				}
				transfer, err = source.Transfer(cmd.Context(), to, amount)
				if err != nil {
					return err
				}
			} else {
				fromCash, _ := cmd.Flags().GetString("from")
				currency, err := wise.ParseCurrency(fromCash)
				if err != nil {
					return err
				}
				source, err := profile.GetCashAccount(currency)
				if err != nil {
					return err
				}
				reference, _ := cmd.Flags().GetString("reference")
				transfer, err = source.Transfer(cmd.Context(), to, amount, reference)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Transfer %d (%s): %s -> %s\n",
				transfer.ID, transfer.Type, transfer.FromAmount.StringFixed(2), transfer.ToAmount.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().String("from", "EUR", "Source cash currency")
	cmd.Flags().String("from-savings", "", "Source reserve account name")
	cmd.Flags().String("to-cash", "", "Destination cash currency")
	cmd.Flags().String("to-savings", "", "Destination reserve account name")
	cmd.Flags().String("to-recipient", "", "Destination recipient account number")
	cmd.Flags().StringP("reference", "r", "", "Reference shown to a recipient")
	cmd.MarkFlagsOneRequired("to-cash", "to-savings", "to-recipient")
	cmd.MarkFlagsMutuallyExclusive("to-cash", "to-savings", "to-recipient")
	cmd.MarkFlagsMutuallyExclusive("from", "from-savings")

	return cmd
}

func transferDestination(cmd *cobra.Command, profile *wise.Profile) (wise.Destination, error) {
	if name, _ := cmd.Flags().GetString("to-savings"); name != "" {
		return profile.GetReserveAccount(name)
	}
	if number, _ := cmd.Flags().GetString("to-recipient"); number != "" {
		return profile.GetRecipient(number)
	}

	code, _ := cmd.Flags().GetString("to-cash")
	currency, err := wise.ParseCurrency(code)
	if err != nil {
		return nil, err
	}
	return profile.GetCashAccount(currency)
}
