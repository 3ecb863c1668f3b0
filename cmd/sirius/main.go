package main

import (
	"fmt"
	"os"

	"sirius/pkg/common"
	"sirius/pkg/config"
	"sirius/pkg/logger"

	"github.com/spf13/cobra"

	_ "sirius/pkg/database/graphstore"
	_ "sirius/pkg/database/memstore"
	_ "sirius/pkg/database/mongostore"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sirius",
		Short:         "Sirius - personal automation for Wise, Discord, Twilio, OpenAI and Azure",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// loads .env before any vendor client reads the environment
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return logger.Init(cfg.Environment)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	rootCmd.AddCommand(wiseCmd())
	rootCmd.AddCommand(discordCmd())
	rootCmd.AddCommand(whatsappCmd())
	rootCmd.AddCommand(smsCmd())
	rootCmd.AddCommand(secretCmd())
	rootCmd.AddCommand(entraCmd())
	rootCmd.AddCommand(aiCmd())
	rootCmd.AddCommand(excelCmd())
	rootCmd.AddCommand(uidCmd())

	return rootCmd
}

func uidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uid",
		Short: "Print a new unique ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			length, _ := cmd.Flags().GetInt("length")
			fmt.Fprintln(cmd.OutOrStdout(), common.GetUniqueID(length))
			return nil
		},
	}

	cmd.Flags().IntP("length", "l", common.DefaultUniqueIDLength, "Number of random characters")

	return cmd
}
