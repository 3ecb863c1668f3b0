package main

import (
	"fmt"

	"sirius/pkg/discord"
	"sirius/pkg/messaging"

	"github.com/spf13/cobra"
)

func discordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discord",
		Short: "Post to the default Discord server",
	}

	send := &cobra.Command{
		Use:   "send [channel] [message]",
		Short: "Send a message to a text channel, creating it when missing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			public, _ := cmd.Flags().GetBool("public")
			server, _ := cmd.Flags().GetString("server")

			bot, err := discord.GetBot(cmd.Context())
			if err != nil {
				return err
			}
			guild, err := bot.GetServer(cmd.Context(), server)
			if err != nil {
				return err
			}
			channel, err := guild.GetTextChannel(cmd.Context(), args[0], public)
			if err != nil {
				return err
			}
			return channel.SendMessage(cmd.Context(), args[1])
		},
	}
	send.Flags().Bool("public", false, "Create the channel visible to everyone")
	send.Flags().String("server", "", "Server name, defaults to the application's server")

	cmd.AddCommand(send)
	return cmd
}

func whatsappCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whatsapp",
		Short: "Send WhatsApp messages through Twilio",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "send [phone] [message]",
		Short: "Send a WhatsApp message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := messaging.SendWhatsAppMessage(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.SID, msg.Status)
			return nil
		},
	})
	return cmd
}

func smsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Send SMS through Twilio",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "send [phone] [message]",
		Short: "Send an SMS",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := messaging.SendSMS(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.SID, msg.Status)
			return nil
		},
	})
	return cmd
}
