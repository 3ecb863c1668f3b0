package main

import (
	"fmt"
	"strings"

	"sirius/pkg/ai"
	"sirius/pkg/database"

	"github.com/spf13/cobra"
)

func aiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Chat with OpenAI models and query remembered documents",
	}
	cmd.PersistentFlags().StringP("model", "m", string(ai.GPT4Turbo), "Model ID")

	ask := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask a single question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _ := cmd.Flags().GetString("model")
			system, _ := cmd.Flags().GetString("system")
			image, _ := cmd.Flags().GetString("image")

			client, err := ai.NewClient(cmd.Context())
			if err != nil {
				return err
			}
			conv, err := ai.NewConversation(client, ai.LargeLanguageModel(model))
			if err != nil {
				return err
			}
			if system != "" {
				conv.AddSystemPrompt(system)
			}

			var answer string
			switch {
			case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
				answer, err = conv.SayWithImageURL(cmd.Context(), args[0], image)
			case image != "":
				answer, err = conv.SayWithImagePath(cmd.Context(), args[0], image)
			default:
				answer, err = conv.Say(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer)
			fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d, cost: $%s\n", conv.TotalTokenUsage, conv.TotalCost.StringFixed(4))
			return nil
		},
	}
	ask.Flags().String("system", "", "System prompt")
	ask.Flags().String("image", "", "Image URL or local path to attach")

	recall := &cobra.Command{
		Use:   "recall [url] [query]",
		Short: "Remember a document and print the passages closest to query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType, _ := cmd.Flags().GetString("type")
			maxDistance, _ := cmd.Flags().GetFloat64("max-distance")

			client, err := ai.NewClient(cmd.Context())
			if err != nil {
				return err
			}
			store, err := database.Default(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close(cmd.Context())

			memory := ai.NewMemory(client, store)
			doc, err := memory.RememberFromURL(cmd.Context(), args[0], ai.DocumentType(strings.ToUpper(docType)))
			if err != nil {
				return err
			}
			passages, err := memory.Recollect(cmd.Context(), doc, args[1], maxDistance)
			if err != nil {
				return err
			}

			for _, p := range passages {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n---\n", p)
			}
			return nil
		},
	}
	recall.Flags().String("type", string(ai.DocumentTypeHTML), "Document type (TEXT, MARKDOWN, CSV, HTML)")
	recall.Flags().Float64("max-distance", ai.DefaultMaxL2Distance, "Maximum L2 distance of a passage")

	cmd.AddCommand(ask)
	cmd.AddCommand(recall)
	return cmd
}
