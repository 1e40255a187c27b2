package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <phone>",
	Short: "Return a handed-off conversation to the assistant",
	Long: `Resume puts a conversation back under automated control after a
human attendant has finished with it. Any half-collected booking details
are discarded; the next patient message starts clean.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		phone := args[0]

		contact, err := dbClient.GetOrCreateContact(ctx, phone)
		if err != nil {
			return fmt.Errorf("look up contact: %w", err)
		}
		conv, err := dbClient.GetOrCreateConversation(ctx, contact.ID)
		if err != nil {
			return fmt.Errorf("look up conversation: %w", err)
		}
		if err := dbClient.ResetConversationStatus(ctx, conv.ID); err != nil {
			return err
		}

		fmt.Printf("Conversation for %s is automated again.\n", phone)
		return nil
	},
}
