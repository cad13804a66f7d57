package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unisale/unichat-go/internal/auth"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List your conversations",
	Long: `List the conversations the acting user participates in, newest first.

Examples:
  unichat conversations --user alice@stu.upes.ac.in`,
	RunE: runConversations,
}

func runConversations(cmd *cobra.Command, args []string) error {
	userID, err := auth.FromEnv(userFlag).CurrentUserID()
	if err != nil {
		return err
	}

	ctx := context.Background()
	convs, err := store.ConversationsFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	fmt.Printf("Conversations (%d):\n\n", len(convs))
	for _, c := range convs {
		peer := c.Participants[0]
		for _, p := range c.Participants {
			if p != userID {
				peer = p
			}
		}
		fmt.Printf("- %s [product %s]\n", peer, c.Product)
		if verbose {
			fmt.Printf("  key: %s\n", c.Key())
			fmt.Printf("  opened: %s\n", c.CreatedAt.Format("2006-01-02 15:04"))
		}
	}

	return nil
}
