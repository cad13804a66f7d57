package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unisale/unichat-go/internal/auth"
	"github.com/unisale/unichat-go/internal/chat"
)

var (
	sendPeer    string
	sendProduct string
)

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Send a single message without opening the chat view",
	Long: `Send one message to a peer about a product. Creates the conversation
if it does not exist yet.

Examples:
  unichat send --user alice --to bob --product P7 "is the bike still available?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendPeer, "to", "t", "", "peer user id (required)")
	sendCmd.Flags().StringVarP(&sendProduct, "product", "p", "", "product listing id (required)")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("product")
}

func runSend(cmd *cobra.Command, args []string) error {
	userID, err := auth.FromEnv(userFlag).CurrentUserID()
	if err != nil {
		return err
	}
	if userID == sendPeer {
		return chat.ErrSelfConversation
	}

	key, err := chat.Resolve(userID, sendPeer, sendProduct)
	if err != nil {
		return err
	}

	ctx := context.Background()
	lo, hi := userID, sendPeer
	if hi < lo {
		lo, hi = hi, lo
	}
	if _, err := store.EnsureConversation(ctx, key, [2]string{lo, hi}, sendProduct); err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	id, err := store.AppendMessage(ctx, key, userID, strings.Join(args, " "), "")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	fmt.Printf("Sent %s\n", id)
	return nil
}
