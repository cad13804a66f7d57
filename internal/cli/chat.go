package cli

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/unisale/unichat-go/internal/auth"
	"github.com/unisale/unichat-go/internal/chat"
)

var (
	chatPeer    string
	chatProduct string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat view",
	Long: `Open a live chat with a peer about one product listing. History loads
first, then new messages stream in as they land in the store.

Examples:
  unichat chat --user alice --to bob --product P7`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatPeer, "to", "t", "", "peer user id (required)")
	chatCmd.Flags().StringVarP(&chatProduct, "product", "p", "", "product listing id (required)")
	_ = chatCmd.MarkFlagRequired("to")
	_ = chatCmd.MarkFlagRequired("product")
}

func runChat(cmd *cobra.Command, args []string) error {
	userID, err := auth.FromEnv(userFlag).CurrentUserID()
	if err != nil {
		return err
	}

	// Without a terminal there is nothing to interact with; print the
	// transcript once instead.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return printTranscript(userID)
	}

	session := chat.NewSession(store, feed, logger)
	defer session.Close()

	model := newChatModel(session, userID, chatPeer, chatProduct)
	p := tea.NewProgram(model)

	// Feed events arrive on the session's dispatcher goroutine; forward
	// them into the program loop.
	session.SetOnUpdate(func(entries []chat.Entry) {
		p.Send(entriesMsg(entries))
	})
	session.SetOnError(func(err error) {
		p.Send(feedErrMsg{err: err})
	})

	conv, err := session.Open(context.Background(), userID, chatPeer, chatProduct)
	if err != nil {
		return err
	}
	logger.Debug("chat session open", "key", conv.Key())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}

// printTranscript dumps the conversation history without subscribing.
func printTranscript(userID string) error {
	if userID == chatPeer {
		return chat.ErrSelfConversation
	}
	key, err := chat.Resolve(userID, chatPeer, chatProduct)
	if err != nil {
		return err
	}

	msgs, err := store.Messages(context.Background(), key)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return nil
	}

	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.SentAt.Local().Format("2006-01-02 15:04"), m.Sender, m.Text)
	}
	return nil
}
