package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

var messagesCmd = &cobra.Command{
	Use:   "messages [account]",
	Short: "List mirrored messages, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runMessages,
}

var archiveCmd = &cobra.Command{
	Use:   "archive [account] [message-id]",
	Short: "Archive a message in Gmail and drop it from the mirror",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMessageAction(cmd, args, "Archived")
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash [account] [message-id]",
	Short: "Move a message to the Gmail trash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMessageAction(cmd, args, "Trashed")
	},
}

var readCmd = &cobra.Command{
	Use:   "read [account] [message-id]",
	Short: "Mark a message as read",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMessageAction(cmd, args, "Marked read")
	},
}

// Flags for messages.
var (
	messagesUnread bool
	messagesLimit  int
)

func init() {
	messagesCmd.Flags().BoolVarP(&messagesUnread, "unread", "u", false, "only unread messages")
	messagesCmd.Flags().IntVarP(&messagesLimit, "limit", "n", 50, "maximum number of messages (0 for all)")

	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(readCmd)
}

func runMessages(cmd *cobra.Command, args []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}

	msgs, err := accountService.Messages(cmd.Context(), args[0], domain.MessageQuery{
		UnreadOnly: messagesUnread,
		Limit:      messagesLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	if len(msgs) == 0 {
		cmd.Println("No messages.")
		return nil
	}

	p := newPrinter(cmd)
	for i := range msgs {
		p.message(&msgs[i])
	}
	return nil
}

func runMessageAction(cmd *cobra.Command, args []string, done string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}

	ctx := cmd.Context()
	var err error
	switch cmd.Name() {
	case "archive":
		err = accountService.Archive(ctx, args[0], args[1])
	case "trash":
		err = accountService.Trash(ctx, args[0], args[1])
	default:
		err = accountService.MarkRead(ctx, args[0], args[1])
	}
	if err != nil {
		return fmt.Errorf("failed to %s message: %w", cmd.Name(), err)
	}

	cmd.Printf("%s %s\n", done, args[1])
	return nil
}
