package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	askText    string
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Send a message and wait for a reply",
	Long: `ask sends a message to a target actor and blocks on a dedicated
reply mailbox until the target replies or --timeout elapses. relayctl
briefly starts its own local socket server so the remote side has
somewhere to deliver the reply.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askText, "text", "", "Message text to send (required)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 10*time.Second, "How long to wait for a reply")
	askCmd.MarkFlagRequired("text")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := dialTarget(ctx, true)
	if err != nil {
		return err
	}
	defer c.close()

	reply, err := c.facade.Ask(ctx, &TextMessage{Text: askText}, c.target, askTimeout)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if reply == nil {
		fmt.Println("(empty reply)")
		return nil
	}

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"reply_type": reply.MessageType(),
			"reply":      reply,
		})
	default:
		if tm, ok := reply.(*TextMessage); ok {
			fmt.Println(tm.Text)
		} else {
			fmt.Printf("reply (%s): %+v\n", reply.MessageType(), reply)
		}
	}

	return nil
}
