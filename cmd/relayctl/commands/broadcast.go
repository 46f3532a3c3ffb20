package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var broadcastText string

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Broadcast a message to a target actor and its children",
	RunE:  runBroadcast,
}

func init() {
	broadcastCmd.Flags().StringVar(&broadcastText, "text", "", "Message text to broadcast (required)")
	broadcastCmd.MarkFlagRequired("text")
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := dialTarget(ctx, false)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.facade.Broadcast(ctx, &TextMessage{Text: broadcastText}, c.target); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	fmt.Printf("broadcast sent to %s\n", c.target)
	return nil
}
