package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tellText string

var tellCmd = &cobra.Command{
	Use:   "tell",
	Short: "Send a fire-and-forget message to a target actor",
	RunE:  runTell,
}

func init() {
	tellCmd.Flags().StringVar(&tellText, "text", "", "Message text to send (required)")
	tellCmd.MarkFlagRequired("text")
}

func runTell(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := dialTarget(ctx, false)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.facade.Tell(ctx, &TextMessage{Text: tellText}, c.target); err != nil {
		return fmt.Errorf("tell: %w", err)
	}

	fmt.Printf("sent to %s\n", c.target)
	return nil
}
