package commands

import (
	"context"
	"fmt"

	"github.com/relaysys/relay/internal/baselib/actor"
	"github.com/spf13/cobra"
)

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Ask the target actor to stop",
	Long: `shutdown sends a StopActor to the target. Pointed
at a system root this triggers that system's full supervision/cleanup
pass; pointed at a non-root actor only that subtree stops. This is
fire-and-forget: relayctl does not wait for the remote shutdown to finish.`,
	RunE: runShutdown,
}

func runShutdown(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := dialTarget(ctx, false)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.facade.SendRaw(ctx, c.target, &actor.StopActor{}); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	fmt.Printf("stop requested for %s\n", c.target)
	return nil
}
