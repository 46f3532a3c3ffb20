package commands

import (
	"context"
	"fmt"

	"github.com/relaysys/relay/internal/baselib/actor"
	"github.com/spf13/cobra"
)

var createClass string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new actor on the target system",
	Long: `create sends a CreateActor message to the target address. --id
names the system root (or another actor) to spawn the child under, not
the new actor: the newly created actor's own address is assigned by the
remote system and is not returned by this fire-and-forget call.`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createClass, "class", "",
		"Registered actor class name on the target system (required)")
	createCmd.MarkFlagRequired("class")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := dialTarget(ctx, false)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.facade.CreateActorOn(ctx, c.target, createClass, actor.ActorConfig{}); err != nil {
		return fmt.Errorf("create actor: %w", err)
	}

	fmt.Printf("sent create request for class %q to %s\n", createClass, c.target)
	return nil
}
