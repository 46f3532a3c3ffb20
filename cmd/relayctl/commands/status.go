package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusTimeout time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query an actor's lifecycle status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "How long to wait for a reply")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := dialTarget(ctx, true)
	if err != nil {
		return err
	}
	defer c.close()

	status, err := c.facade.GetStatus(ctx, c.target, statusTimeout)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]any{
			"id":     c.target.ID,
			"status": status.String(),
		})
	default:
		fmt.Printf("%s: %s\n", c.target.ID, status)
	}

	return nil
}
