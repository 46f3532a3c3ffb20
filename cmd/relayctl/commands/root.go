// Package commands implements relayctl, the operator CLI around a RELAY
// Facade. It embeds its own throwaway actor system for every invocation
// rather than talking to relayd over a separate admin protocol: the only
// external interface this runtime defines is the wire envelope format
// itself, so relayctl reaches a remote relayd the same way any other actor
// would, by addressing it directly.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// targetHost is the host of the relayd instance being operated on.
	targetHost string

	// targetPort is the port of the relayd instance being operated on.
	targetPort int

	// targetID is the id of the target actor, or a registered global
	// name (route() falls back to a by-name lookup when the literal id
	// does not match a child).
	targetID string

	// hmacKeyFile names a file holding the shared secret used to sign
	// and verify frames exchanged with the target.
	hmacKeyFile string

	// localPort is the port relayctl's own ephemeral system binds to
	// when it needs to receive a reply (ask, status). 0 lets the OS pick
	// an ephemeral port.
	localPort int

	// outputFormat controls how results are printed: text or json.
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Operate a running relayd actor system",
	Long: `relayctl sends administrative and test traffic to a running relayd
instance: creating actors, telling, asking, broadcasting, and querying
status, using the same wire protocol actors use to talk to each other.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&targetHost, "host", "127.0.0.1",
		"Host of the target relayd instance")
	rootCmd.PersistentFlags().IntVar(&targetPort, "port", 9600,
		"Port of the target relayd instance")
	rootCmd.PersistentFlags().StringVar(&targetID, "id", "",
		"Target actor id or registered global name (required)")
	rootCmd.PersistentFlags().StringVar(&hmacKeyFile, "hmac-key-file", "",
		"Path to the file holding the shared HMAC secret (required)")
	rootCmd.PersistentFlags().IntVar(&localPort, "local-port", 0,
		"Port relayctl's own ephemeral system binds to for replies (0 = OS-assigned)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text",
		"Output format: text, json")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(tellCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(shutdownCmd)
}

func requireTarget() error {
	if targetID == "" {
		return fmt.Errorf("--id is required")
	}
	if hmacKeyFile == "" {
		return fmt.Errorf("--hmac-key-file is required")
	}
	return nil
}
