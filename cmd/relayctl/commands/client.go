package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/relaysys/relay/internal/baselib/actor"
)

// TextMessage is the generic user-payload relayctl sends with tell, ask,
// and broadcast. A hosting program with richer message types would define
// and register its own instead.
type TextMessage struct {
	actor.BaseMessage
	Text string `json:"text"`
}

// MessageType implements actor.Message.
func (TextMessage) MessageType() string { return "relayctl.Text" }

func init() {
	actor.RegisterMessageType("relayctl.Text", func() any { return &TextMessage{} })
}

// client bundles the ephemeral local system relayctl uses to reach a remote
// relayd instance and the resolved target address.
type client struct {
	facade *actor.Facade
	target actor.Address
}

// dialTarget constructs a throwaway local actor system bound to localPort
// (or, when a listener is needed and localPort is 0, to a port the OS
// assigns), wires the shared HMAC secret, and resolves the
// --host/--port/--id flags into a target Address. needsListener is true for operations that must
// receive a reply (ask, status): those start the local system's own socket
// server so the remote side has somewhere to write the response frame.
func dialTarget(ctx context.Context, needsListener bool) (*client, error) {
	if err := requireTarget(); err != nil {
		return nil, err
	}

	key, err := os.ReadFile(hmacKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read hmac key file: %w", err)
	}
	sec := actor.DefaultSecurityConfig(key)

	port := localPort
	if needsListener && port == 0 {
		// Reserve an OS-assigned port up front so the local system's own
		// address, which the remote side replies to, carries the real port.
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("reserve local port: %w", err)
		}
		port = l.Addr().(*net.TCPAddr).Port
		l.Close()
	}

	cfg := actor.ActorConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Security: sec,
	}
	facade, err := actor.StartSystem(ctx, &actor.BaseBehavior{}, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("start local system: %w", err)
	}

	if needsListener {
		srv := actor.NewServer("127.0.0.1", port, sec, 0)
		facade.System().AttachServer(srv)
		if err := facade.System().StartNetworking(ctx); err != nil {
			return nil, fmt.Errorf("start local networking: %w", err)
		}
	}

	target := actor.Address{ID: targetID, Host: targetHost, Port: targetPort}

	return &client{facade: facade, target: target}, nil
}

// close shuts down the ephemeral local system, best-effort.
func (c *client) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.facade.Shutdown(ctx, 5*time.Second)
}
