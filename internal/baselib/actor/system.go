package actor

import (
	"context"
	"fmt"
	"time"
)

// DefaultShutdownGrace bounds how long Shutdown waits for the root actor's
// supervision pass to finish stopping every descendant before the process
// gives up waiting.
const DefaultShutdownGrace = 120 * time.Second

// AttachServer wires a socket server onto the system root, the only
// inbound-message path from remote systems. It is a no-op if this actor is
// not a system root. Start must be called separately once the actor's
// receive loop is running, so the pump goroutine always has somewhere to
// deliver decoded frames.
func (a *Actor) AttachServer(srv *Server) {
	if a.sys == nil {
		return
	}
	a.sys.server = srv
}

// StartNetworking starts this system's socket server and begins pumping
// decoded inbound frames into the root's own mailbox, where they are routed
// exactly like any locally originated message. Returns an error if this
// actor carries no system state or no server was attached.
func (a *Actor) StartNetworking(ctx context.Context) error {
	if a.sys == nil {
		return fmt.Errorf("actor %s is not a system root", a.address.ID)
	}
	if a.sys.server == nil {
		return fmt.Errorf("actor %s: no server attached", a.address.ID)
	}

	if err := a.sys.server.Start(); err != nil {
		return fmt.Errorf("start socket server: %w", err)
	}

	go a.pumpInbound(ctx)

	return nil
}

// StopNetworking stops accepting new connections and waits up to grace for
// in-flight handlers to finish.
func (a *Actor) StopNetworking(grace time.Duration) error {
	if a.sys == nil || a.sys.server == nil {
		return nil
	}
	return a.sys.server.Stop(grace)
}

// pumpInbound moves decoded frames from the socket server onto the root's
// own mailbox. It never calls route/dispatch directly: every envelope this
// system processes, whether it arrived over the wire or was enqueued
// in-process, is consumed by exactly one goroutine — the root's own receive
// loop — preserving the single-consumer invariant the rest of the package
// relies on (mailbox.go, registry.go).
func (a *Actor) pumpInbound(ctx context.Context) {
	for {
		select {
		case decoded, ok := <-a.sys.server.Inbound:
			if !ok {
				return
			}

			target := Address{ID: decoded.TargetID, Host: a.address.Host, Port: a.address.Port}
			sendCtx, cancel := context.WithTimeout(ctx, DefaultChildEnqueueTimeout)
			a.mailbox.Send(sendCtx, envelope{
				target: target,
				sender: decoded.Sender,
				body:   decoded.Payload,
			})
			cancel()

		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops this system gracefully: it stops accepting new network
// connections, sends a Poison pill to the root's own mailbox so the receive
// loop drains what is already queued and then runs its supervision pass over
// every descendant, and waits up to grace (DefaultShutdownGrace if zero) for
// that to finish before forcing termination.
func (a *Actor) Shutdown(ctx context.Context, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	if a.sys != nil && a.sys.server != nil {
		_ = a.StopNetworking(DefaultGraceTimeout)
	}

	a.mailbox.TrySend(envelope{target: a.address, sender: a.address, body: &Poison{}})

	waitCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	select {
	case <-a.Done():
		return nil
	case <-waitCtx.Done():
		a.Stop()
		return fmt.Errorf("shutdown grace period elapsed for %s", a.address.ID)
	}
}

// ConventionLeader returns the system's current convention leader, if one
// has been established. Returns false if this actor carries no system state
// or no leader has ever been set.
func (a *Actor) ConventionLeader() (Address, bool) {
	if a.sys == nil {
		return Address{}, false
	}
	return a.sys.conventionLeader()
}
