package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// replySinkClass names the internal actor class the façade uses to receive
// Ask replies. It is never exposed to user code and is registered lazily so
// importing this package does not require callers to register anything.
const replySinkClass = "relay.internal.reply-sink"

var registerReplySinkOnce sync.Once

func ensureReplySinkRegistered() {
	registerReplySinkOnce.Do(func() {
		RegisterActorClass(replySinkClass, func(cfg ActorConfig) Receiver {
			ch, _ := cfg.Properties["reply_chan"].(chan Message)
			return &replySink{ch: ch}
		})
	})
}

// replySink is the dedicated, single-use reply actor behind Facade.Ask and
// Facade.GetStatus: its Receive hands the first message it gets to the
// channel withReplySink blocks on, without blocking itself.
type replySink struct {
	ch chan Message
}

func (r *replySink) Receive(_ context.Context, msg Message, _ Address) Message {
	select {
	case r.ch <- msg:
	default:
	}
	return nil
}

// Facade is the external, synchronous entry point for a hosting program.
// Every operation enqueues into the system root's own mailbox rather than
// calling its routing/dispatch methods directly: the
// root's receive loop is the only goroutine permitted to mutate its own
// registry, so handing work to it through the mailbox is what keeps the
// façade's calling goroutine from racing the system's loop goroutine.
type Facade struct {
	root    *Actor
	address Address
}

// StartSystem constructs and starts a system actor, returning a Facade
// bound to it. The caller is responsible for eventually calling Shutdown.
func StartSystem(ctx context.Context, behavior Receiver, cfg ActorConfig, dl DeadLetterSink) (*Facade, error) {
	ensureReplySinkRegistered()

	addr := cfg.MyAddress.UnwrapOr(NewAddress(cfg.Host, cfg.Port))
	root := NewActorSystem(addr, behavior, cfg, dl)
	root.Start(ctx)

	return &Facade{
		root:    root,
		address: NewAddress(cfg.Host, cfg.Port),
	}, nil
}

// System returns the underlying system root actor, for callers that need
// direct access (e.g. to call AttachServer/StartNetworking).
func (f *Facade) System() *Actor { return f.root }

// CreateActor enqueues a CreateActor into the system's mailbox, spawning
// the new actor as a child of this façade's own system root.
func (f *Facade) CreateActor(ctx context.Context, class string, cfg ActorConfig) error {
	return f.CreateActorOn(ctx, f.root.address, class, cfg)
}

// CreateActorOn enqueues a CreateActor addressed at target rather than at
// this façade's own root. Since CreateActor is routed like any other
// message, target may name a different system entirely: route() on this
// façade's root forwards it over the wire exactly as it would a Tell,
// letting an operator spawn actors on a remote relayd instance (see
// cmd/relayctl's create command).
func (f *Facade) CreateActorOn(ctx context.Context, target Address, class string, cfg ActorConfig) error {
	return f.SendRaw(ctx, target, &CreateActor{Class: class, Config: cfg})
}

// SendRaw enqueues message addressed directly at target, bypassing the
// Tell/Broadcast/Ask wrappers. It is how a caller reaches a maintenance
// variant the dispatch table handles itself (CreateActor, StopActor) on a
// remote system, since those are matched by concrete type, not by being
// wrapped inside another message's Msg field.
func (f *Facade) SendRaw(ctx context.Context, target Address, message Message) error {
	if !f.root.mailbox.Send(ctx, envelope{target: target, sender: f.address, body: message}) {
		return ErrActorTerminated
	}
	return nil
}

// Tell wraps message in a Tell and hands it to the system for routing.
func (f *Facade) Tell(ctx context.Context, message Message, target Address) error {
	tell := &Tell{
		Route: Route{Target: target, Sender: f.address},
		Msg:   message,
	}
	if !f.root.mailbox.Send(ctx, envelope{target: target, sender: f.address, body: tell}) {
		return ErrActorTerminated
	}
	return nil
}

// Broadcast wraps message in a Broadcast and hands it to the system for
// routing.
func (f *Facade) Broadcast(ctx context.Context, message Message, target Address) error {
	b := &Broadcast{
		Route: Route{Target: target, Sender: f.address},
		Msg:   message,
	}
	if !f.root.mailbox.Send(ctx, envelope{target: target, sender: f.address, body: b}) {
		return ErrActorTerminated
	}
	return nil
}

// Ask wraps message in an Ask, routes it, and blocks until either a reply
// arrives on a dedicated reply mailbox or timeout elapses. On timeout,
// returns ErrAskTimeout.
func (f *Facade) Ask(ctx context.Context, message Message, target Address, timeout time.Duration) (Message, error) {
	reply, err := f.withReplySink(ctx, timeout, func(replyAddr Address) (Address, Message) {
		return target, &Ask{
			Route: Route{Target: target, Sender: replyAddr},
			Msg:   message,
		}
	})
	if err != nil {
		return nil, err
	}
	if rm, ok := reply.(*ReturnMessage); ok {
		return rm.Value, nil
	}
	return reply, nil
}

// GetStatus queries the system for an actor's current status via
// GetActorStatus/ActorStatusResponse, a maintenance variant that the
// dispatcher answers directly rather than handing to user code — so it is
// sent as a plain message, not wrapped in Ask.
func (f *Facade) GetStatus(ctx context.Context, addr Address, timeout time.Duration) (Status, error) {
	reply, err := f.withReplySink(ctx, timeout, func(replyAddr Address) (Address, Message) {
		return addr, &GetActorStatus{Addr: addr}
	})
	if err != nil {
		return StatusUnreachable, err
	}
	resp, ok := reply.(*ActorStatusResponse)
	if !ok {
		return StatusUnreachable, fmt.Errorf("unexpected reply type for GetActorStatus: %T", reply)
	}
	return resp.Status, nil
}

// withReplySink registers a one-shot reply mailbox, lets build construct the
// outbound envelope addressed from that mailbox, and waits for the single
// reply it expects to receive. Used by both Ask and GetStatus, the two
// façade operations that need to read back a result.
func (f *Facade) withReplySink(
	ctx context.Context,
	timeout time.Duration,
	build func(replyAddr Address) (target Address, body Message),
) (Message, error) {
	replyCh := make(chan Message, 1)
	replyAddr := NewAddress(f.root.address.Host, f.root.address.Port)

	create := &CreateActor{
		Class: replySinkClass,
		Config: ActorConfig{
			Host:       f.root.address.Host,
			Port:       f.root.address.Port,
			MyAddress:  fn.Some(replyAddr),
			Properties: map[string]any{"reply_chan": replyCh},
		},
	}
	if !f.root.mailbox.Send(ctx, envelope{target: f.root.address, sender: f.address, body: create}) {
		return nil, ErrActorTerminated
	}
	defer f.cleanupReplySink(replyAddr)

	target, body := build(replyAddr)
	if !f.root.mailbox.Send(ctx, envelope{target: target, sender: replyAddr, body: body}) {
		return nil, ErrActorTerminated
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(timeout):
		return nil, ErrAskTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Facade) cleanupReplySink(addr Address) {
	remove := &RemoveActor{Addr: addr}
	f.root.mailbox.TrySend(envelope{target: f.root.address, sender: f.address, body: remove})
}

// Shutdown stops the system's socket server, if any, enqueues a Poison pill
// behind whatever is already in the system's mailbox, and waits up to grace
// for the root's supervision pass to finish, force-terminating if the grace
// period elapses.
func (f *Facade) Shutdown(ctx context.Context, grace time.Duration) error {
	return f.root.Shutdown(ctx, grace)
}
