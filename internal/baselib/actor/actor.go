package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Default timing parameters for the supervision/cleanup protocol.
const (
	DefaultChildEnqueueTimeout = 5 * time.Second
	DefaultChildJoinTimeout    = 15 * time.Second

	// DefaultMailboxCapacity is used when an ActorConfig does not supply
	// its own Mailbox.
	DefaultMailboxCapacity = 64
)

// DeadLetterSink records messages that could not be delivered or that were
// still queued when an actor shut down. It must never block the caller for
// long; implementations that persist to storage should do so
// asynchronously.
type DeadLetterSink interface {
	Record(actorID, msgType, senderID, reason string)
}

// nopDeadLetterSink is used when an Actor is constructed with a nil sink.
type nopDeadLetterSink struct{}

func (nopDeadLetterSink) Record(string, string, string, string) {}

// systemState holds the bookkeeping that only the root actor of a process —
// the Actor System — carries: the convention-leader pointer, the
// remote-system table, the global-actor table, and the socket server. Every
// other Actor in the tree has a nil sys field and hands anything it cannot
// resolve locally up to root.
//
// Same leader/receptionist shape as a classic actor-system type, collapsed
// here into a field on Actor itself: a deep Actor/ActorSystem inheritance
// hierarchy merges into one concept with two execution-substrate hooks
// rather than a wrapping type.
type systemState struct {
	leader atomic.Pointer[Address]

	remoteMu      sync.RWMutex
	remoteSystems map[string]Address

	globalMu     sync.RWMutex
	globalActors map[string]Address

	server *Server
}

func newSystemState() *systemState {
	return &systemState{
		remoteSystems: make(map[string]Address),
		globalActors:  make(map[string]Address),
	}
}

func (s *systemState) registerGlobal(name string, addr Address) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	s.globalActors[name] = addr
}

func (s *systemState) unregisterGlobal(name string) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	delete(s.globalActors, name)
}

func (s *systemState) lookupGlobal(name string) (Address, bool) {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()
	addr, ok := s.globalActors[name]
	return addr, ok
}

func (s *systemState) registerRemote(addr Address) {
	s.remoteMu.Lock()
	defer s.remoteMu.Unlock()
	s.remoteSystems[fmt.Sprintf("%s:%d", addr.Host, addr.Port)] = addr
}

func (s *systemState) unregisterRemote(addr Address) {
	s.remoteMu.Lock()
	defer s.remoteMu.Unlock()
	delete(s.remoteSystems, fmt.Sprintf("%s:%d", addr.Host, addr.Port))
}

// setConventionLeader overwrites the leader pointer unconditionally: the
// protocol is last-writer-wins with no quorum (DESIGN.md Open Question
// resolution #4).
func (s *systemState) setConventionLeader(addr Address) {
	a := addr
	s.leader.Store(&a)
}

// conventionLeader returns the current leader, if one has been set.
func (s *systemState) conventionLeader() (Address, bool) {
	p := s.leader.Load()
	if p == nil {
		return Address{}, false
	}
	return *p, true
}

// execHandle is the ExecutionHandle returned by Actor.Start.
type execHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *execHandle) Stop() {
	h.cancel()
}

func (h *execHandle) Join(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// statusBox makes Actor.status safe to read from a GetActorStatus handler
// running on a different goroutine than the one processing it; in practice
// every write and read happens on the owning actor's own loop goroutine, but
// an atomic removes the need to rely on that holding forever as dispatch
// grows.
type statusBox struct {
	v atomic.Int32
}

func (b *statusBox) set(s Status) { b.v.Store(int32(s)) }
func (b *statusBox) get() Status  { return Status(b.v.Load()) }

// Actor is the single concrete type realizing every node in the tree,
// including the root (the Actor System). Non-root actors have a nil sys
// field; everything else about the receive loop, dispatch table, and
// forwarding algorithm is identical regardless of depth.
type Actor struct {
	address  Address
	behavior Receiver
	mailbox  Mailbox
	registry *Registry
	cfg      ActorConfig

	// root points at the top-level Actor of this process (itself, for the
	// root). Any address this actor cannot resolve as self, a direct
	// child, or a remote host is handed to root, which owns the complete
	// top-level child set and global table.
	root *Actor

	// sys is non-nil only for root.
	sys *systemState

	dl DeadLetterSink

	status statusBox

	cancel context.CancelFunc
	done   chan struct{}
}

// NewActor constructs an actor at addr running behavior under cfg. dl may be
// nil, in which case dropped messages are discarded silently.
func NewActor(addr Address, behavior Receiver, cfg ActorConfig, dl DeadLetterSink) *Actor {
	mb := cfg.Mailbox
	if mb == nil {
		mb = NewMailbox(DefaultMailboxCapacity)
	}
	if dl == nil {
		dl = nopDeadLetterSink{}
	}

	a := &Actor{
		address:  addr,
		behavior: behavior,
		mailbox:  mb,
		registry: NewRegistry(),
		cfg:      cfg,
		dl:       dl,
	}
	a.root = a
	a.status.set(StatusSetup)

	return a
}

// NewActorSystem constructs the root Actor of a process: an Actor with
// systemState populated, optionally seeded with a convention leader.
func NewActorSystem(addr Address, behavior Receiver, cfg ActorConfig, dl DeadLetterSink) *Actor {
	root := NewActor(addr, behavior, cfg, dl)
	root.sys = newSystemState()

	if cfg.ConventionLeader.IsSome() {
		root.sys.setConventionLeader(cfg.ConventionLeader.UnwrapOr(Address{}))
	} else {
		root.sys.setConventionLeader(addr)
	}

	return root
}

// Address returns this actor's own address.
func (a *Actor) Address() Address { return a.address }

// Status returns this actor's current lifecycle status.
func (a *Actor) Status() Status { return a.status.get() }

// Mailbox returns this actor's inbound queue, for wiring into a parent's
// registry at creation time.
func (a *Actor) Mailbox() Mailbox { return a.mailbox }

// IsSystem reports whether this actor carries system-level state (i.e. is
// the root of its process).
func (a *Actor) IsSystem() bool { return a.sys != nil }

func (a *Actor) security() SecurityConfig { return a.cfg.Security }

func (a *Actor) systemRootAddr() Address { return a.root.address }

// Start spawns the actor's receive loop as a goroutine under parent, running
// Setup first if the behavior implements Setupper. Returns a handle usable
// to Stop/Join the loop.
func (a *Actor) Start(parent context.Context) ExecutionHandle {
	runCtx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	a.done = make(chan struct{})

	if s, ok := a.behavior.(Setupper); ok {
		s.Setup(runCtx)
	}

	go a.loop(runCtx)

	return &execHandle{cancel: cancel, done: a.done}
}

// Stop cancels this actor's receive loop directly, without going through the
// message-based StopActor protocol. Shutdown uses it as its forced-termination
// fallback once the grace period elapses; stopChildren's fallback instead
// calls the child's ExecutionHandle.Stop, which cancels the same context.
func (a *Actor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// Done returns a channel closed once this actor's receive loop has fully
// torn down, including its own supervision pass over its children.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) loop(ctx context.Context) {
	defer close(a.done)

	a.status.set(StatusRunning)
	log.DebugS(ctx, "actor entering receive loop", "actor_id", a.address.ID)

	if ps, ok := a.behavior.(PostStarter); ok {
		ps.PostStart(ctx)
	}

	for {
		env, ok := a.mailbox.Next(ctx)
		if !ok {
			break
		}

		if _, isPoison := env.body.(*Poison); isPoison {
			log.DebugS(ctx, "actor received poison pill", "actor_id", a.address.ID)
			break
		}

		if a.route(ctx, env) {
			a.dispatch(ctx, env)
		}

		if ctx.Err() != nil {
			break
		}
	}

	a.teardown(ctx)
}

// teardown runs the supervision/cleanup protocol once the receive loop has
// exited for any reason: StopActor, Poison, forced Stop, or parent context
// cancellation.
func (a *Actor) teardown(ctx context.Context) {
	cleanupCtx := context.Background()

	if pst, ok := a.behavior.(PostStopper); ok {
		pst.PostStop(cleanupCtx)
	}

	if wp, ok := a.behavior.(WorkerPoolOwner); ok {
		wp.ClosePool()
	}

	a.mailbox.Close()
	for _, leftover := range a.mailbox.Drain() {
		a.auditDrop(leftover, "mailbox_drained_at_shutdown")
	}

	a.stopChildren(cleanupCtx)

	a.status.set(StatusStopped)

	if a.root != a {
		a.send(cleanupCtx, a.systemRootAddr(), &SetActorStatus{
			Addr:   a.address,
			Status: StatusStopped,
		}, a.address)
	}

	if cu, ok := a.behavior.(Cleanuper); ok {
		cu.Cleanup(cleanupCtx)
	}

	log.DebugS(cleanupCtx, "actor terminated", "actor_id", a.address.ID)
}

// stopChildren implements the per-child half of the supervision protocol:
// enqueue a cooperative StopActor, wait up to DefaultChildJoinTimeout for the
// child's own loop to exit, and only force-terminate if it has not.
func (a *Actor) stopChildren(ctx context.Context) {
	for _, id := range a.registry.Keys() {
		entry, ok := a.registry.Get(id)
		if !ok {
			continue
		}

		enqCtx, cancel := context.WithTimeout(ctx, DefaultChildEnqueueTimeout)
		entry.Mailbox.Send(enqCtx, envelope{
			target: entry.Address,
			sender: a.address,
			body:   &StopActor{},
		})
		cancel()

		if entry.Handle != nil {
			joinCtx, joinCancel := context.WithTimeout(ctx, DefaultChildJoinTimeout)
			if err := entry.Handle.Join(joinCtx); err != nil {
				log.WarnS(ctx, "child did not stop cooperatively, forcing termination",
					"child_id", id, "err", err)
				entry.Handle.Stop()
			}
			joinCancel()
		}

		a.registry.Remove(id)
	}
}

// route implements the forwarding algorithm: it decides whether env.target
// is this actor (return true, dispatch locally), a direct child (enqueue
// and return false), a different host (hand to the outbound sender and
// return false), or a known global-actor name (rewrite the target and
// recurse). An address this actor cannot place anywhere falls through to
// local dispatch, and is logged as an anomaly for anything but the system
// root, since the root is expected to be the last resort for an address
// nobody else could place.
func (a *Actor) route(ctx context.Context, env envelope) bool {
	target := env.target

	if target.ID == "" || target.Equal(a.address) {
		return true
	}

	if a.registry.Has(target.ID) {
		entry, _ := a.registry.Get(target.ID)
		a.enqueueChild(ctx, entry, env)
		return false
	}

	if !target.SameSystem(a.address) {
		frame, err := Encode(env.body, env.sender, target, a.security())
		if err != nil {
			log.DebugS(ctx, "forward encode failed", "target", target.ID, "err", err)
			a.auditDrop(env, "encode_failed")
			return false
		}
		if err := Send(ctx, frame, target, a.security()); err != nil {
			log.DebugS(ctx, "forward send failed", "target", target.ID, "err", err)
			a.auditDrop(env, "remote_send_failed")
		}
		return false
	}

	if a.sys != nil {
		if resolved, ok := a.sys.lookupGlobal(target.ID); ok {
			return a.route(ctx, envelope{target: resolved, sender: env.sender, body: env.body})
		}
	}

	if a.root != a {
		log.WarnS(ctx, "unresolvable forwarding target, dispatching locally",
			"target", target.ID, "actor_id", a.address.ID)
	}
	a.auditDrop(env, "unknown_target")

	return true
}

// send is an actor's own outbound operation, used by the dispatcher to
// deliver Ask replies and SetActorStatus notifications: a literal local
// child is enqueued directly, a same-process non-child address is handed to
// root (no socket is opened — purely local delivery must stay socket-free),
// and anything else is packaged through the codec and outbound sender.
func (a *Actor) send(ctx context.Context, target Address, payload Message, sender Address) bool {
	if target.Equal(a.address) {
		a.dispatch(ctx, envelope{target: target, sender: sender, body: payload})
		return true
	}

	if a.registry.Has(target.ID) {
		entry, _ := a.registry.Get(target.ID)
		return a.enqueueChild(ctx, entry, envelope{target: target, sender: sender, body: payload})
	}

	if target.SameSystem(a.address) {
		return a.root.route(ctx, envelope{target: target, sender: sender, body: payload})
	}

	frame, err := Encode(payload, sender, target, a.security())
	if err != nil {
		log.DebugS(ctx, "send encode failed", "target", target.ID, "err", err)
		return false
	}
	if err := Send(ctx, frame, target, a.security()); err != nil {
		log.DebugS(ctx, "send failed", "target", target.ID, "err", err)
		return false
	}

	return true
}

func (a *Actor) enqueueChild(ctx context.Context, entry RegistryEntry, env envelope) bool {
	sendCtx, cancel := context.WithTimeout(ctx, DefaultChildEnqueueTimeout)
	defer cancel()

	ok := entry.Mailbox.Send(sendCtx, env)
	if !ok {
		log.DebugS(ctx, "failed to enqueue into child mailbox", "child_id", entry.Address.ID)
		a.auditDrop(env, "child_mailbox_send_failed")
	}
	return ok
}

func (a *Actor) auditDrop(env envelope, reason string) {
	msgType := "<nil>"
	if env.body != nil {
		msgType = env.body.MessageType()
	}
	a.dl.Record(a.address.ID, msgType, env.sender.ID, reason)
}

// dispatch runs the built-in dispatch table for a message already
// determined to target this actor. Anything not named in the table falls to
// the user behavior's Receive.
func (a *Actor) dispatch(ctx context.Context, env envelope) {
	sender := env.sender

	switch msg := env.body.(type) {
	case *Broadcast:
		a.dispatchBroadcast(ctx, msg, sender)

	case *Tell:
		a.safeReceive(ctx, msg.Msg, sender)

	case *Ask:
		a.dispatchAsk(ctx, msg, sender)

	case *Forward:
		a.dispatchForward(ctx, msg, sender)

	case *CreateActor:
		a.dispatchCreateActor(ctx, msg)

	case *RemoveActor:
		a.dispatchRemoveActor(ctx, msg)

	case *StopActor:
		log.DebugS(ctx, "received StopActor", "actor_id", a.address.ID)
		a.cancel()

	case *SetActorStatus:
		if err := a.registry.SetStatus(msg.Addr.ID, msg.Status); err != nil {
			log.DebugS(ctx, "SetActorStatus for unknown child", "child_id", msg.Addr.ID)
		}

	case *GetActorStatus:
		a.send(ctx, sender, &ActorStatusResponse{Status: a.statusOf(msg.Addr)}, a.address)

	case *RegisterGlobalActor:
		if a.sys != nil {
			a.sys.registerGlobal(msg.Name, msg.Addr)
		} else {
			a.safeReceive(ctx, msg, sender)
		}

	case *UnRegisterGlobalActor:
		if a.sys != nil {
			a.sys.unregisterGlobal(msg.Name)
		} else {
			a.safeReceive(ctx, msg, sender)
		}

	case *SetConventionLeader:
		if a.sys != nil {
			a.sys.setConventionLeader(msg.Addr)
		} else {
			a.safeReceive(ctx, msg, sender)
		}

	case *RegisterRemoteSystem:
		if a.sys != nil {
			if leader, ok := a.sys.conventionLeader(); ok && !leader.Equal(a.address) {
				a.send(ctx, leader, msg, sender)
			} else {
				a.sys.registerRemote(msg.Addr)
			}
		} else {
			a.safeReceive(ctx, msg, sender)
		}

	case *UnRegisterRemoteSystem:
		if a.sys != nil {
			a.sys.unregisterRemote(msg.Addr)
		} else {
			a.safeReceive(ctx, msg, sender)
		}

	case *Poison:
		// Reached only if a Poison is nested inside a routing variant;
		// the bare sentinel is consumed in loop before dispatch.

	default:
		a.safeReceive(ctx, env.body, sender)
	}
}

// statusOf matches addr by id alone: a caller's copy of an address (for
// example the MyAddress a child was created with) lacks the parent chain
// attached at creation, and ids are already unique within a process.
func (a *Actor) statusOf(addr Address) Status {
	if addr.ID == a.address.ID {
		return a.status.get()
	}
	if entry, ok := a.registry.Get(addr.ID); ok {
		return entry.Status
	}
	return StatusUnreachable
}

// safeReceive invokes the user behavior, recovering from a panic so one
// misbehaving handler cannot take down the receive loop.
func (a *Actor) safeReceive(ctx context.Context, msg Message, sender Address) (result Message) {
	defer func() {
		if r := recover(); r != nil {
			msgType := "<nil>"
			if msg != nil {
				msgType = msg.MessageType()
			}
			log.ErrorS(ctx, "panic recovered in actor receive",
				fmt.Errorf("%v", r),
				"actor_id", a.address.ID, "msg_type", msgType)
			result = nil
		}
	}()

	return a.behavior.Receive(ctx, msg, sender)
}

// dispatchBroadcast delivers Broadcast's payload to this actor's own
// behavior and then re-enqueues an equivalent Broadcast into every direct
// child's mailbox, which in turn recurses down its own subtree (Open
// Question resolution #1: a leaf fans to zero children and still dispatches
// locally).
func (a *Actor) dispatchBroadcast(ctx context.Context, b *Broadcast, sender Address) {
	a.safeReceive(ctx, b.Msg, sender)

	for _, id := range a.registry.Keys() {
		entry, ok := a.registry.Get(id)
		if !ok {
			continue
		}

		child := &Broadcast{
			Route: Route{Target: entry.Address, Sender: sender},
			Msg:   b.Msg,
		}
		a.enqueueChild(ctx, entry, envelope{target: entry.Address, sender: sender, body: child})
	}
}

// dispatchAsk always wraps the handler's return value in a ReturnMessage
// addressed back to the original sender (Open Question resolution #2): the
// result is never reinterpreted as a fresh Ask.
func (a *Actor) dispatchAsk(ctx context.Context, ask *Ask, sender Address) {
	result := a.safeReceive(ctx, ask.Msg, sender)

	reply := &ReturnMessage{
		Route: Route{Target: sender, Sender: a.address},
		Value: result,
	}
	a.send(ctx, sender, reply, a.address)
}

// dispatchForward consumes one hop of Forward.Chain: a child match enqueues
// the remainder further down, a self match dispatches the inner message
// locally, and anything else is delivered to the final target via send.
func (a *Actor) dispatchForward(ctx context.Context, f *Forward, sender Address) {
	head, rest, ok := f.HeadAndRest()
	if !ok {
		a.safeReceive(ctx, f.Msg, sender)
		return
	}

	switch {
	case a.registry.Has(head):
		entry, _ := a.registry.Get(head)
		next := &Forward{
			Route: Route{Target: f.Target, Sender: f.Sender},
			Msg:   f.Msg,
			Chain: rest,
		}
		a.enqueueChild(ctx, entry, envelope{target: entry.Address, sender: sender, body: next})

	case head == a.address.ID:
		a.safeReceive(ctx, f.Msg, sender)

	default:
		a.send(ctx, f.Target, f.Msg, sender)
	}
}

func (a *Actor) dispatchCreateActor(ctx context.Context, msg *CreateActor) {
	factory, ok := lookupActorClass(msg.Class)
	if !ok {
		log.WarnS(ctx, "CreateActor referenced unregistered class", "class", msg.Class)
		return
	}

	cfg := msg.Config

	var childAddr Address
	if cfg.MyAddress.IsSome() {
		childAddr = cfg.MyAddress.UnwrapOr(Address{})
	} else {
		childAddr = NewAddress(a.address.Host, a.address.Port)
	}

	parentChain := msg.ParentChain
	if len(parentChain) == 0 {
		parentChain = a.address.ChildChain()
	}
	childAddr = childAddr.WithParentChain(parentChain)

	behavior := factory(cfg)
	child := NewActor(childAddr, behavior, cfg, a.dl)
	child.root = a.root

	handle := child.Start(ctx)

	entry := RegistryEntry{
		Address:     childAddr,
		Status:      StatusRunning,
		Mailbox:     child.mailbox,
		Handle:      handle,
		ParentChain: parentChain,
	}
	if err := a.registry.Add(entry); err != nil {
		log.WarnS(ctx, "CreateActor duplicate id, stopping new child", "id", childAddr.ID)
		handle.Stop()
		return
	}

	if cfg.GlobalName.IsSome() && a.root.sys != nil {
		a.root.sys.registerGlobal(cfg.GlobalName.UnwrapOr(""), childAddr)
	}
}

func (a *Actor) dispatchRemoveActor(ctx context.Context, msg *RemoveActor) {
	entry, ok := a.registry.Get(msg.Addr.ID)
	if !ok {
		return
	}

	a.enqueueChild(ctx, entry, envelope{
		target: entry.Address,
		sender: a.address,
		body:   &StopActor{},
	})
	a.registry.Remove(msg.Addr.ID)
}
