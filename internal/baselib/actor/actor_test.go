package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// echoMsg is a minimal user payload used to exercise Tell/Ask/Broadcast
// delivery without needing a registered wire type.
type echoMsg struct {
	BaseMessage
	Text string
}

func (*echoMsg) MessageType() string { return "test.echo" }

func init() {
	RegisterMessageType("test.echo", func() any { return &echoMsg{} })
}

// recordingBehavior appends every message it receives to a channel and
// optionally replies with a fixed value.
type recordingBehavior struct {
	received chan Message
	reply    Message
	panicOn  string
}

func newRecordingBehavior() *recordingBehavior {
	return &recordingBehavior{received: make(chan Message, 16)}
}

func (b *recordingBehavior) Receive(_ context.Context, msg Message, _ Address) Message {
	if e, ok := msg.(*echoMsg); ok && b.panicOn != "" && e.Text == b.panicOn {
		panic("boom: " + e.Text)
	}
	b.received <- msg
	return b.reply
}

// fakeDeadLetterSink records every Record call for assertions.
type fakeDeadLetterSink struct {
	mu      sync.Mutex
	records []string
}

func (f *fakeDeadLetterSink) Record(actorID, msgType, senderID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, reason)
}

func (f *fakeDeadLetterSink) reasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.records))
	copy(out, f.records)
	return out
}

func mustReceive(t *testing.T, ch chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(timeout):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

// newChild constructs a child Actor registered under parent, wired and
// started like dispatchCreateActor would do, but without going through the
// CreateActor message so the test can hold a direct reference to the
// behavior.
func newChild(t *testing.T, ctx context.Context, parent *Actor, behavior Receiver, dl DeadLetterSink) *Actor {
	t.Helper()

	addr := NewAddress(parent.address.Host, parent.address.Port).
		WithParentChain(parent.address.ChildChain())
	child := NewActor(addr, behavior, ActorConfig{}, dl)
	child.root = parent.root

	handle := child.Start(ctx)
	require.NoError(t, parent.registry.Add(RegistryEntry{
		Address: addr,
		Status:  StatusRunning,
		Mailbox: child.mailbox,
		Handle:  handle,
	}))

	return child
}

func newTestRoot(t *testing.T, dl DeadLetterSink) (root *Actor, ctx context.Context) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	root = NewActorSystem(NewAddress("127.0.0.1", 0), &BaseBehavior{}, ActorConfig{Host: "127.0.0.1"}, dl)
	root.Start(ctx)

	t.Cleanup(func() {
		cancel()
		select {
		case <-root.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("root actor did not terminate after context cancel")
		}
	})

	return root, ctx
}

// registerRawMailbox adds a bare mailbox (no running actor) to a registry so
// a test can observe what gets routed to an address without standing up a
// full actor for it, mirroring how the façade's reply sink receives Ask
// replies.
func registerRawMailbox(t *testing.T, reg *Registry, addr Address) Mailbox {
	t.Helper()
	mb := NewMailbox(8)
	require.NoError(t, reg.Add(RegistryEntry{Address: addr, Status: StatusRunning, Mailbox: mb}))
	return mb
}

// TestActorLocalTellDelivery exercises S1: a Tell addressed at a direct
// child is routed to the child without ever touching the network.
func TestActorLocalTellDelivery(t *testing.T) {
	t.Parallel()

	root, ctx := newTestRoot(t, nil)
	behavior := newRecordingBehavior()
	child := newChild(t, ctx, root, behavior, nil)

	sender := NewAddress("127.0.0.1", 0)
	tell := &Tell{
		Route: Route{Target: child.address, Sender: sender},
		Msg:   &echoMsg{Text: "hello"},
	}
	require.True(t, root.mailbox.Send(ctx, envelope{target: child.address, sender: sender, body: tell}))

	got := mustReceive(t, behavior.received, time.Second)
	require.Equal(t, "hello", got.(*echoMsg).Text)
}

// TestActorAskRoundTrip exercises S2: an Ask's reply is wrapped in a
// ReturnMessage and routed back to the original sender's mailbox.
func TestActorAskRoundTrip(t *testing.T) {
	t.Parallel()

	root, ctx := newTestRoot(t, nil)
	behavior := newRecordingBehavior()
	behavior.reply = &echoMsg{Text: "pong"}
	child := newChild(t, ctx, root, behavior, nil)

	replyAddr := NewAddress(root.address.Host, root.address.Port)
	replyMailbox := registerRawMailbox(t, root.registry, replyAddr)

	ask := &Ask{
		Route: Route{Target: child.address, Sender: replyAddr},
		Msg:   &echoMsg{Text: "ping"},
	}
	require.True(t, root.mailbox.Send(ctx, envelope{target: child.address, sender: replyAddr, body: ask}))

	require.Equal(t, "ping", mustReceive(t, behavior.received, time.Second).(*echoMsg).Text)

	replyCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	env, ok := replyMailbox.Next(replyCtx)
	require.True(t, ok)

	ret, ok := env.body.(*ReturnMessage)
	require.True(t, ok)
	require.Equal(t, "pong", ret.Value.(*echoMsg).Text)
}

// TestActorForwardThroughGrandchild exercises S3: a Forward chain threads
// through an intermediate child before the innermost message is delivered
// to the grandchild's own behavior.
func TestActorForwardThroughGrandchild(t *testing.T) {
	t.Parallel()

	root, ctx := newTestRoot(t, nil)
	childBehavior := newRecordingBehavior()
	child := newChild(t, ctx, root, childBehavior, nil)

	grandchildBehavior := newRecordingBehavior()
	grandchild := newChild(t, ctx, child, grandchildBehavior, nil)

	sender := NewAddress("127.0.0.1", 0)
	fwd := &Forward{
		Route: Route{Target: grandchild.address, Sender: sender},
		Msg:   &echoMsg{Text: "deep"},
		Chain: []string{child.address.ID, grandchild.address.ID},
	}
	require.True(t, root.mailbox.Send(ctx, envelope{target: root.address, sender: sender, body: fwd}))

	got := mustReceive(t, grandchildBehavior.received, time.Second)
	require.Equal(t, "deep", got.(*echoMsg).Text)

	select {
	case <-childBehavior.received:
		t.Fatal("intermediate child should not have dispatched the forwarded message locally")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestActorBroadcastFansToAllChildren exercises Open Question resolution #1:
// Broadcast dispatches to the target's own behavior and to every child,
// recursing down the tree; a leaf with no children still dispatches
// locally.
func TestActorBroadcastFansToAllChildren(t *testing.T) {
	t.Parallel()

	root, ctx := newTestRoot(t, nil)

	childA := newRecordingBehavior()
	childB := newRecordingBehavior()
	newChild(t, ctx, root, childA, nil)
	newChild(t, ctx, root, childB, nil)

	sender := NewAddress("127.0.0.1", 0)
	b := &Broadcast{
		Route: Route{Target: root.address, Sender: sender},
		Msg:   &echoMsg{Text: "all"},
	}
	require.True(t, root.mailbox.Send(ctx, envelope{target: root.address, sender: sender, body: b}))

	require.Equal(t, "all", mustReceive(t, childA.received, time.Second).(*echoMsg).Text)
	require.Equal(t, "all", mustReceive(t, childB.received, time.Second).(*echoMsg).Text)
}

// TestActorSupervisedStopJoinsChildren exercises S5: a cooperative StopActor
// sent to the root cascades to every child, and the root only terminates
// once children have been joined.
func TestActorSupervisedStopJoinsChildren(t *testing.T) {
	t.Parallel()

	root, ctx := newTestRoot(t, nil)
	child := newChild(t, ctx, root, &BaseBehavior{}, nil)

	require.True(t, root.mailbox.Send(ctx, envelope{
		target: root.address,
		sender: root.address,
		body:   &StopActor{},
	}))

	select {
	case <-root.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("root did not terminate after StopActor")
	}

	require.Equal(t, StatusStopped, root.Status())

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child was not joined during root teardown")
	}
}

// TestActorPoisonSkipsQueuedMessages exercises S6: a Poison pill terminates
// the receive loop immediately, and anything still queued behind it is
// drained to the dead letter sink instead of being dispatched.
func TestActorPoisonSkipsQueuedMessages(t *testing.T) {
	t.Parallel()

	dl := &fakeDeadLetterSink{}
	root, ctx := newTestRoot(t, dl)
	behavior := newRecordingBehavior()

	// Queue Poison and then the trailing message before the child's loop
	// starts, so the trailing message is deterministically behind Poison.
	addr := NewAddress(root.address.Host, root.address.Port).
		WithParentChain(root.address.ChildChain())
	child := NewActor(addr, behavior, ActorConfig{}, dl)
	child.root = root

	trailing := &Tell{
		Route: Route{Target: child.address, Sender: root.address},
		Msg:   &echoMsg{Text: "should not arrive"},
	}
	require.True(t, child.mailbox.Send(ctx, envelope{target: child.address, sender: root.address, body: &Poison{}}))
	require.True(t, child.mailbox.Send(ctx, envelope{target: child.address, sender: root.address, body: trailing}))
	child.Start(ctx)

	select {
	case <-child.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("child did not terminate after Poison")
	}

	select {
	case <-behavior.received:
		t.Fatal("behavior should never have seen the message queued behind Poison")
	case <-time.After(50 * time.Millisecond):
	}

	require.Contains(t, dl.reasons(), "mailbox_drained_at_shutdown")
}

// TestActorUnresolvableTargetAuditsAndFallsBackLocally exercises route's
// final fallback: an address this actor cannot place anywhere is dispatched
// locally and recorded as a dead letter rather than silently discarded.
func TestActorUnresolvableTargetAuditsAndFallsBackLocally(t *testing.T) {
	t.Parallel()

	dl := &fakeDeadLetterSink{}
	root, ctx := newTestRoot(t, dl)

	unknown := Address{ID: "nobody-home", Host: root.address.Host, Port: root.address.Port}
	require.True(t, root.mailbox.Send(ctx, envelope{
		target: unknown,
		sender: root.address,
		body:   &echoMsg{Text: "lost"},
	}))

	require.Eventually(t, func() bool {
		for _, r := range dl.reasons() {
			if r == "unknown_target" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

// TestActorSafeReceiveRecoversPanic verifies that a panicking behavior does
// not take down the owning actor's receive loop, and that the actor keeps
// serving subsequent messages afterward.
func TestActorSafeReceiveRecoversPanic(t *testing.T) {
	t.Parallel()

	root, ctx := newTestRoot(t, nil)
	behavior := newRecordingBehavior()
	behavior.panicOn = "boom"
	child := newChild(t, ctx, root, behavior, nil)

	badTell := &Tell{
		Route: Route{Target: child.address, Sender: root.address},
		Msg:   &echoMsg{Text: "boom"},
	}
	require.True(t, root.mailbox.Send(ctx, envelope{target: child.address, sender: root.address, body: badTell}))

	goodTell := &Tell{
		Route: Route{Target: child.address, Sender: root.address},
		Msg:   &echoMsg{Text: "still alive"},
	}
	require.True(t, root.mailbox.Send(ctx, envelope{target: child.address, sender: root.address, body: goodTell}))

	got := mustReceive(t, behavior.received, time.Second)
	require.Equal(t, "still alive", got.(*echoMsg).Text)
}
