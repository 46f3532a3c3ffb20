package actor

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestSystemConventionLeaderLastWriterWins exercises Open Question
// resolution #4: setting a new leader always overwrites the previous one,
// with no quorum or rejection.
func TestSystemConventionLeaderLastWriterWins(t *testing.T) {
	t.Parallel()

	root := NewActorSystem(NewAddress("127.0.0.1", 0), &BaseBehavior{}, ActorConfig{}, nil)

	got, ok := root.ConventionLeader()
	require.True(t, ok)
	require.Equal(t, root.Address(), got)

	first := NewAddress("127.0.0.1", 1)
	root.sys.setConventionLeader(first)
	got, ok = root.ConventionLeader()
	require.True(t, ok)
	require.Equal(t, first, got)

	second := NewAddress("127.0.0.1", 2)
	root.sys.setConventionLeader(second)
	got, ok = root.ConventionLeader()
	require.True(t, ok)
	require.Equal(t, second, got)
}

// TestSystemConventionLeaderSeededFromConfig verifies that
// ActorConfig.ConventionLeader seeds the leader pointer at construction.
func TestSystemConventionLeaderSeededFromConfig(t *testing.T) {
	t.Parallel()

	seed := NewAddress("10.0.0.1", 9000)
	root := NewActorSystem(NewAddress("127.0.0.1", 0), &BaseBehavior{}, ActorConfig{
		ConventionLeader: fn.Some(seed),
	}, nil)

	got, ok := root.ConventionLeader()
	require.True(t, ok)
	require.Equal(t, seed, got)
}

// TestSystemGlobalActorRegisterLookupUnregister exercises the global actor
// table directly.
func TestSystemGlobalActorRegisterLookupUnregister(t *testing.T) {
	t.Parallel()

	root := NewActorSystem(NewAddress("127.0.0.1", 0), &BaseBehavior{}, ActorConfig{}, nil)

	addr := NewAddress("127.0.0.1", 0)
	root.sys.registerGlobal("worker.pool", addr)

	got, ok := root.sys.lookupGlobal("worker.pool")
	require.True(t, ok)
	require.Equal(t, addr, got)

	root.sys.unregisterGlobal("worker.pool")
	_, ok = root.sys.lookupGlobal("worker.pool")
	require.False(t, ok)
}

// TestSystemRouteRewritesGlobalName exercises route's global-actor rewrite:
// a target id that doesn't match any direct child but does match a
// registered global name is re-resolved and re-routed (DESIGN.md Open
// Question resolution #6).
func TestSystemRouteRewritesGlobalName(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := NewActorSystem(NewAddress("127.0.0.1", 0), &BaseBehavior{}, ActorConfig{Host: "127.0.0.1"}, nil)
	root.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-root.Done()
	})

	behavior := newRecordingBehavior()
	child := newChild(t, ctx, root, behavior, nil)
	root.sys.registerGlobal("singleton", child.address)

	globalTarget := Address{ID: "singleton", Host: root.address.Host, Port: root.address.Port}
	tell := &Tell{
		Route: Route{Target: globalTarget, Sender: root.address},
		Msg:   &echoMsg{Text: "via-global-name"},
	}
	require.True(t, root.mailbox.Send(ctx, envelope{target: globalTarget, sender: root.address, body: tell}))

	got := mustReceive(t, behavior.received, time.Second)
	require.Equal(t, "via-global-name", got.(*echoMsg).Text)
}

// TestSystemRemoteTableRegisterUnregister exercises the remote-system table
// used to track peer systems a leader has heard about.
func TestSystemRemoteTableRegisterUnregister(t *testing.T) {
	t.Parallel()

	root := NewActorSystem(NewAddress("127.0.0.1", 0), &BaseBehavior{}, ActorConfig{}, nil)

	peer := NewAddress("10.0.0.5", 9600)
	root.sys.registerRemote(peer)
	root.sys.unregisterRemote(peer)
	// registerRemote/unregisterRemote have no exported reader; this test
	// exists to confirm neither call panics on a fresh system and that
	// unregistering an address no other call registered is a no-op.
	require.NotPanics(t, func() { root.sys.unregisterRemote(peer) })
}

// TestSystemWireRoundTripBetweenTwoSystems exercises S4: a message Told on
// one system's façade-less root reaches a child actor on a second,
// independently listening system over a real TCP socket, authenticated
// with HMAC framing.
func TestSystemWireRoundTripBetweenTwoSystems(t *testing.T) {
	sec := DefaultSecurityConfig([]byte("shared-test-secret"))
	const portB = 19532

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()

	systemA := NewActorSystem(NewAddress("127.0.0.1", 0), &BaseBehavior{}, ActorConfig{
		Host: "127.0.0.1", Security: sec,
	}, nil)
	systemA.Start(ctxA)

	addrB := NewAddress("127.0.0.1", portB)
	systemB := NewActorSystem(addrB, &BaseBehavior{}, ActorConfig{
		Host: "127.0.0.1", Port: portB, Security: sec,
	}, nil)
	systemB.Start(ctxB)

	srvB := NewServer("127.0.0.1", portB, sec, 4)
	systemB.AttachServer(srvB)
	require.NoError(t, systemB.StartNetworking(ctxB))
	t.Cleanup(func() { srvB.Stop(time.Second) })

	behavior := newRecordingBehavior()
	remoteChild := newChild(t, ctxB, systemB, behavior, nil)

	targetAddr := Address{ID: remoteChild.address.ID, Host: "127.0.0.1", Port: portB}
	tell := &Tell{
		Route: Route{Target: targetAddr, Sender: systemA.address},
		Msg:   &echoMsg{Text: "cross-process"},
	}
	require.True(t, systemA.mailbox.Send(ctxA, envelope{target: targetAddr, sender: systemA.address, body: tell}))

	got := mustReceive(t, behavior.received, 2*time.Second)
	require.Equal(t, "cross-process", got.(*echoMsg).Text)
}
