package actor

import (
	"context"
	"crypto/sha256"
	"hash"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// SecurityConfig bundles the shared secret and framing parameters needed to
// authenticate frames on the wire.
type SecurityConfig struct {
	// HMACKey is the shared secret used to sign and verify frames.
	HMACKey []byte

	// HashFn constructs the hash implementation used for HMAC. Defaults to
	// sha256.New.
	HashFn func() hash.Hash

	// Magic is the fixed ASCII prefix every frame must carry. Defaults to
	// "sendreceive".
	Magic string

	// BufferSize bounds the maximum accepted body length in bytes. A
	// frame whose declared length exceeds this is rejected without being
	// read to completion.
	BufferSize int

	// TLSCertPath, when non-empty, makes outbound sends (Send in
	// sender.go) dial with TLS, verified against the system's trusted
	// roots. The file it names is not read or validated by this package,
	// and the socket server does not use TLS.
	TLSCertPath string

	// TLSCipher names a cipher suite. This package does not read it, so
	// the negotiated suite is not restricted.
	TLSCipher string
}

const (
	// DefaultMagic is the fixed frame prefix used when SecurityConfig
	// does not specify one.
	DefaultMagic = "sendreceive"

	// DefaultBufferSize bounds the accepted frame body size absent an
	// explicit configuration (10 MiB).
	DefaultBufferSize = 10 << 20
)

// DefaultSecurityConfig returns a SecurityConfig using SHA-256 HMAC and the
// default magic and buffer size, for the given shared key.
func DefaultSecurityConfig(hmacKey []byte) SecurityConfig {
	return SecurityConfig{
		HMACKey:    hmacKey,
		HashFn:     sha256.New,
		Magic:      DefaultMagic,
		BufferSize: DefaultBufferSize,
	}
}

func (c SecurityConfig) hashFn() func() hash.Hash {
	if c.HashFn != nil {
		return c.HashFn
	}
	return sha256.New
}

func (c SecurityConfig) magic() string {
	if c.Magic != "" {
		return c.Magic
	}
	return DefaultMagic
}

func (c SecurityConfig) bufferSize() int {
	if c.BufferSize > 0 {
		return c.BufferSize
	}
	return DefaultBufferSize
}

// ActorConfig carries the static, caller-supplied options for constructing
// one actor. When a CreateActor crosses the network, only Host, Port,
// MaxWorkers and WorkPoolKind travel with it: Security, Mailbox, MyAddress,
// GlobalName, ConventionLeader and Properties are left out of the wire form,
// so the shared secret never leaves the process and an actor created from a
// remote CreateActor starts with a zero SecurityConfig.
type ActorConfig struct {
	// Host is the hostname this actor's system listens on.
	Host string

	// Port is the TCP port this actor's system listens on.
	Port int

	// MaxWorkers bounds the worker pool this actor may use for offloaded
	// work, if any.
	MaxWorkers int

	// WorkPoolKind names the worker pool implementation to use; the
	// worker pool itself is an external collaborator.
	WorkPoolKind string

	// Security holds the HMAC/magic/framing parameters for this actor's
	// outbound sends. It is never serialized.
	Security SecurityConfig `json:"-"`

	// Mailbox, if set, is used instead of constructing a new one.
	Mailbox Mailbox `json:"-"`

	// MyAddress, if set, is used instead of deriving a fresh address from
	// Host/Port.
	MyAddress fn.Option[Address] `json:"-"`

	// GlobalName, if set, registers the actor under this name in the
	// system's global actor table once it is running.
	GlobalName fn.Option[string] `json:"-"`

	// ConventionLeader, if set, seeds the system's convention-leader
	// pointer at construction. Only meaningful on ActorSystem creation.
	ConventionLeader fn.Option[Address] `json:"-"`

	// Properties is an opaque bag of user-defined configuration passed
	// through to the actor's class factory untouched.
	Properties map[string]any `json:"-"`
}

// envelope is the unit of work that flows through a mailbox: a routing or
// maintenance Message, the address it is ultimately bound for, and the
// address of whoever sent it. Unlike a generic envelope[M,R]+Promise
// pairing, RELAY's envelope carries no promise: Ask replies are routed back
// as ordinary messages addressed to a reply mailbox (see facade.go),
// consistent with Ask crossing a network hop.
type envelope struct {
	target Address
	sender Address
	body   Message
}

// Receiver is the user-overridable behavior of an actor: the single entry
// point the dispatcher calls for Tell/Ask/Broadcast delivery and for any
// message type the built-in dispatch table does not recognize. The default
// behavior (when a class does not need one) is a no-op; see BaseBehavior.
type Receiver interface {
	// Receive processes one message from sender and optionally returns a
	// reply. A nil return means no reply; for Ask, a nil return still
	// produces an empty ReturnMessage so the asker's wait is satisfied.
	Receive(ctx context.Context, msg Message, sender Address) Message
}

// BaseBehavior is an embeddable no-op Receiver: the default receive is a
// no-op.
type BaseBehavior struct{}

// Receive implements Receiver by doing nothing and replying with nothing.
func (BaseBehavior) Receive(context.Context, Message, Address) Message {
	return nil
}

// Setupper is an optional hook run once before an actor enters its receive
// loop.
type Setupper interface {
	Setup(ctx context.Context)
}

// PostStarter is an optional hook run once after an actor enters its
// receive loop, before the first message is dequeued.
type PostStarter interface {
	PostStart(ctx context.Context)
}

// PostStopper is an optional hook run once the receive loop has exited,
// before children are stopped.
type PostStopper interface {
	PostStop(ctx context.Context)
}

// Cleanuper is an optional hook run after children have been stopped, for
// releasing resources the behavior owns.
type Cleanuper interface {
	Cleanup(ctx context.Context)
}

// WorkerPoolOwner is an optional hook for a behavior that owns a worker
// pool; ClosePool is invoked in the supervision/cleanup protocol right after
// PostStop and before the mailbox is closed.
type WorkerPoolOwner interface {
	ClosePool()
}

// ActorClass constructs a Receiver from an ActorConfig. Classes are
// registered by name so that a CreateActor message can name its class
// without the dispatcher needing a compile-time reference to every possible
// behavior, mirroring the registered-constructor pattern RELAY already
// uses for wire message types (message.go).
type ActorClass func(cfg ActorConfig) Receiver

var (
	classMu  sync.RWMutex
	classReg = make(map[string]ActorClass)
)

// RegisterActorClass makes a behavior constructor available to CreateActor
// by name. Registering the same name twice is a programmer error and
// panics.
func RegisterActorClass(name string, factory ActorClass) {
	classMu.Lock()
	defer classMu.Unlock()

	if _, exists := classReg[name]; exists {
		panic("actor: class already registered: " + name)
	}

	classReg[name] = factory
}

func lookupActorClass(name string) (ActorClass, bool) {
	classMu.RLock()
	defer classMu.RUnlock()

	factory, ok := classReg[name]
	return factory, ok
}
